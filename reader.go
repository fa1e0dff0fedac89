package pngstream

import (
	"bytes"
	"encoding/binary"
	"hash"
	"hash/crc32"
	"image/color"
	"io"

	"github.com/klauspost/compress/zlib"
	bst "github.com/mixcode/binarystruct"
)

// Decoding stage.
// The PNG specification says that the IHDR, PLTE (if present), tRNS (if
// present), IDAT and IEND chunks must appear in that order. There may be
// multiple IDAT chunks, and IDAT chunks must be sequential (i.e. they may not
// have any other chunks between them).
// https://www.w3.org/TR/PNG/#5ChunkOrdering
const (
	dsStart = iota
	dsSeenIHDR
	dsSeenPLTE
	dsSeenIDAT
	dsSeenIEND
)

// Options configure a Load call: the scratch arena funding per-decode
// temporaries and the ordered processor list.
type Options struct {
	Scratch    *Scratch
	Processors []Processor
}

// DefaultOptions wires a scratch arena of DefaultScratchBytes and the two
// built-in processors, transparency first.
func DefaultOptions() Options {
	return Options{
		Scratch:    NewScratch(DefaultScratchBytes),
		Processors: []Processor{NewTransparencyProcessor(), NewPaletteProcessor()},
	}
}

// A Reader decodes one PNG bytestream. Construct with NewReader or
// NewReaderBytes, then call LoadHeader and/or Load once each.
type Reader struct {
	src   byteSource
	crc   hash.Hash32
	tmp   [3 * 256]byte
	stage int

	header     Header
	hasHeader  bool
	format     PixelFormat
	palette    []color.RGBA
	paletteLen int
}

// NewReader returns a Reader over a seekable byte stream, typically an
// *os.File. Reads go through an internal refill window.
func NewReader(r io.ReadSeeker) *Reader {
	return &Reader{src: &fileSource{r: r}, crc: crc32.NewIEEE()}
}

// NewReaderBytes returns a Reader over an in-memory PNG. The data is not
// copied.
func NewReaderBytes(data []byte) *Reader {
	return &Reader{src: &memSource{data: data}, crc: crc32.NewIEEE()}
}

// LoadHeader reads the signature and the IHDR chunk and returns the parsed
// header. It consumes exactly the signature, the IHDR chunk header, its
// payload and its CRC. Calling it again returns the stored header.
func (r *Reader) LoadHeader() (Header, error) {
	if r.hasHeader {
		return r.header, nil
	}
	if err := r.checkHeader(); err != nil {
		return Header{}, err
	}
	length, tag, err := r.readChunkHeader()
	if err != nil {
		return Header{}, err
	}
	if tag != TagIHDR {
		return Header{}, FormatError("missing IHDR")
	}
	if err := r.parseIHDR(length); err != nil {
		return Header{}, err
	}
	r.hasHeader = true
	r.stage = dsSeenIHDR
	r.format = r.header.startFormat()
	return r.header, nil
}

// Load decodes the remainder of the stream and returns the pixel storage.
// On any error no storage is returned.
func (r *Reader) Load(opts Options) (*PixelStorage, error) {
	if _, err := r.LoadHeader(); err != nil {
		return nil, err
	}
	return r.load(&opts)
}

// LoadWithHeader is Load for a source whose header was already read: the
// signature and IHDR bytes are skipped without re-parsing and h is taken as
// the image header.
func (r *Reader) LoadWithHeader(h Header, opts Options) (*PixelStorage, error) {
	if !r.hasHeader {
		if err := h.validate(); err != nil {
			return nil, err
		}
		// Signature, IHDR chunk header, 13 payload bytes, CRC.
		if err := r.src.SeekBy(8 + 8 + 13 + 4); err != nil {
			return nil, err
		}
		r.header = h
		r.hasHeader = true
		r.stage = dsSeenIHDR
		r.format = h.startFormat()
	}
	return r.load(&opts)
}

func (r *Reader) checkHeader() error {
	if err := r.src.ReadFull(r.tmp[:len(pngHeader)]); err != nil {
		return err
	}
	if string(r.tmp[:len(pngHeader)]) != pngHeader {
		return FormatError("not a PNG file")
	}
	return nil
}

// readChunkHeader reads the next chunk's header record and restarts the
// running CRC over the type tag.
func (r *Reader) readChunkHeader() (uint32, uint32, error) {
	var ch chunkHeader
	if err := r.src.ReadRecord(&ch); err != nil {
		return 0, 0, err
	}
	r.crc.Reset()
	tb := tagBytes(ch.Tag)
	r.crc.Write(tb[:])
	return ch.Length, ch.Tag, nil
}

func (r *Reader) verifyChecksum() error {
	sum, err := r.src.ReadUint32()
	if err != nil {
		return err
	}
	if sum != r.crc.Sum32() {
		return FormatError("invalid checksum")
	}
	return nil
}

func (r *Reader) parseIHDR(length uint32) error {
	if length != 13 {
		return FormatError("bad IHDR length")
	}
	if err := r.src.ReadFull(r.tmp[:13]); err != nil {
		return err
	}
	r.crc.Write(r.tmp[:13])
	// The payload goes through tmp so the CRC covers the raw bytes; the
	// record decode reuses the same packed layout.
	if _, err := bst.Read(bytes.NewReader(r.tmp[:13]), bst.BigEndian, &r.header); err != nil {
		return FormatError("bad IHDR: " + err.Error())
	}
	if err := r.verifyChecksum(); err != nil {
		return err
	}
	return r.header.validate()
}

// load runs the pre-IDAT chunk loop, the streaming decode and the post-IDAT
// chunk loop.
func (r *Reader) load(opts *Options) (*PixelStorage, error) {
	if opts.Scratch == nil {
		opts.Scratch = NewScratch(DefaultScratchBytes)
	}
	defer opts.Scratch.Reset()

	for {
		length, tag, err := r.readChunkHeader()
		if err != nil {
			return nil, err
		}
		switch tag {
		case TagIHDR:
			return nil, chunkOrderError
		case TagIEND:
			return nil, FormatError("missing IDAT")
		case TagPLTE:
			if err := r.parsePLTE(length); err != nil {
				return nil, err
			}
			if err := r.offerHandled(TagPLTE, opts); err != nil {
				return nil, err
			}
		case TagIDAT:
			r.stage = dsSeenIDAT
			return r.decodeImage(length, opts)
		default:
			if err := r.dispatchChunk(tag, length, opts); err != nil {
				return nil, err
			}
		}
	}
}

func (r *Reader) parsePLTE(length uint32) error {
	if r.stage != dsSeenIHDR {
		return chunkOrderError
	}
	ct := r.header.ColorType
	if ct == ColorGrayscale || ct == ColorGrayscaleAlpha {
		return FormatError("PLTE, color type mismatch")
	}
	if length%3 != 0 {
		return FormatError("bad PLTE length")
	}
	n := int(length / 3)
	max := 256
	if ct == ColorIndexed {
		max = 1 << r.header.BitDepth
	}
	if n == 0 || n > max {
		return FormatError("bad PLTE length")
	}
	// Zero-copy on the in-memory source; a window view on the file source.
	// Either way the triples are widened out of the view before it can go
	// stale.
	view, err := r.src.Borrow(int(length))
	if err != nil {
		return err
	}
	r.crc.Write(view)
	r.palette = make([]color.RGBA, n)
	for i := range r.palette {
		r.palette[i] = color.RGBA{R: view[3*i], G: view[3*i+1], B: view[3*i+2], A: 0xff}
	}
	r.paletteLen = n
	r.stage = dsSeenPLTE
	return r.verifyChecksum()
}

// widen applies a processor-returned pixel format, enforcing that the pixel
// stride never decreases across the chain.
func (r *Reader) widen(f PixelFormat) error {
	if f == r.format {
		return nil
	}
	if f == FormatInvalid || f.PixelStride() < r.format.PixelStride() {
		return FormatError("processor narrowed pixel format")
	}
	r.format = f
	return nil
}

// dispatchChunk offers a chunk the orchestrator does not handle itself to
// the processor list. Every matching processor sees a critical chunk; the
// first matching processor consumes an ancillary one. With no match, a
// critical chunk is fatal and an ancillary chunk is skipped.
func (r *Reader) dispatchChunk(tag, length uint32, opts *Options) error {
	ctx := &ChunkContext{
		Header:     r.header,
		Format:     r.format,
		Tag:        tag,
		Length:     length,
		PaletteLen: r.paletteLen,
		Scratch:    opts.Scratch,
		src:        r.src,
		crc:        r.crc,
	}
	matched := false
	for _, p := range opts.Processors {
		if p.ID() != tag {
			continue
		}
		matched = true
		f, err := p.ProcessChunk(ctx)
		if err != nil {
			return err
		}
		if err := r.widen(f); err != nil {
			return err
		}
		ctx.Format = r.format
		if !critical(tag) {
			break
		}
	}
	if !matched {
		if critical(tag) {
			return FormatError("unknown critical chunk " + tagString(tag))
		}
		return r.src.SeekBy(int64(length) + 4)
	}
	if !ctx.consumed() {
		return r.src.SeekBy(int64(ctx.Length) + 4)
	}
	return nil
}

// offerHandled runs ProcessChunk for a critical chunk whose body the
// orchestrator already consumed; processors only get to widen the format.
func (r *Reader) offerHandled(tag uint32, opts *Options) error {
	ctx := &ChunkContext{
		Header:     r.header,
		Format:     r.format,
		Tag:        tag,
		PaletteLen: r.paletteLen,
		Scratch:    opts.Scratch,
		src:        r.src,
		crc:        r.crc,
		trailer:    true,
	}
	for _, p := range opts.Processors {
		if p.ID() != tag {
			continue
		}
		f, err := p.ProcessChunk(ctx)
		if err != nil {
			return err
		}
		if err := r.widen(f); err != nil {
			return err
		}
		ctx.Format = r.format
	}
	return nil
}

// decodeImage drives the row pipeline over the IDAT run beginning with a
// chunk of the given payload length, then finishes the chunk loop through
// IEND.
func (r *Reader) decodeImage(length uint32, opts *Options) (*PixelStorage, error) {
	h := r.header
	width, height := int(h.Width), int(h.Height)
	stride := r.format.PixelStride()

	nPixels64 := int64(width) * int64(height)
	nPixels := int(nPixels64)
	if nPixels64 != int64(nPixels) || nPixels != nPixels*stride/stride {
		return nil, UnsupportedError("dimension overflow")
	}
	if h.ColorType == ColorIndexed && r.paletteLen == 0 {
		return nil, FormatError("missing palette")
	}

	ir := newIDATReader(r.src, length)
	zr, err := zlib.NewReader(ir)
	if err != nil {
		return nil, zlibError(err)
	}
	defer zr.Close()

	storage := newPixelStorage(r.format, nPixels)

	// Palette wiring: the widened entries land in the storage's palette for
	// indexed outputs, or stay decoder-local for processor lookups when a
	// processor widened the output to a direct format.
	var active []color.RGBA
	if r.paletteLen > 0 {
		if storage.Palette != nil {
			copy(storage.Palette, r.palette)
			active = storage.Palette[:r.paletteLen]
		} else {
			active = r.palette
		}
		pctx := &PaletteContext{Header: h, Format: r.format, Palette: active, Scratch: opts.Scratch}
		for _, p := range opts.Processors {
			if err := p.ProcessPalette(pctx); err != nil {
				return nil, err
			}
		}
	}

	fs := h.FilterStride()
	lb := h.LineBytes()
	cr := make([]byte, fs+lb)
	pr := make([]byte, fs+lb)
	rowStride := width * stride
	depth, channels := int(h.BitDepth), h.Channels()
	srcFormat := h.startFormat()

	runRowHooks := func(row []byte, y int, order binary.ByteOrder) error {
		for _, p := range opts.Processors {
			rctx := &RowContext{
				Header:  h,
				Format:  srcFormat,
				Row:     row,
				Stride:  stride,
				Y:       y,
				Palette: active,
				Order:   order,
			}
			f, err := p.ProcessRow(rctx)
			if err != nil {
				return err
			}
			if f != srcFormat && (f.PixelStride() < srcFormat.PixelStride() || f.PixelStride() > stride) {
				return FormatError("processor narrowed pixel format")
			}
		}
		return nil
	}

	if h.Interlace == InterlaceNone {
		for y := 0; y < height; y++ {
			if err := readRow(zr, cr, pr, fs, lb); err != nil {
				return nil, err
			}
			dst := storage.Pix[y*rowStride : (y+1)*rowStride]
			spreadRow(dst, cr[fs:fs+lb], depth, channels, stride, binary.NativeEndian)
			if err := runRowHooks(dst, y, binary.NativeEndian); err != nil {
				return nil, err
			}
			cr, pr = pr, cr
		}
	} else {
		passRow := make([]byte, rowStride)
		for _, scan := range interlacing {
			pw, ph := scan.passSize(width, height)
			if pw == 0 || ph == 0 {
				continue
			}
			plb := lineBytes(pw, depth, channels)
			for i := range pr[:fs+plb] {
				pr[i] = 0
			}
			for i := range cr[:fs] {
				cr[i] = 0
			}
			row := passRow[:pw*stride]
			for py := 0; py < ph; py++ {
				if err := readRow(zr, cr[:fs+plb], pr[:fs+plb], fs, plb); err != nil {
					return nil, err
				}
				// The intermediate pass row keeps 16-bit samples big-endian;
				// the scatter below applies the native conversion.
				spreadRow(row, cr[fs:fs+plb], depth, channels, stride, binary.BigEndian)
				y := scan.yOffset + py*scan.yFactor
				if err := runRowHooks(row, y, binary.BigEndian); err != nil {
					return nil, err
				}
				dstOff := y*rowStride + scan.xOffset*stride
				scatterPassRow(storage.Pix[dstOff:], row, pw, stride, scan.xFactor, depth == 16)
				cr, pr = pr, cr
			}
		}
	}

	// The inflate stream ends exactly at the last row; drain it so the
	// sub-stream verifies the trailing IDAT CRCs and rewinds to the chunk
	// after the run. Extra decompressed bytes are tolerated.
	if _, err := io.Copy(io.Discard, zr); err != nil {
		return nil, zlibError(err)
	}
	if _, err := io.Copy(io.Discard, ir); err != nil {
		return nil, err
	}

	return r.finish(storage, opts)
}

// readRow pulls one filtered row from the inflate stream into cr and
// reconstructs it against pr. The filter selector lands at cr[fs-1] and is
// cleared so the zero prefix stays intact when the buffers swap.
func readRow(zr io.Reader, cr, pr []byte, fs, lb int) error {
	if _, err := io.ReadFull(zr, cr[fs-1:fs+lb]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return FormatError("not enough pixel data")
		}
		return zlibError(err)
	}
	ft := cr[fs-1]
	cr[fs-1] = 0
	return defilter(cr, pr, fs, ft)
}

// finish consumes the chunks after the IDAT run, through IEND.
func (r *Reader) finish(storage *PixelStorage, opts *Options) (*PixelStorage, error) {
	for {
		length, tag, err := r.readChunkHeader()
		if err != nil {
			return nil, err
		}
		switch tag {
		case TagIEND:
			if length != 0 {
				return nil, FormatError("bad IEND length")
			}
			if err := r.verifyChecksum(); err != nil {
				return nil, err
			}
			r.stage = dsSeenIEND
			if err := r.offerHandled(TagIEND, opts); err != nil {
				return nil, err
			}
			return storage, nil
		case TagIHDR, TagPLTE, TagIDAT:
			return nil, chunkOrderError
		case TagTRNS:
			// Transparency after the image data has begun is ignored.
			if err := r.src.SeekBy(int64(length) + 4); err != nil {
				return nil, err
			}
		default:
			if err := r.dispatchChunk(tag, length, opts); err != nil {
				return nil, err
			}
		}
	}
}
