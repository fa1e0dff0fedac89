package pngstream

import (
	"encoding/binary"
	"hash"
	"image/color"
)

// A Processor consumes chunks, palette finalization and decoded rows, and
// may widen the destination pixel format. All three hooks are optional;
// embed NopProcessor to supply defaults.
//
// ProcessChunk runs when a chunk whose tag equals ID is encountered. For
// ancillary chunks and for critical chunks the decoder does not handle
// itself, the processor owns the chunk body: it may consume the payload and
// trailing CRC through the context or call Skip, and whatever it leaves
// unread is skipped by the decoder. For PLTE and IEND the body has already
// been handled internally and the context carries no remaining payload. The
// returned format replaces the
// current destination format; its pixel stride must not decrease.
//
// ProcessPalette runs once, after the palette entries have been widened from
// RGB triples into the destination RGBA palette and before any row decodes.
//
// ProcessRow runs once per fully spread destination row, strictly before the
// next row's defilter, and may rewrite the row in place. Each processor sees
// the row's original source format regardless of what earlier processors
// returned, so processors compose.
type Processor interface {
	ID() uint32
	ProcessChunk(ctx *ChunkContext) (PixelFormat, error)
	ProcessPalette(ctx *PaletteContext) error
	ProcessRow(ctx *RowContext) (PixelFormat, error)
}

// NopProcessor provides no-op hook implementations for embedding.
type NopProcessor struct{}

func (NopProcessor) ProcessChunk(ctx *ChunkContext) (PixelFormat, error) {
	if err := ctx.Skip(); err != nil {
		return ctx.Format, err
	}
	return ctx.Format, nil
}

func (NopProcessor) ProcessPalette(*PaletteContext) error { return nil }

func (NopProcessor) ProcessRow(ctx *RowContext) (PixelFormat, error) {
	return ctx.Format, nil
}

// ChunkContext is handed to ProcessChunk. Length counts the payload bytes
// not yet consumed; PaletteLen is the number of palette entries seen so far
// (zero before PLTE).
type ChunkContext struct {
	Header     Header
	Format     PixelFormat
	Tag        uint32
	Length     uint32
	PaletteLen int
	Scratch    *Scratch

	src     byteSource
	crc     hash.Hash32
	trailer bool
}

// ReadPayload reads the next len(p) payload bytes, folding them into the
// chunk's running CRC.
func (c *ChunkContext) ReadPayload(p []byte) error {
	if uint32(len(p)) > c.Length {
		return FormatError("chunk payload overread")
	}
	if err := c.src.ReadFull(p); err != nil {
		return err
	}
	c.crc.Write(p)
	c.Length -= uint32(len(p))
	return nil
}

// VerifyChecksum reads the chunk trailer and checks it against the payload
// read so far. The whole payload must have been consumed first.
func (c *ChunkContext) VerifyChecksum() error {
	if c.Length != 0 {
		return FormatError("chunk payload not fully read")
	}
	sum, err := c.src.ReadUint32()
	if err != nil {
		return err
	}
	c.trailer = true
	if sum != c.crc.Sum32() {
		return FormatError("invalid checksum")
	}
	return nil
}

// Skip advances past the remaining payload and the trailer without CRC
// validation.
func (c *ChunkContext) Skip() error {
	if c.trailer {
		return nil
	}
	if err := c.src.SeekBy(int64(c.Length) + 4); err != nil {
		return err
	}
	c.Length = 0
	c.trailer = true
	return nil
}

func (c *ChunkContext) consumed() bool { return c.trailer }

// PaletteContext is handed to ProcessPalette. Palette is the destination
// palette, already widened to RGBA with opaque alpha.
type PaletteContext struct {
	Header  Header
	Format  PixelFormat
	Palette []color.RGBA
	Scratch *Scratch
}

// RowContext is handed to ProcessRow. Row holds the spread pixels at Stride
// bytes per pixel; Format is the row's source format (what the samples mean,
// not how wide the cells are). Order is the byte order 16-bit samples are
// stored with at the time the hook runs. Y is the image row index.
type RowContext struct {
	Header  Header
	Format  PixelFormat
	Row     []byte
	Stride  int
	Y       int
	Palette []color.RGBA
	Order   binary.ByteOrder
}

// Transparency datum kinds held by TransparencyProcessor.
const (
	trnsNone = iota
	trnsGray
	trnsColor
	trnsPalette
)

// TransparencyProcessor implements the tRNS chunk: a transparent key color
// for grayscale and truecolor images, or per-entry palette alpha for indexed
// images. Keyed images are widened to carry an alpha channel; indexed images
// are handled entirely through the palette.
type TransparencyProcessor struct {
	NopProcessor

	kind  int
	gray  uint16
	color [3]uint16
	alpha []byte
}

// NewTransparencyProcessor returns the built-in tRNS processor.
func NewTransparencyProcessor() *TransparencyProcessor {
	return &TransparencyProcessor{}
}

func (*TransparencyProcessor) ID() uint32 { return TagTRNS }

func (p *TransparencyProcessor) ProcessChunk(ctx *ChunkContext) (PixelFormat, error) {
	switch {
	case ctx.Header.ColorType == ColorGrayscale && ctx.Length == 2:
		var b [2]byte
		if err := ctx.ReadPayload(b[:]); err != nil {
			return ctx.Format, err
		}
		if err := ctx.VerifyChecksum(); err != nil {
			return ctx.Format, err
		}
		p.kind = trnsGray
		p.gray = binary.BigEndian.Uint16(b[:])
		if ctx.Header.BitDepth == 16 {
			return Grayscale16Alpha, nil
		}
		return Grayscale8Alpha, nil

	case ctx.Header.ColorType == ColorRGB && ctx.Length == 6:
		var b [6]byte
		if err := ctx.ReadPayload(b[:]); err != nil {
			return ctx.Format, err
		}
		if err := ctx.VerifyChecksum(); err != nil {
			return ctx.Format, err
		}
		p.kind = trnsColor
		for i := range p.color {
			p.color[i] = binary.BigEndian.Uint16(b[2*i:])
		}
		if ctx.Header.BitDepth == 16 {
			return RGBA64, nil
		}
		return RGBA32, nil

	case ctx.Header.ColorType == ColorIndexed && ctx.PaletteLen > 0 && int(ctx.Length) <= ctx.PaletteLen:
		alpha, err := ctx.Scratch.Alloc(int(ctx.Length))
		if err != nil {
			return ctx.Format, err
		}
		if err := ctx.ReadPayload(alpha); err != nil {
			return ctx.Format, err
		}
		if err := ctx.VerifyChecksum(); err != nil {
			return ctx.Format, err
		}
		p.kind = trnsPalette
		p.alpha = alpha
		return ctx.Format, nil
	}

	// Mismatched length or color type: invalid but non-fatal, skip it.
	if err := ctx.Skip(); err != nil {
		return ctx.Format, err
	}
	return ctx.Format, nil
}

func (p *TransparencyProcessor) ProcessPalette(ctx *PaletteContext) error {
	if p.kind != trnsPalette {
		return nil
	}
	for i, a := range p.alpha {
		if i >= len(ctx.Palette) {
			break
		}
		ctx.Palette[i].A = a
	}
	return nil
}

func (p *TransparencyProcessor) ProcessRow(ctx *RowContext) (PixelFormat, error) {
	switch p.kind {
	case trnsGray:
		switch ctx.Format {
		case Grayscale1, Grayscale2, Grayscale4, Grayscale8:
			key := byte(p.gray)
			for di := 0; di < len(ctx.Row); di += ctx.Stride {
				if ctx.Row[di] == key {
					ctx.Row[di+1] = 0
				} else {
					ctx.Row[di+1] = 0xff
				}
			}
			return Grayscale8Alpha, nil
		case Grayscale16:
			for di := 0; di < len(ctx.Row); di += ctx.Stride {
				if ctx.Order.Uint16(ctx.Row[di:]) == p.gray {
					ctx.Order.PutUint16(ctx.Row[di+2:], 0)
				} else {
					ctx.Order.PutUint16(ctx.Row[di+2:], 0xffff)
				}
			}
			return Grayscale16Alpha, nil
		}
	case trnsColor:
		switch ctx.Format {
		case RGB24:
			r, g, b := byte(p.color[0]), byte(p.color[1]), byte(p.color[2])
			for di := 0; di < len(ctx.Row); di += ctx.Stride {
				if ctx.Row[di] == r && ctx.Row[di+1] == g && ctx.Row[di+2] == b {
					ctx.Row[di+3] = 0
				} else {
					ctx.Row[di+3] = 0xff
				}
			}
			return RGBA32, nil
		case RGB48:
			for di := 0; di < len(ctx.Row); di += ctx.Stride {
				match := ctx.Order.Uint16(ctx.Row[di:]) == p.color[0] &&
					ctx.Order.Uint16(ctx.Row[di+2:]) == p.color[1] &&
					ctx.Order.Uint16(ctx.Row[di+4:]) == p.color[2]
				if match {
					ctx.Order.PutUint16(ctx.Row[di+6:], 0)
				} else {
					ctx.Order.PutUint16(ctx.Row[di+6:], 0xffff)
				}
			}
			return RGBA64, nil
		}
	case trnsPalette:
		// Indexed transparency is applied through the palette.
	}
	return ctx.Format, nil
}

// PaletteProcessor expands indexed images into direct RGBA pixels: it widens
// indexed destination formats to RGBA32 when the PLTE chunk appears, and
// resolves each index through the palette as rows decode.
type PaletteProcessor struct {
	NopProcessor
}

// NewPaletteProcessor returns the built-in PLTE expansion processor.
func NewPaletteProcessor() *PaletteProcessor {
	return &PaletteProcessor{}
}

func (*PaletteProcessor) ID() uint32 { return TagPLTE }

func (p *PaletteProcessor) ProcessChunk(ctx *ChunkContext) (PixelFormat, error) {
	// PLTE is critical: the body was consumed internally before dispatch.
	if ctx.Format.Indexed() {
		return RGBA32, nil
	}
	return ctx.Format, nil
}

func (p *PaletteProcessor) ProcessRow(ctx *RowContext) (PixelFormat, error) {
	if !ctx.Format.Indexed() || len(ctx.Palette) == 0 {
		return ctx.Format, nil
	}
	for di := 0; di < len(ctx.Row); di += ctx.Stride {
		idx := int(ctx.Row[di])
		if idx >= len(ctx.Palette) {
			return ctx.Format, FormatError("palette index out of range")
		}
		e := ctx.Palette[idx]
		ctx.Row[di] = e.R
		ctx.Row[di+1] = e.G
		ctx.Row[di+2] = e.B
		ctx.Row[di+3] = e.A
	}
	return RGBA32, nil
}
