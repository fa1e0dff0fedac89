package pngstream

import (
	"encoding/binary"
	"errors"
	"io"

	bst "github.com/mixcode/binarystruct"
)

// sourceBufferSize is the refill window of the file-backed source. Every
// Borrow the decoder issues is far smaller than this (the largest is a full
// 768-byte palette), so borrowed views never straddle a refill.
const sourceBufferSize = 1 << 14

// byteSource is the reading surface the decoder consumes. Borrow returns a
// view of the next n bytes without copying when the source allows it;
// ReadFull copies into the caller's buffer; ReadRecord decodes a packed
// big-endian record into a tagged struct; SeekBy moves the logical position
// by a signed delta. Short input surfaces as io.ErrUnexpectedEOF.
type byteSource interface {
	Borrow(n int) ([]byte, error)
	ReadFull(p []byte) error
	ReadRecord(rec interface{}) error
	ReadUint32() (uint32, error)
	ReadUint16() (uint16, error)
	SeekBy(delta int64) error
}

// recordReader adapts a byteSource for binarystruct decoding.
type recordReader struct {
	src byteSource
}

func (r recordReader) Read(p []byte) (int, error) {
	if err := r.src.ReadFull(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func readRecord(src byteSource, rec interface{}) error {
	if _, err := bst.Read(recordReader{src}, bst.BigEndian, rec); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

// memSource reads from an in-memory buffer. Borrow is zero-copy.
type memSource struct {
	data []byte
	pos  int
}

func (m *memSource) Borrow(n int) ([]byte, error) {
	if n < 0 || n > len(m.data)-m.pos {
		return nil, io.ErrUnexpectedEOF
	}
	b := m.data[m.pos : m.pos+n : m.pos+n]
	m.pos += n
	return b, nil
}

func (m *memSource) ReadFull(p []byte) error {
	b, err := m.Borrow(len(p))
	if err != nil {
		return err
	}
	copy(p, b)
	return nil
}

func (m *memSource) ReadRecord(rec interface{}) error { return readRecord(m, rec) }

func (m *memSource) ReadUint32() (uint32, error) {
	b, err := m.Borrow(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (m *memSource) ReadUint16() (uint16, error) {
	b, err := m.Borrow(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (m *memSource) SeekBy(delta int64) error {
	np := int64(m.pos) + delta
	if np < 0 || np > int64(len(m.data)) {
		return io.ErrUnexpectedEOF
	}
	m.pos = int(np)
	return nil
}

// fileSource reads from an io.ReadSeeker through a refill window. The
// window invariant is pos <= end <= len(buf).
type fileSource struct {
	r        io.ReadSeeker
	buf      [sourceBufferSize]byte
	pos, end int
}

// fill ensures at least n bytes are buffered ahead of pos, compacting the
// window first when needed.
func (f *fileSource) fill(n int) error {
	if n > len(f.buf) {
		return UnsupportedError("read larger than source buffer")
	}
	if f.end-f.pos >= n {
		return nil
	}
	copy(f.buf[:], f.buf[f.pos:f.end])
	f.end -= f.pos
	f.pos = 0
	for f.end < n {
		m, err := f.r.Read(f.buf[f.end:])
		f.end += m
		if err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}

func (f *fileSource) Borrow(n int) ([]byte, error) {
	if n < 0 {
		return nil, io.ErrUnexpectedEOF
	}
	if err := f.fill(n); err != nil {
		return nil, err
	}
	b := f.buf[f.pos : f.pos+n : f.pos+n]
	f.pos += n
	return b, nil
}

func (f *fileSource) ReadFull(p []byte) error {
	n := copy(p, f.buf[f.pos:f.end])
	f.pos += n
	if n == len(p) {
		return nil
	}
	if _, err := io.ReadFull(f.r, p[n:]); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

func (f *fileSource) ReadRecord(rec interface{}) error { return readRecord(f, rec) }

func (f *fileSource) ReadUint32() (uint32, error) {
	b, err := f.Borrow(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (f *fileSource) ReadUint16() (uint16, error) {
	b, err := f.Borrow(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (f *fileSource) SeekBy(delta int64) error {
	np := int64(f.pos) + delta
	if np >= 0 && np <= int64(f.end) {
		f.pos = int(np)
		return nil
	}
	// Outside the window. The underlying reader sits at the window's end,
	// so translate the logical delta before the native seek and drop the
	// buffered bytes.
	if _, err := f.r.Seek(delta-int64(f.end-f.pos), io.SeekCurrent); err != nil {
		return err
	}
	f.pos, f.end = 0, 0
	return nil
}
