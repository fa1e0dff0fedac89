package pngstream

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemSource(t *testing.T) {
	src := &memSource{data: []byte{0, 0, 0, 5, 'A', 'B', 'C', 1, 2}}

	n, err := src.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(5), n)

	b, err := src.Borrow(3)
	require.NoError(t, err)
	require.Equal(t, []byte("ABC"), b)

	require.NoError(t, src.SeekBy(-3))
	p := make([]byte, 3)
	require.NoError(t, src.ReadFull(p))
	require.Equal(t, []byte("ABC"), p)

	v, err := src.ReadUint16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x0102), v)

	_, err = src.Borrow(1)
	require.Equal(t, io.ErrUnexpectedEOF, err)
	require.Equal(t, io.ErrUnexpectedEOF, src.SeekBy(1))
}

// Borrow on the in-memory source aliases the input, it does not copy.
func TestMemSourceBorrowZeroCopy(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	src := &memSource{data: data}
	b, err := src.Borrow(4)
	require.NoError(t, err)
	data[0] = 9
	require.Equal(t, byte(9), b[0])
}

func TestFileSource(t *testing.T) {
	data := make([]byte, 3*sourceBufferSize)
	for i := range data {
		data[i] = byte(i)
	}
	src := &fileSource{r: bytes.NewReader(data)}

	b, err := src.Borrow(4)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 1, 2, 3}, b)

	// Backward within the window.
	require.NoError(t, src.SeekBy(-4))
	v, err := src.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(0x00010203), v)

	// Forward past the window forces a native seek.
	require.NoError(t, src.SeekBy(2*sourceBufferSize))
	b, err = src.Borrow(1)
	require.NoError(t, err)
	idx := 2*sourceBufferSize + 4
	require.Equal(t, byte(idx), b[0])

	// Backward beyond the window start likewise.
	require.NoError(t, src.SeekBy(-(2*sourceBufferSize + 1)))
	b, err = src.Borrow(1)
	require.NoError(t, err)
	require.Equal(t, byte(4), b[0])
}

func TestFileSourceLargeRead(t *testing.T) {
	data := make([]byte, 2*sourceBufferSize)
	for i := range data {
		data[i] = byte(i * 7)
	}
	src := &fileSource{r: bytes.NewReader(data)}

	// Prime the window, then read past it in one call.
	_, err := src.Borrow(8)
	require.NoError(t, err)
	p := make([]byte, len(data)-8)
	require.NoError(t, src.ReadFull(p))
	require.Equal(t, data[8:], p)

	require.Equal(t, io.ErrUnexpectedEOF, src.ReadFull(p[:1]))
}

func TestFileSourceOversizedBorrow(t *testing.T) {
	src := &fileSource{r: bytes.NewReader(make([]byte, 10))}
	_, err := src.Borrow(sourceBufferSize + 1)
	require.Error(t, err)
	require.IsType(t, UnsupportedError(""), err)
}

func TestFileSourceShortInput(t *testing.T) {
	src := &fileSource{r: bytes.NewReader([]byte{1, 2})}
	_, err := src.Borrow(4)
	require.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestReadRecord(t *testing.T) {
	data := []byte{0, 0, 0, 13, 'I', 'H', 'D', 'R'}

	var ch chunkHeader
	require.NoError(t, (&memSource{data: data}).ReadRecord(&ch))
	require.Equal(t, uint32(13), ch.Length)
	require.Equal(t, TagIHDR, ch.Tag)

	fsrc := &fileSource{r: bytes.NewReader(data)}
	ch = chunkHeader{}
	require.NoError(t, fsrc.ReadRecord(&ch))
	require.Equal(t, TagIHDR, ch.Tag)

	err := (&memSource{data: data[:5]}).ReadRecord(&ch)
	require.Equal(t, io.ErrUnexpectedEOF, err)
}
