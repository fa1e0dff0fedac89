package pngstream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScratch(t *testing.T) {
	s := NewScratch(16)
	a, err := s.Alloc(10)
	require.NoError(t, err)
	require.Len(t, a, 10)
	require.Equal(t, 6, s.Remaining())

	_, err = s.Alloc(7)
	require.Equal(t, ErrScratchExhausted, err)

	b, err := s.Alloc(6)
	require.NoError(t, err)
	require.Len(t, b, 6)

	s.Reset()
	require.Equal(t, 16, s.Remaining())

	// Allocations come back zeroed even after reuse.
	a[0] = 0xff
	s.Reset()
	c, err := s.Alloc(1)
	require.NoError(t, err)
	require.Equal(t, byte(0), c[0])
}
