package pngstream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPixelStrides(t *testing.T) {
	for _, tc := range []struct {
		f      PixelFormat
		stride int
	}{
		{Index1, 1},
		{Index4, 1},
		{Index8, 1},
		{Index16, 2},
		{Grayscale1, 1},
		{Grayscale8, 1},
		{Grayscale16, 2},
		{Grayscale8Alpha, 2},
		{Grayscale16Alpha, 4},
		{RGB24, 3},
		{RGBA32, 4},
		{RGB48, 6},
		{RGBA64, 8},
		{BGR24, 3},
		{BGRA32, 4},
		{RGB565, 2},
		{RGB555, 2},
		{Float32, 4},
	} {
		require.Equal(t, tc.stride, tc.f.PixelStride(), tc.f.String())
	}
	require.Equal(t, 0, FormatInvalid.PixelStride())
}

func TestNewPixelStorage(t *testing.T) {
	s := newPixelStorage(RGBA32, 10)
	require.Equal(t, 10, s.Len())
	require.Len(t, s.PixelsAsBytes(), 40)
	require.Nil(t, s.Palette)

	s = newPixelStorage(Index4, 6)
	require.Len(t, s.Pix, 6)
	require.Len(t, s.Palette, 16)

	s = newPixelStorage(Index8, 1)
	require.Len(t, s.Palette, 256)
}

func TestFormatIndexed(t *testing.T) {
	require.True(t, Index1.Indexed())
	require.True(t, Index16.Indexed())
	require.False(t, Grayscale8.Indexed())
	require.False(t, RGBA32.Indexed())
}

func TestHeaderDerived(t *testing.T) {
	h := Header{Width: 5, Height: 3, BitDepth: 1, ColorType: ColorGrayscale}
	require.Equal(t, 1, h.Channels())
	require.Equal(t, 1, h.LineBytes())
	require.Equal(t, 1, h.FilterStride())

	h = Header{Width: 5, Height: 3, BitDepth: 16, ColorType: ColorRGBA}
	require.Equal(t, 4, h.Channels())
	require.Equal(t, 40, h.LineBytes())
	require.Equal(t, 8, h.FilterStride())
}

func TestHeaderValidate(t *testing.T) {
	ok := Header{Width: 1, Height: 1, BitDepth: 8, ColorType: ColorRGBA}
	require.NoError(t, ok.validate())

	for name, h := range map[string]Header{
		"zero width":        {Width: 0, Height: 1, BitDepth: 8, ColorType: ColorRGBA},
		"bad depth":         {Width: 1, Height: 1, BitDepth: 3, ColorType: ColorGrayscale},
		"indexed 16":        {Width: 1, Height: 1, BitDepth: 16, ColorType: ColorIndexed},
		"rgb sub-byte":      {Width: 1, Height: 1, BitDepth: 4, ColorType: ColorRGB},
		"bad color type":    {Width: 1, Height: 1, BitDepth: 8, ColorType: 5},
		"bad compression":   {Width: 1, Height: 1, BitDepth: 8, ColorType: ColorRGBA, Compression: 1},
		"bad filter method": {Width: 1, Height: 1, BitDepth: 8, ColorType: ColorRGBA, FilterMethod: 1},
		"bad interlace":     {Width: 1, Height: 1, BitDepth: 8, ColorType: ColorRGBA, Interlace: 2},
	} {
		require.Error(t, h.validate(), name)
	}
}

func TestPassSize(t *testing.T) {
	// A 1x1 image only has pixels in the first pass.
	pw, ph := interlacing[0].passSize(1, 1)
	require.Equal(t, 1, pw)
	require.Equal(t, 1, ph)
	for _, scan := range interlacing[1:] {
		pw, ph := scan.passSize(1, 1)
		require.True(t, pw == 0 || ph == 0)
	}

	// 4x4 pass pixel counts sum to the image area.
	total := 0
	for _, scan := range interlacing {
		pw, ph := scan.passSize(4, 4)
		total += pw * ph
	}
	require.Equal(t, 16, total)
}
