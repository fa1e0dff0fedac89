package pngstream

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zlib"
)

func benchPNG(b *testing.B, w, h int, depth, ct byte, extra ...chunkSpec) []byte {
	hdr := Header{Width: uint32(w), Height: uint32(h), BitDepth: depth, ColorType: ct}
	raw := make([]byte, h*(1+hdr.LineBytes()))
	for y := 0; y < h; y++ {
		row := raw[y*(1+hdr.LineBytes()):]
		row[0] = byte(y % nFilter)
		for x := 1; x <= hdr.LineBytes(); x++ {
			row[x] = byte(x*31 ^ y*17)
		}
	}
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	if _, err := zw.Write(raw); err != nil {
		b.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		b.Fatal(err)
	}

	chunks := []chunkSpec{{"IHDR", ihdrPayload(uint32(w), uint32(h), depth, ct, InterlaceNone)}}
	chunks = append(chunks, extra...)
	chunks = append(chunks, chunkSpec{"IDAT", z.Bytes()}, chunkSpec{"IEND", nil})
	return buildPNG(chunks...)
}

func BenchmarkDecodeRGBA(b *testing.B) {
	png := benchPNG(b, 256, 256, 8, ColorRGBA)
	b.SetBytes(256 * 256 * 4)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := NewReaderBytes(png).Load(DefaultOptions()); err != nil {
			b.Fatalf("decode failed: %v", err)
		}
	}
}

func BenchmarkDecodeGray16(b *testing.B) {
	png := benchPNG(b, 256, 256, 16, ColorGrayscale)
	b.SetBytes(256 * 256 * 2)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := NewReaderBytes(png).Load(DefaultOptions()); err != nil {
			b.Fatalf("decode failed: %v", err)
		}
	}
}

func BenchmarkDecodeIndexed(b *testing.B) {
	plte := make([]byte, 3*256)
	for i := range plte {
		plte[i] = byte(i * 7)
	}
	png := benchPNG(b, 256, 256, 8, ColorIndexed, chunkSpec{"PLTE", plte})
	b.SetBytes(256 * 256)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := NewReaderBytes(png).Load(DefaultOptions()); err != nil {
			b.Fatalf("decode failed: %v", err)
		}
	}
}
