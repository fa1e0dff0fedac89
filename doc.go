// Package pngstream implements a streaming, chunk-driven PNG decoder.
//
// The decoder parses the PNG container, validates every critical chunk's
// CRC, inflates the concatenated IDAT payloads, reverses per-row filtering,
// de-interlaces Adam7 images and materializes pixels in one of a closed set
// of typed layouts. Auxiliary chunks can reshape the output through
// processors: small values hooked into chunk dispatch, palette finalization
// and row decoding. The built-in processors implement tRNS transparency and
// PLTE palette expansion.
//
// Basic use:
//
//	r := pngstream.NewReaderBytes(data)
//	img, err := r.Load(pngstream.DefaultOptions())
//
// or, to inspect dimensions first:
//
//	r := pngstream.NewReader(f)
//	hdr, err := r.LoadHeader()
//	...
//	img, err := r.Load(pngstream.DefaultOptions())
package pngstream
