package pngstream

import "encoding/binary"

// spreadRow expands one defiltered row into the destination row at the final
// pixel stride. src holds the packed samples (no filter byte); dst is
// len(dst)/pixelStride pixels long. Channels the destination format carries
// beyond the source's are left untouched, so a widening processor can fill
// them in afterwards.
//
// For 16-bit depths the samples arrive big-endian; order selects the byte
// order they are stored with. The non-interlaced path normalizes to native
// order here, while the Adam7 path keeps big-endian in the intermediate pass
// row and defers the swap to the scatter into the final buffer.
func spreadRow(dst, src []byte, depth, channels, pixelStride int, order binary.ByteOrder) {
	switch {
	case depth < 8:
		// Sub-byte depths exist only for single-channel sources. Samples
		// are packed high-bit-first within each byte.
		bits := uint(depth)
		mask := byte(1<<bits - 1)
		di := 0
		for _, b := range src {
			for shift := 8 - bits; ; shift -= bits {
				if di >= len(dst) {
					return
				}
				dst[di] = b >> shift & mask
				di += pixelStride
				if shift == 0 {
					break
				}
			}
		}
	case depth == 8:
		si := 0
		for di := 0; di+channels <= len(dst); di += pixelStride {
			copy(dst[di:di+channels], src[si:si+channels])
			si += channels
		}
	default:
		si := 0
		for di := 0; di+2*channels <= len(dst); di += pixelStride {
			for c := 0; c < channels; c++ {
				order.PutUint16(dst[di+2*c:], binary.BigEndian.Uint16(src[si:]))
				si += 2
			}
		}
	}
}

// scatterPassRow copies the pixels of one deinterlaced pass row into their
// final positions. row holds pw pixels at the destination stride; dst is the
// image row the pass maps onto, starting at the pass's x offset. swap16
// applies the deferred big-endian to native conversion of the Adam7 path.
func scatterPassRow(dst, row []byte, pw, stride, xFactor int, swap16 bool) {
	for x := 0; x < pw; x++ {
		d := dst[x*xFactor*stride:]
		s := row[x*stride:]
		if swap16 {
			for c := 0; c+2 <= stride; c += 2 {
				binary.NativeEndian.PutUint16(d[c:], binary.BigEndian.Uint16(s[c:]))
			}
		} else {
			copy(d[:stride], s[:stride])
		}
	}
}
