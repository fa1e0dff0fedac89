package pngstream

import (
	"hash"
	"hash/crc32"
	"io"
)

// idatReader presents one or more IDAT chunks as one continuous stream,
// hiding the intermediate chunk trailers and headers from the inflater. If
// the PNG data looked like:
//
//	... len0 IDAT xxx crc0 len1 IDAT yy crc1 len2 IEND crc2
//
// then this reader presents xxxyy. Each chunk's CRC is verified on the
// transition out of it. When the chunk after the current one is not an IDAT,
// the reader seeks back over its header so the main loop can dispatch it,
// and reports end of stream from then on.
type idatReader struct {
	src    byteSource
	crc    hash.Hash32
	remain uint32
	done   bool
}

func newIDATReader(src byteSource, length uint32) *idatReader {
	r := &idatReader{src: src, remain: length, crc: crc32.NewIEEE()}
	tag := tagBytes(TagIDAT)
	r.crc.Write(tag[:])
	return r
}

func (r *idatReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	total := 0
	for total < len(p) && !r.done {
		if r.remain > 0 {
			n := len(p) - total
			if uint32(n) > r.remain {
				n = int(r.remain)
			}
			if err := r.src.ReadFull(p[total : total+n]); err != nil {
				return total, err
			}
			r.crc.Write(p[total : total+n])
			r.remain -= uint32(n)
			total += n
			continue
		}
		// Current IDAT exhausted: verify its CRC, then probe the next
		// chunk header.
		sum, err := r.src.ReadUint32()
		if err != nil {
			return total, err
		}
		if sum != r.crc.Sum32() {
			return total, FormatError("invalid checksum")
		}
		length, err := r.src.ReadUint32()
		if err != nil {
			return total, err
		}
		tag, err := r.src.ReadUint32()
		if err != nil {
			return total, err
		}
		if tag != TagIDAT {
			if err := r.src.SeekBy(-8); err != nil {
				return total, err
			}
			r.done = true
			break
		}
		r.remain = length
		r.crc.Reset()
		tb := tagBytes(TagIDAT)
		r.crc.Write(tb[:])
	}
	if total == 0 && r.done {
		return 0, io.EOF
	}
	return total, nil
}
