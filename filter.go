package pngstream

// Row buffers carry a zero prefix of filterStride bytes ahead of the sample
// data, with the row's filter selector read out of position filterStride-1
// and cleared before reconstruction. The prefix makes every predictor
// reference uniform: cr[x-fs] and pr[x-fs] are in range for all sample
// positions, and read zero at the row's left edge.

// defilter reconstructs the current row in place from its filtered form,
// using the previous row for the Up, Average and Paeth predictors. cr and pr
// have identical lengths; fs is the filter stride. Arithmetic wraps at 8
// bits, as per the PNG spec.
func defilter(cr, pr []byte, fs int, ft byte) error {
	switch ft {
	case ftNone:
		// No-op.
	case ftSub:
		for x := fs; x < len(cr); x++ {
			cr[x] += cr[x-fs]
		}
	case ftUp:
		for x := fs; x < len(cr); x++ {
			cr[x] += pr[x]
		}
	case ftAverage:
		for x := fs; x < len(cr); x++ {
			cr[x] += uint8((int(cr[x-fs]) + int(pr[x])) / 2)
		}
	case ftPaeth:
		for x := fs; x < len(cr); x++ {
			cr[x] += paeth(cr[x-fs], pr[x], pr[x-fs])
		}
	default:
		return FormatError("bad filter type")
	}
	return nil
}

// paeth implements the Paeth filter function, as per the PNG spec.
func paeth(a, b, c uint8) uint8 {
	// This is an optimized version of the sample code in the PNG spec.
	// For example, the sample code starts with:
	//	p := int(a) + int(b) - int(c)
	//	pa := abs(p - int(a))
	// but the optimized form computes pa as abs(int(b) - int(c)) directly.
	pc := int(c)
	pa := int(b) - pc
	pb := int(a) - pc
	pc = abs(pa + pb)
	pa = abs(pa)
	pb = abs(pb)
	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
