package pngstream

import (
	"errors"
	"io"
)

// A FormatError reports that the input is not a valid PNG.
type FormatError string

func (e FormatError) Error() string { return "png: invalid format: " + string(e) }

// An UnsupportedError reports that the input uses a valid but unimplemented PNG feature.
type UnsupportedError string

func (e UnsupportedError) Error() string { return "png: unsupported feature: " + string(e) }

var chunkOrderError = FormatError("chunk out of order")

// zlibError folds inflate failures into the decoder's error set. Truncation
// and the decoder's own errors pass through unchanged; everything else the
// inflater reports means the compressed stream itself is malformed.
func zlibError(err error) error {
	if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
		return err
	}
	var fe FormatError
	var ue UnsupportedError
	if errors.As(err, &fe) || errors.As(err, &ue) {
		return err
	}
	return FormatError("inflate: " + err.Error())
}
