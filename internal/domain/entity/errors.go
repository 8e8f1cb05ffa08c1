package entity

import "errors"

var (
	ErrMediaProbe      = errors.New("media probe failed")
	ErrExtraction      = errors.New("frame extraction failed")
	ErrReconstruction  = errors.New("reconstruction failed")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrEmptyInput      = errors.New("empty input")
	ErrFatal           = errors.New("fatal")

	ErrJobNotFound = errors.New("job not found")
)

// ErrorKind is the wire name of an error class, carried on failed events and job rows.
type ErrorKind string

const (
	ErrorKindNone            ErrorKind = ""
	ErrorKindMediaProbe      ErrorKind = "MediaProbeError"
	ErrorKindExtraction      ErrorKind = "ExtractionError"
	ErrorKindReconstruction  ErrorKind = "ReconstructionFailure"
	ErrorKindInvalidArgument ErrorKind = "InvalidArgument"
	ErrorKindEmptyInput      ErrorKind = "EmptyInput"
	ErrorKindFatal           ErrorKind = "Fatal"
)

// KindOf classifies err. Errors that do not wrap one of the sentinels are Fatal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrMediaProbe):
		return ErrorKindMediaProbe
	case errors.Is(err, ErrExtraction):
		return ErrorKindExtraction
	case errors.Is(err, ErrReconstruction):
		return ErrorKindReconstruction
	case errors.Is(err, ErrInvalidArgument):
		return ErrorKindInvalidArgument
	case errors.Is(err, ErrEmptyInput):
		return ErrorKindEmptyInput
	default:
		return ErrorKindFatal
	}
}
