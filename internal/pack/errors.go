package pack

import "errors"

var (
	// ErrGeometry indicates dimensions that are not positive multiples of BlockSize.
	ErrGeometry = errors.New("pack: dimensions must be positive multiples of 8")
	// ErrLength indicates an input or output buffer of the wrong size.
	ErrLength = errors.New("pack: buffer length mismatch")
	// ErrSampleRange indicates a sample outside [0, 3].
	ErrSampleRange = errors.New("pack: sample out of 2-bit range")
)
