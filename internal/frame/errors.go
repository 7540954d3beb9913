package frame

import "errors"

// Sentinel errors for frame construction and access. All of them describe
// caller precondition violations.
var (
	// ErrDimensions indicates a non-positive width or height.
	ErrDimensions = errors.New("frame: width and height must be positive")
	// ErrLayout indicates an unknown storage layout.
	ErrLayout = errors.New("frame: unknown layout")
	// ErrSampleCount indicates a sample buffer whose length is not width*height.
	ErrSampleCount = errors.New("frame: sample buffer length mismatch")
	// ErrOutOfBounds indicates coordinates outside the frame.
	ErrOutOfBounds = errors.New("frame: coordinates out of bounds")
	// ErrScreenRect indicates a crop rectangle that does not overlap the source image.
	ErrScreenRect = errors.New("frame: screen rectangle outside source image")
	// ErrDecode indicates bytes that no registered image format accepts.
	ErrDecode = errors.New("frame: undecodable image")
)
