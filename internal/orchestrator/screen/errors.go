package screen

import "errors"

var (
	// ErrSimilarFrame is returned by Process when a frame is perceptually
	// identical to the last recognized one and was not recognized again.
	ErrSimilarFrame = errors.New("screen: frame similar to previous")
	// ErrCapture wraps frame source failures returned by Refresh.
	ErrCapture = errors.New("screen: capture failed")
)
