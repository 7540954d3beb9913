package screen

import "errors"

var (
	// ErrSource indicates a frame source that cannot be opened.
	ErrSource = errors.New("screen: invalid frame source")
	// ErrExhausted is returned by a replay source after its last file.
	ErrExhausted = errors.New("screen: frame source exhausted")
)
