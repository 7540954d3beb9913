package reconcile

import "errors"

var (
	// ErrConflict means both inputs placed different glyphs at one position.
	ErrConflict = errors.New("reconcile: conflicting glyphs at one position")
	// ErrUnordered means an input is not strictly in scan order.
	ErrUnordered = errors.New("reconcile: input not in scan order")
	// ErrInvalidInput covers malformed matches.
	ErrInvalidInput = errors.New("reconcile: invalid input")
)
