package palette

import "errors"

var (
	// ErrIndexOutOfRange indicates a sample with no table entry.
	ErrIndexOutOfRange = errors.New("palette: sample outside table")
	// ErrTableSize indicates an empty or oversized table.
	ErrTableSize = errors.New("palette: invalid table size")
	// ErrNotInvertible indicates a table that is not a permutation.
	ErrNotInvertible = errors.New("palette: table is not a permutation")
)
