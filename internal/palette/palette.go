// Package palette remaps color indices through lookup tables.
package palette

import "fmt"

// Size is the number of entries in a full 8-bit table.
const Size = 256

// Table maps a sample value v to Table[v].
type Table []uint8

// Identity returns the n-entry table mapping every index to itself.
func Identity(n int) Table {
	t := make(Table, n)
	for i := range t {
		t[i] = uint8(i)
	}
	return t
}

// Quantize returns the 256-entry table mapping gray levels to v >> shift.
// A shift of 6 reduces 8-bit gray to the four shades of a 2bpp screen.
func Quantize(shift uint) Table {
	t := make(Table, Size)
	for i := range t {
		t[i] = uint8(i >> shift)
	}
	return t
}

// Invert returns the inverse of a permutation table.
func (t Table) Invert() (Table, error) {
	if len(t) == 0 || len(t) > Size {
		return nil, fmt.Errorf("%w: %d entries", ErrTableSize, len(t))
	}
	inv := make(Table, len(t))
	seen := make([]bool, len(t))
	for i, v := range t {
		if int(v) >= len(t) || seen[v] {
			return nil, fmt.Errorf("%w: entry %d maps to %d", ErrNotInvertible, i, v)
		}
		seen[v] = true
		inv[v] = uint8(i)
	}
	return inv, nil
}

// Translate replaces every sample in buf with table[sample]. Every sample is
// checked against the table before any is replaced, so on error buf is
// unchanged.
func Translate(buf []uint8, table Table) error {
	if len(table) == 0 {
		return fmt.Errorf("%w: empty table", ErrTableSize)
	}
	if len(table) < Size {
		for i, v := range buf {
			if int(v) >= len(table) {
				return fmt.Errorf("%w: sample %d at offset %d, table has %d entries",
					ErrIndexOutOfRange, v, i, len(table))
			}
		}
	}
	for i, v := range buf {
		buf[i] = table[v]
	}
	return nil
}
