// Package reconcile merges two match sequences from the same logical screen.
//
// Both inputs must be in scan order. A position present in both with the
// same glyph is corroborated and emitted once; the same position with
// different glyphs is a conflict and the merge yields nothing.
package reconcile

import (
	"fmt"

	"github.com/GriffinCanCode/glyphscan/internal/scan"
)

// Result summarizes a merge.
type Result struct {
	// Count is the number of matches written.
	Count int
	// Agreement counts positions both inputs reported with the same glyph.
	Agreement int
	// Truncated is set when the destination filled before both inputs were
	// consumed.
	Truncated bool
}

// ConflictError reports the position where the inputs disagree.
type ConflictError struct {
	X, Y int
	A, B int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("reconcile: glyph %d and %d both at (%d, %d)", e.A, e.B, e.X, e.Y)
}

// Is makes errors.Is(err, ErrConflict) hold for any ConflictError.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// MergeInto merges a and b into dst without growing it and recomputes the
// spacing flags of the result with gap. On conflict dst holds no meaningful
// output and the returned error wraps ErrConflict.
func MergeInto(dst, a, b []scan.Match, gap int) (Result, error) {
	if err := checkOrder("a", a); err != nil {
		return Result{}, err
	}
	if err := checkOrder("b", b); err != nil {
		return Result{}, err
	}

	var res Result
	i, j := 0, 0
	for i < len(a) && j < len(b) && res.Count < len(dst) {
		x, y := a[i], b[j]
		switch {
		case x.Before(y):
			dst[res.Count] = x
			i++
		case y.Before(x):
			dst[res.Count] = y
			j++
		default:
			if x.Glyph.ID != y.Glyph.ID {
				return Result{}, &ConflictError{X: x.X, Y: x.Y, A: x.Glyph.ID, B: y.Glyph.ID}
			}
			dst[res.Count] = x
			res.Agreement++
			i++
			j++
		}
		res.Count++
	}
	n := copy(dst[res.Count:], b[j:])
	res.Count += n
	j += n
	n = copy(dst[res.Count:], a[i:])
	res.Count += n
	i += n

	res.Truncated = i < len(a) || j < len(b)
	scan.MarkSpaces(dst[:res.Count], gap)
	return res, nil
}

// Merge allocates room for every input match and merges a and b.
func Merge(a, b []scan.Match, gap int) ([]scan.Match, Result, error) {
	dst := make([]scan.Match, len(a)+len(b))
	res, err := MergeInto(dst, a, b, gap)
	if err != nil {
		return nil, res, err
	}
	return dst[:res.Count], res, nil
}

func checkOrder(name string, ms []scan.Match) error {
	for k, m := range ms {
		if m.Glyph == nil {
			return fmt.Errorf("%w: %s[%d] has no glyph", ErrInvalidInput, name, k)
		}
		if k > 0 && !ms[k-1].Before(m) {
			return fmt.Errorf("%w: %s[%d] at (%d, %d) is not after (%d, %d)",
				ErrUnordered, name, k, m.X, m.Y, ms[k-1].X, ms[k-1].Y)
		}
	}
	return nil
}
