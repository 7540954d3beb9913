// Package scan walks a frame looking for dictionary glyphs.
//
// Rows are scanned top to bottom from y = 1, columns left to right. Two cheap
// checks reject most positions before a tile is extracted: the row above the
// candidate must be one color across the tile width, and the candidate's left
// column must not be one color for the full glyph height. Surviving tiles go
// to the matching policy. After a match the scanner jumps past the glyph, and
// once a row has produced any match the following height−1 rows are skipped.
package scan

import (
	"fmt"

	"github.com/GriffinCanCode/glyphscan/internal/frame"
	"github.com/GriffinCanCode/glyphscan/internal/glyph"
	"github.com/GriffinCanCode/glyphscan/internal/match"
)

// Match is one recognized glyph.
type Match struct {
	X, Y  int
	Glyph *glyph.Glyph
	// Space marks a gap wider than the spacing threshold since the previous
	// match on the same row.
	Space bool
}

// End returns the last column the glyph covers.
func (m Match) End() int { return m.X + m.Glyph.Width - 1 }

// Before reports whether m comes before o in scan order.
func (m Match) Before(o Match) bool {
	if m.Y != o.Y {
		return m.Y < o.Y
	}
	return m.X < o.X
}

// Options bounds a scan.
type Options struct {
	// MaxMatches is the output capacity Scan allocates.
	MaxMatches int
	// SpaceGap is the largest column distance between a glyph's last column
	// and the next glyph's first column that still counts as no space.
	SpaceGap int
}

// DefaultOptions returns the capacity and spacing the recognizer ships with.
func DefaultOptions() Options {
	return Options{MaxMatches: 128, SpaceGap: 3}
}

// Stats describes one scan.
type Stats struct {
	// Matches is the number of matches written.
	Matches int
	// Considered counts tiles handed to the policy.
	Considered int
	// Truncated is set when output capacity was reached and the scan
	// stopped. It means capacity reached, not matches lost: a screen whose
	// last glyph fills the final slot is reported truncated too.
	Truncated bool
}

// Scanner runs a matching policy over frames. It holds no per-scan state
// and is safe for concurrent use.
type Scanner struct {
	policy match.Policy
	height int
	opts   Options
}

// New returns a scanner for policy.
func New(policy match.Policy, opts Options) (*Scanner, error) {
	if policy == nil {
		return nil, ErrNoPolicy
	}
	if opts.MaxMatches < 1 {
		return nil, fmt.Errorf("%w: max matches %d", ErrNoCapacity, opts.MaxMatches)
	}
	if opts.SpaceGap < 0 {
		return nil, fmt.Errorf("%w: space gap %d", ErrOptions, opts.SpaceGap)
	}
	return &Scanner{policy: policy, height: policy.Height(), opts: opts}, nil
}

// Policy returns the scanner's matching policy.
func (s *Scanner) Policy() match.Policy { return s.policy }

// Options returns the scanner's options.
func (s *Scanner) Options() Options { return s.opts }

// Scan allocates Options.MaxMatches slots and scans f into them.
func (s *Scanner) Scan(f *frame.Frame) ([]Match, Stats, error) {
	dst := make([]Match, s.opts.MaxMatches)
	st, err := s.ScanInto(f, dst)
	if err != nil {
		return nil, st, err
	}
	return dst[:st.Matches], st, nil
}

// ScanInto writes matches into dst in scan order and never grows it. When
// dst fills up the scan stops and the prefix found so far is returned with
// Stats.Truncated set, whether or not the rest of the frame held more.
func (s *Scanner) ScanInto(f *frame.Frame, dst []Match) (Stats, error) {
	var st Stats
	if f == nil {
		return st, fmt.Errorf("%w: nil frame", ErrFrameTooSmall)
	}
	if len(dst) == 0 {
		return st, ErrNoCapacity
	}
	w, h := f.Width(), f.Height()
	if w <= match.TileWidth || h <= s.height+1 {
		return st, fmt.Errorf("%w: %d×%d for %d×%d tiles", ErrFrameTooSmall, w, h, match.TileWidth, s.height)
	}

	var tile match.Tile
	for y := 1; y < h-s.height; y++ {
		found := false
		lastX := -1
		for x := 0; x < w-match.TileWidth; x++ {
			if off := s.edgeBreak(f, x, y-1); off > 0 {
				x += off
				continue
			}
			if s.solidLeft(f, x, y) {
				continue
			}
			if err := tile.Extract(f, x, y, s.height); err != nil {
				return st, err
			}
			st.Considered++
			g, ok := s.policy.Match(&tile)
			if !ok {
				continue
			}
			dst[st.Matches] = Match{X: x, Y: y, Glyph: g, Space: lastX >= 0 && Spaced(lastX, x, s.opts.SpaceGap)}
			st.Matches++
			found = true
			if st.Matches == len(dst) {
				st.Truncated = true
				return st, nil
			}
			x += g.Width - 1
			lastX = x
		}
		if found {
			y += s.height - 1
		}
	}
	return st, nil
}

// edgeBreak returns the first offset in row y, across the tile width from
// x, whose sample is not similar to its left neighbour, or 0.
func (s *Scanner) edgeBreak(f *frame.Frame, x, y int) int {
	for off := 1; off < match.TileWidth; off++ {
		if !s.policy.Similar(f.At(x+off-1, y), f.At(x+off, y)) {
			return off
		}
	}
	return 0
}

// solidLeft reports whether column x is one color over the glyph height
// starting at row y.
func (s *Scanner) solidLeft(f *frame.Frame, x, y int) bool {
	first := f.At(x, y)
	run := 0
	for off := 1; off < s.height; off++ {
		if !s.policy.Similar(f.At(x, y+off), first) {
			break
		}
		run++
	}
	return run == s.height-1
}

// Spaced reports whether a glyph starting at x is separated from a glyph
// ending at column prevEnd by more than gap columns.
func Spaced(prevEnd, x, gap int) bool { return x > prevEnd+gap }

// MarkSpaces recomputes every Space flag of an ordered match sequence.
func MarkSpaces(ms []Match, gap int) {
	lastY, lastEnd := -1, -1
	for i := range ms {
		m := &ms[i]
		m.Space = m.Y == lastY && lastEnd >= 0 && Spaced(lastEnd, m.X, gap)
		lastY, lastEnd = m.Y, m.End()
	}
}
