// Package glyph defines the reference sprites the scanner recognizes and the
// read-only dictionary that holds them.
//
// A glyph is stored in discovery-order normalized form: walking its pixels
// column by column, top to bottom, the first color seen is rank 0, the next
// new color rank 1, and so on. The same image is kept twice, once as packed
// base-4 column words for exact comparison and once as a per-pixel slot array
// for tolerant comparison.
package glyph

import "fmt"

const (
	// MaxWidth is the widest glyph, in pixels; it is also the width of every
	// candidate tile.
	MaxWidth = 7
	// DefaultHeight is the glyph cell height of the font the dictionary ships with.
	DefaultHeight = 14
	// MaxHeight bounds the height so a packed column (2 bits per row) fits in 32 bits.
	MaxHeight = 16
	// Colors is the number of distinct colors in a normalized glyph.
	Colors = 3
	// MaxSlots bounds the number of color slots a 2-bit rank can address.
	MaxSlots = 4
)

// Glyph is one reference sprite.
type Glyph struct {
	ID    int
	Label string
	Width int
	// Columns holds one packed word per column; the top row is the most
	// significant base-4 digit.
	Columns []uint32
	// Slots holds the rank of every pixel in column-major order
	// (index = row + column*height).
	Slots []uint8
}

// PackColumn packs ranks (top to bottom) into one base-4 word.
func PackColumn(ranks []uint8) uint32 {
	var col uint32
	for _, r := range ranks {
		col = col<<2 | uint32(r)
	}
	return col
}

// Normalize returns the discovery-order ranks of samples and the number of
// distinct values seen.
func Normalize(samples []uint8) ([]uint8, int) {
	var order [256]uint8
	n := 0
	out := make([]uint8, len(samples))
	for i, v := range samples {
		if order[v] == 0 {
			n++
			order[v] = uint8(n)
		}
		out[i] = order[v] - 1
	}
	return out, n
}

// FromRanks builds a glyph from a column-major rank image of the given
// height. The ranks must already be discovery-order normalized and use exactly
// Colors distinct values.
func FromRanks(id int, label string, height int, ranks []uint8) (Glyph, error) {
	if height <= 0 || height > MaxHeight {
		return Glyph{}, fmt.Errorf("%w: %d", ErrHeight, height)
	}
	if len(ranks) == 0 || len(ranks)%height != 0 {
		return Glyph{}, fmt.Errorf("%w: %d pixels is not a whole number of %d-row columns", ErrShape, len(ranks), height)
	}
	width := len(ranks) / height
	if width > MaxWidth {
		return Glyph{}, fmt.Errorf("%w: %d", ErrWidth, width)
	}
	next := uint8(0)
	for i, r := range ranks {
		switch {
		case r < next:
		case r == next:
			next++
		default:
			return Glyph{}, fmt.Errorf("%w: pixel %d has rank %d before rank %d appeared", ErrNotNormalized, i, r, next)
		}
	}
	if next != Colors {
		return Glyph{}, fmt.Errorf("%w: glyph %d uses %d colors, want %d", ErrColors, id, next, Colors)
	}

	g := Glyph{
		ID:      id,
		Label:   label,
		Width:   width,
		Columns: make([]uint32, width),
		Slots:   append([]uint8(nil), ranks...),
	}
	for c := 0; c < width; c++ {
		g.Columns[c] = PackColumn(ranks[c*height : (c+1)*height])
	}
	return g, nil
}

// Height returns the number of rows, derived from the slot image.
func (g *Glyph) Height() int {
	if g.Width == 0 {
		return 0
	}
	return len(g.Slots) / g.Width
}

// Slot returns the rank of the pixel at column c, row r.
func (g *Glyph) Slot(c, r int) uint8 {
	return g.Slots[r+c*g.Height()]
}

// Text is the rendered form of the label. Multi-character labels lead with a
// representative character that is not rendered.
func (g *Glyph) Text() string {
	r := []rune(g.Label)
	if len(r) <= 1 {
		return g.Label
	}
	return string(r[1:])
}

func (g *Glyph) String() string {
	return fmt.Sprintf("glyph#%d(%q, w=%d)", g.ID, g.Label, g.Width)
}
