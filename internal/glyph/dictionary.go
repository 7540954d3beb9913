package glyph

import "fmt"

// Dictionary is an ordered, read-only collection of glyphs sharing one height.
// Order matters only in that matchers return the first acceptable glyph.
type Dictionary struct {
	height int
	glyphs []Glyph
	byID   map[int]int
	widths []int
}

// NewDictionary validates glyphs and copies them into a dictionary.
func NewDictionary(height int, glyphs []Glyph) (*Dictionary, error) {
	if height <= 0 || height > MaxHeight {
		return nil, fmt.Errorf("%w: %d", ErrHeight, height)
	}
	d := &Dictionary{
		height: height,
		glyphs: make([]Glyph, len(glyphs)),
		byID:   make(map[int]int, len(glyphs)),
	}
	seenWidth := make(map[int]bool)
	for i, g := range glyphs {
		if g.Width < 1 || g.Width > MaxWidth {
			return nil, fmt.Errorf("%w: glyph %d has width %d", ErrWidth, g.ID, g.Width)
		}
		if len(g.Columns) != g.Width || len(g.Slots) != g.Width*height {
			return nil, fmt.Errorf("%w: glyph %d is not %d×%d", ErrShape, g.ID, g.Width, height)
		}
		for _, s := range g.Slots {
			if s >= MaxSlots {
				return nil, fmt.Errorf("%w: glyph %d has slot %d", ErrColors, g.ID, s)
			}
		}
		if _, dup := d.byID[g.ID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, g.ID)
		}
		d.byID[g.ID] = i
		d.glyphs[i] = g
		if !seenWidth[g.Width] {
			seenWidth[g.Width] = true
			d.widths = append(d.widths, g.Width)
		}
	}
	return d, nil
}

// Height returns the shared glyph height.
func (d *Dictionary) Height() int { return d.height }

// Len returns the number of glyphs.
func (d *Dictionary) Len() int { return len(d.glyphs) }

// At returns the i-th glyph. The pointer stays valid for the dictionary's
// lifetime and must not be modified.
func (d *Dictionary) At(i int) *Glyph { return &d.glyphs[i] }

// ByID looks a glyph up by identifier.
func (d *Dictionary) ByID(id int) (*Glyph, bool) {
	i, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	return &d.glyphs[i], true
}

// Widths lists the distinct glyph widths in order of first appearance.
func (d *Dictionary) Widths() []int {
	return append([]int(nil), d.widths...)
}
