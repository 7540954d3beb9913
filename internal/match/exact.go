package match

import (
	"slices"
	"sort"

	"github.com/GriffinCanCode/glyphscan/internal/glyph"
)

// entry is a glyph with its dictionary position, so binary search can honour
// first-in-dictionary order across width partitions.
type entry struct {
	index int
	g     *glyph.Glyph
}

// Exact accepts a tile when it has exactly three colors and its normalized
// columns equal a glyph's, over the glyph's width.
type Exact struct {
	dict    *glyph.Dictionary
	linear  bool
	byWidth [][]entry
}

// NewExact returns an exact policy that binary-searches each width partition
// of the dictionary. Mixed widths are allowed.
func NewExact(dict *glyph.Dictionary) *Exact {
	p := &Exact{dict: dict}
	for _, w := range dict.Widths() {
		var part []entry
		for i := 0; i < dict.Len(); i++ {
			if g := dict.At(i); g.Width == w {
				part = append(part, entry{index: i, g: g})
			}
		}
		sort.SliceStable(part, func(a, b int) bool {
			return slices.Compare(part[a].g.Columns, part[b].g.Columns) < 0
		})
		p.byWidth = append(p.byWidth, part)
	}
	return p
}

// NewExactLinear returns an exact policy that tries glyphs in dictionary
// order, stopping each comparison at the first differing column.
func NewExactLinear(dict *glyph.Dictionary) *Exact {
	return &Exact{dict: dict, linear: true}
}

func (p *Exact) Name() string {
	if p.linear {
		return string(KindExactLinear)
	}
	return string(KindExact)
}

func (p *Exact) Height() int { return p.dict.Height() }

func (p *Exact) Similar(a, b uint8) bool { return a == b }

func (p *Exact) Match(t *Tile) (*glyph.Glyph, bool) {
	if t.Colors() != glyph.Colors || t.Height() != p.dict.Height() {
		return nil, false
	}
	if p.linear {
		return p.scan(t)
	}
	return p.search(t)
}

func (p *Exact) scan(t *Tile) (*glyph.Glyph, bool) {
	for i := 0; i < p.dict.Len(); i++ {
		g := p.dict.At(i)
		if columnsEqual(t.Columns(g.Width), g.Columns) {
			return g, true
		}
	}
	return nil, false
}

func (p *Exact) search(t *Tile) (*glyph.Glyph, bool) {
	best := entry{index: -1}
	for _, part := range p.byWidth {
		needle := t.Columns(part[0].g.Width)
		i := sort.Search(len(part), func(i int) bool {
			return slices.Compare(part[i].g.Columns, needle) >= 0
		})
		if i < len(part) && slices.Equal(part[i].g.Columns, needle) {
			if best.index < 0 || part[i].index < best.index {
				best = part[i]
			}
		}
	}
	return best.g, best.g != nil
}

func columnsEqual(a, b []uint32) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
