package match

import "github.com/GriffinCanCode/glyphscan/internal/glyph"

// Tolerant matches raw samples against a glyph's color slots. The first
// sample seen for a slot becomes its reference; later samples further than
// the tolerance from it are mismatches. A glyph is rejected once mismatches
// exceed its width minus the slack, or if any two learned references are
// themselves similar.
type Tolerant struct {
	dict *glyph.Dictionary
	opts Options
}

// NewTolerant validates opts and returns a tolerant policy.
func NewTolerant(dict *glyph.Dictionary, opts Options) (*Tolerant, error) {
	if dict == nil {
		return nil, ErrNoDictionary
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Tolerant{dict: dict, opts: opts}, nil
}

func (p *Tolerant) Name() string { return string(KindTolerant) }

func (p *Tolerant) Height() int { return p.dict.Height() }

func (p *Tolerant) Similar(a, b uint8) bool {
	return within(int(a), int(b), p.opts.Tolerance)
}

func (p *Tolerant) Match(t *Tile) (*glyph.Glyph, bool) {
	if t.Height() != p.dict.Height() || t.Variance() < p.opts.VarianceThreshold {
		return nil, false
	}
	for i := 0; i < p.dict.Len(); i++ {
		if g := p.dict.At(i); p.accept(t, g) {
			return g, true
		}
	}
	return nil, false
}

func (p *Tolerant) accept(t *Tile, g *glyph.Glyph) bool {
	var (
		ref  [glyph.MaxSlots]int
		seen [glyph.MaxSlots]bool
	)
	h := t.Height()
	budget := g.Width - p.opts.MismatchSlack
	misses := 0
	for c := 0; c < g.Width; c++ {
		for r := 0; r < h; r++ {
			s := g.Slots[r+c*h]
			v := int(t.Raw(c, r))
			if !seen[s] {
				seen[s] = true
				ref[s] = v
				continue
			}
			if !within(v, ref[s], p.opts.Tolerance) {
				misses++
				if misses > budget {
					return false
				}
			}
		}
	}
	for a := 0; a < glyph.MaxSlots; a++ {
		for b := a + 1; b < glyph.MaxSlots; b++ {
			if seen[a] && seen[b] && within(ref[a], ref[b], p.opts.Tolerance) {
				return false
			}
		}
	}
	return true
}

func within(a, b, tol int) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < tol
}
