// Package match decides whether a candidate tile shows a dictionary glyph.
//
// Matching is a strategy: a Policy pairs an acceptance test with the notion of
// "same color" the scanner uses for its cheap pre-filters. Exact policies
// compare discovery-order normalized images; the tolerant policy compares raw
// samples within a numeric tolerance.
package match

import (
	"fmt"
	"strings"

	"github.com/GriffinCanCode/glyphscan/internal/glyph"
)

// Policy matches candidate tiles against a dictionary.
type Policy interface {
	// Name identifies the policy in logs and config.
	Name() string
	// Height is the glyph height tiles must be extracted with.
	Height() int
	// Similar reports whether two samples count as the same color.
	Similar(a, b uint8) bool
	// Match returns the first acceptable glyph for the tile.
	Match(t *Tile) (*glyph.Glyph, bool)
}

// Kind names a policy.
type Kind string

const (
	// KindExact is exact normalized matching via binary search over
	// width-partitioned, sorted glyph columns.
	KindExact Kind = "exact"
	// KindExactLinear is exact normalized matching by linear scan.
	KindExactLinear Kind = "exact-linear"
	// KindTolerant is raw-sample matching within a tolerance.
	KindTolerant Kind = "tolerant"
)

// ParseKind parses a policy name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindExact, KindExactLinear, KindTolerant:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Options tunes the tolerant policy. Exact policies ignore it.
type Options struct {
	// Tolerance is the exclusive bound on |a-b| for two samples to be similar.
	Tolerance int
	// VarianceThreshold rejects tiles whose sample variance is below it.
	VarianceThreshold float64
	// MismatchSlack sets the mismatch budget to glyph width minus this value.
	MismatchSlack int
}

// DefaultOptions returns the tuning used for 240×160 captures.
func DefaultOptions() Options {
	return Options{Tolerance: 5, VarianceThreshold: 1500, MismatchSlack: 2}
}

// Validate checks the options for values no policy can work with.
func (o Options) Validate() error {
	if o.Tolerance < 1 || o.Tolerance > 255 {
		return fmt.Errorf("%w: tolerance %d", ErrOptions, o.Tolerance)
	}
	if o.VarianceThreshold < 0 {
		return fmt.Errorf("%w: variance threshold %v", ErrOptions, o.VarianceThreshold)
	}
	if o.MismatchSlack < 0 || o.MismatchSlack > glyph.MaxWidth {
		return fmt.Errorf("%w: mismatch slack %d", ErrOptions, o.MismatchSlack)
	}
	return nil
}

// New builds the policy of the given kind over dict.
func New(kind Kind, dict *glyph.Dictionary, opts Options) (Policy, error) {
	if dict == nil {
		return nil, ErrNoDictionary
	}
	switch kind {
	case KindExact:
		return NewExact(dict), nil
	case KindExactLinear:
		return NewExactLinear(dict), nil
	case KindTolerant:
		return NewTolerant(dict, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, kind)
	}
}
