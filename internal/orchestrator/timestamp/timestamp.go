// Package timestamp reads the stream clock overlaid on captured frames.
//
// The clock shows the time since the stream started as "NdNhNmNs" in a
// fixed region of the captured image, outside the game screen. Characters
// are told apart by their column signature: every column of the region
// becomes a letter, 'A' plus half the number of bright pixels in it, and
// runs of columns with fewer than two bright pixels separate characters.
// A signature with no exact entry takes the closest one, when it is close
// enough.
package timestamp

import (
	"errors"
	"fmt"
	"image"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pmezard/go-difflib/difflib"
)

const (
	// Threshold is the gray level above which a clock pixel is lit.
	Threshold = 150
	// MinSimilarity is the lowest difflib ratio accepted for a signature
	// without an exact entry.
	MinSimilarity = 0.6
)

// DefaultRegion is where the clock sits on a captured stream frame.
var DefaultRegion = image.Rect(232, 9, 378, 34)

// ErrFormat is returned by Parse for text that is not a clock reading.
var ErrFormat = errors.New("timestamp: malformed clock text")

var signatures = map[string]byte{
	"DGGEEDEJGDD": '0',
	"BBDJJJJBBB":  '1',
	"EHHGGEGHGEE": '2',
	"BEEEEEGJHEE": '3',
	"DEEEGEJJJBB": '4',
	"GHHEEEEHHDD": '5',
	"GJJEEEEHHDD": '6',
	"DDDEGGEGEDD": '7',
	"EJJEEEEJJEE": '8',
	"DHHEEEEJJGG": '9',
	"DDDDDDDDKK":  'd',
	"KKBBBBGE":    'h',
	"HHBBHGBBBGG": 'm',
	"DDEEEEEEBB":  's',
}

var clockText = regexp.MustCompile(`^(\d+)d(\d+)h(\d+)m(\d+)s$`)

// Stamp is one clock reading. The zero Stamp means no reading.
type Stamp struct {
	Text    string `json:"text"`
	Seconds uint32 `json:"seconds"`
}

// Valid reports whether s holds a reading.
func (s Stamp) Valid() bool { return s.Text != "" }

// Parse converts clock text such as "1d2h3m4s" into a Stamp.
func Parse(text string) (Stamp, error) {
	m := clockText.FindStringSubmatch(text)
	if m == nil {
		return Stamp{}, fmt.Errorf("%w: %q", ErrFormat, text)
	}
	var total uint64
	for i, mul := range []uint64{24, 60, 60, 1} {
		n, err := strconv.ParseUint(m[i+1], 10, 32)
		if err != nil {
			return Stamp{}, fmt.Errorf("%w: %q", ErrFormat, text)
		}
		total = (total + n) * mul
	}
	if total > 1<<32-1 {
		return Stamp{}, fmt.Errorf("%w: %q out of range", ErrFormat, text)
	}
	return Stamp{Text: text, Seconds: uint32(total)}, nil
}

// Signatures returns the column signature of every character found in
// region of img, left to right. Parts of region outside img are ignored.
func Signatures(img image.Image, region image.Rectangle) []string {
	crop := imaging.Grayscale(imaging.Crop(img, region))
	w, h := crop.Bounds().Dx(), crop.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil
	}

	cols := make([]byte, w)
	for x := 0; x < w; x++ {
		lit := 0
		for y := 0; y < h; y++ {
			// gray pixels have equal channels, R is enough
			if crop.Pix[y*crop.Stride+x*4] > Threshold {
				lit++
			}
		}
		cols[x] = byte('A' + lit/2)
	}
	return strings.FieldsFunc(string(cols), func(r rune) bool { return r == 'A' })
}

// Identify returns the character whose signature is sig, or the closest
// one with a similarity of at least MinSimilarity.
func Identify(sig string) (byte, bool) {
	if c, ok := signatures[sig]; ok {
		return c, true
	}
	word := strings.Split(sig, "")
	m := difflib.NewMatcher(nil, word)
	best, bestKey := 0.0, ""
	for key := range signatures {
		m.SetSeq1(strings.Split(key, ""))
		if m.RealQuickRatio() < MinSimilarity || m.QuickRatio() < MinSimilarity {
			continue
		}
		// ties go to the larger key so the choice does not depend on map order
		if r := m.Ratio(); r >= MinSimilarity && (r > best || r == best && key > bestKey) {
			best, bestKey = r, key
		}
	}
	if bestKey == "" {
		return 0, false
	}
	return signatures[bestKey], true
}

// Reader reads the clock from successive frames. A frame whose clock
// cannot be read keeps the previous reading.
type Reader struct {
	region image.Rectangle

	mu   sync.Mutex
	last Stamp
}

// NewReader returns a reader for a clock drawn inside region.
func NewReader(region image.Rectangle) *Reader {
	return &Reader{region: region}
}

// Read returns the clock shown on img and whether img itself could be read.
// When it could not, the previous reading is returned, which is the zero
// Stamp until the first success.
func (r *Reader) Read(img image.Image) (Stamp, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sigs := Signatures(img, r.region)
	if len(sigs) == 0 {
		return r.last, false
	}
	var b strings.Builder
	for _, sig := range sigs {
		c, ok := Identify(sig)
		if !ok {
			return r.last, false
		}
		b.WriteByte(c)
	}
	st, err := Parse(b.String())
	if err != nil {
		return r.last, false
	}
	r.last = st
	return st, true
}

// Last returns the most recent successful reading.
func (r *Reader) Last() Stamp {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
