// Package dialog follows the game's dialog box across frames and turns the
// text it shows into utterances.
//
// The box scrolls and types out its text a few characters per frame, so
// consecutive screens show overlapping, partially complete text. Screens
// whose text is close enough under DistMerge are folded together; when the
// text jumps, the previous box content joins the current group. When the box
// disappears the group is flushed as one utterance.
package dialog

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/glyphscan/internal/orchestrator/timestamp"
	"github.com/GriffinCanCode/glyphscan/internal/recognize"
	"github.com/GriffinCanCode/glyphscan/internal/trace"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	hyphenJoin = regexp.MustCompile(`- `)
)

// Utterance is one flushed dialog box group. Clock is the stream clock of
// the screen that flushed it, when one was read.
type Utterance struct {
	Text  string          `json:"text"`
	At    time.Time       `json:"at"`
	Clock timestamp.Stamp `json:"clock,omitzero"`
}

// Reader implements the dialog box state machine. It is safe for
// concurrent use, but screens must be observed in capture order.
type Reader struct {
	topRow, maxDist int

	mu        sync.RWMutex
	last      string
	group     []string
	lastGroup []string
	history   []Utterance
	maxSize   int
	eventsCh  chan Utterance
}

// NewReader creates a reader for a box whose first line sits at topRow.
// Texts closer than maxDist are merged. The reader keeps the last
// maxHistory utterances.
func NewReader(topRow, maxDist, maxHistory, eventBuffer int) *Reader {
	return &Reader{
		topRow:   topRow,
		maxDist:  maxDist,
		maxSize:  maxHistory,
		history:  make([]Utterance, 0, maxHistory),
		eventsCh: make(chan Utterance, eventBuffer),
	}
}

// ObserveScreen implements the screen processor's observer.
func (r *Reader) ObserveScreen(ctx context.Context, res *recognize.Result, at time.Time, clock timestamp.Stamp) {
	if u, ok := r.observe(res.Lines, at, clock); ok {
		trace.Logger(ctx).Info("dialog", "text", u.Text, "clock", u.Clock.Text)
	}
}

// Observe feeds one screen's lines to the reader and returns the utterance
// flushed by it, if any. A screen is dialog when its first line starts at
// the box's top row; any other screen means the box is gone.
func (r *Reader) Observe(lines []recognize.Line, at time.Time) (Utterance, bool) {
	return r.observe(lines, at, timestamp.Stamp{})
}

func (r *Reader) observe(lines []recognize.Line, at time.Time, clock timestamp.Stamp) (Utterance, bool) {
	text := ""
	if len(lines) > 0 && lines[0].Y == r.topRow {
		parts := make([]string, 0, len(lines))
		for _, l := range lines {
			if strings.TrimSpace(l.Text) != "" {
				parts = append(parts, l.Text)
			}
		}
		text = strings.Join(parts, "\n")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if text == "" {
		return r.flushLocked(at, clock)
	}
	r.advanceLocked(text)
	return Utterance{}, false
}

// Must hold r.mu.
func (r *Reader) advanceLocked(text string) {
	if t := strings.TrimSpace(text); t == "" || t == strings.TrimSpace(r.last) {
		return
	}
	if dist, merged := DistMerge(r.last, text); dist < r.maxDist {
		r.last = merged
		return
	}
	if r.last != "" {
		r.group = append(r.group, r.last)
	}
	r.last = text
}

// Must hold r.mu.
func (r *Reader) flushLocked(at time.Time, clock timestamp.Stamp) (Utterance, bool) {
	if r.last != "" {
		r.group = append(r.group, r.last)
		r.last = ""
	}
	// Screen effects can hide the box for a frame; its reappearance must not
	// repeat the text already flushed.
	if len(r.group) > 0 && len(r.lastGroup) > 0 && r.group[0] == r.lastGroup[len(r.lastGroup)-1] {
		r.group = nil
	}
	if len(r.group) == 0 {
		return Utterance{}, false
	}

	out := []string{""}
	for _, el := range r.group {
		for _, line := range strings.Split(el, "\n") {
			if line == "" {
				continue
			}
			if dist, merged := DistMerge(out[len(out)-1], line); dist < r.maxDist {
				out[len(out)-1] = merged
			} else {
				out = append(out, line)
			}
		}
	}
	text := strings.TrimSpace(strings.Join(out, " "))
	text = whitespace.ReplaceAllString(text, " ")
	text = hyphenJoin.ReplaceAllString(text, "")

	r.lastGroup = r.group
	r.group = nil

	u := Utterance{Text: text, At: at, Clock: clock}
	r.history = append(r.history, u)
	if len(r.history) > r.maxSize {
		r.history = r.history[len(r.history)-r.maxSize:]
	}
	r.emit(u)
	return u, true
}

// emit sends an utterance event (non-blocking).
func (r *Reader) emit(u Utterance) {
	select {
	case r.eventsCh <- u:
	default:
	}
}

// Events returns the channel flushed utterances are sent on. Events are
// dropped when nobody keeps up.
func (r *Reader) Events() <-chan Utterance {
	return r.eventsCh
}

// Recent returns up to n of the latest utterances, oldest first. A
// non-positive n returns the whole history.
func (r *Reader) Recent(n int) []Utterance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > len(r.history) {
		n = len(r.history)
	}
	out := make([]Utterance, n)
	copy(out, r.history[len(r.history)-n:])
	return out
}

// DistMerge compares two renderings of the same box position by position,
// padding the shorter with spaces. The distance counts positions where a
// holds a non-space character that b does not repeat. The merge keeps b's
// character wherever b is not a space, and a's otherwise.
func DistMerge(a, b string) (int, string) {
	ra, rb := []rune(a), []rune(b)
	n := max(len(ra), len(rb))
	at := func(rs []rune, i int) rune {
		if i < len(rs) {
			return rs[i]
		}
		return ' '
	}

	dist := 0
	var out strings.Builder
	for i := 0; i < n; i++ {
		x, y := at(ra, i), at(rb, i)
		if x != ' ' && x != y {
			dist++
		}
		if y != ' ' {
			out.WriteRune(y)
		} else {
			out.WriteRune(x)
		}
	}
	return dist, out.String()
}
