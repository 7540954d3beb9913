package dialog

import (
	"testing"
	"time"

	"github.com/GriffinCanCode/glyphscan/internal/orchestrator/timestamp"
	"github.com/GriffinCanCode/glyphscan/internal/recognize"
)

const topRow = 121

func box(texts ...string) []recognize.Line {
	lines := make([]recognize.Line, len(texts))
	for i, t := range texts {
		lines[i] = recognize.Line{Y: topRow + 16*i, Text: t}
	}
	return lines
}

var world = []recognize.Line{{Y: 20, Text: "AB I"}}

func TestDistMerge(t *testing.T) {
	tests := []struct {
		a, b   string
		dist   int
		merged string
	}{
		{"HELLO", "HELLO THERE", 0, "HELLO THERE"},
		{"", "HELLO", 0, "HELLO"},
		{"CAT", "DOG", 3, "DOG"},
		{"A B C", "AXB", 1, "AXB C"},
		{"HELLO THERE", "HELLO", 0, "HELLO THERE"},
	}
	for _, tt := range tests {
		dist, merged := DistMerge(tt.a, tt.b)
		if dist != tt.dist || merged != tt.merged {
			t.Errorf("DistMerge(%q, %q) = %d, %q, want %d, %q", tt.a, tt.b, dist, merged, tt.dist, tt.merged)
		}
	}
}

func TestReaderJoinsTypedOutBox(t *testing.T) {
	r := NewReader(topRow, 3, 10, 4)
	now := time.Unix(100, 0)

	screens := [][]recognize.Line{
		box("HELLO"),
		box("HELLO THERE"),
		box("HELLO THERE", "HOW ARE YOU DO-"),
		box("HELLO THERE", "HOW ARE YOU DO-"),
		box("ING TODAY?"),
	}
	for i, s := range screens {
		if u, ok := r.Observe(s, now); ok {
			t.Fatalf("screen %d flushed %q while the box was still shown", i, u.Text)
		}
	}

	u, ok := r.Observe(world, now)
	if !ok {
		t.Fatal("expected flush when the box disappears")
	}
	if want := "HELLO THERE HOW ARE YOU DOING TODAY?"; u.Text != want {
		t.Errorf("Text = %q, want %q", u.Text, want)
	}
	if !u.At.Equal(now) {
		t.Errorf("At = %v, want %v", u.At, now)
	}

	if _, ok := r.Observe(world, now); ok {
		t.Error("second screen without the box should not flush again")
	}
}

func TestReaderMergesMisreads(t *testing.T) {
	r := NewReader(topRow, 3, 10, 4)
	r.Observe(box("IT IS A FINE DAY"), time.Time{})
	r.Observe(box("IT IS A FIME DAY"), time.Time{})
	r.Observe(box("IT IS A FINE DAY."), time.Time{})

	u, ok := r.Observe(nil, time.Time{})
	if !ok {
		t.Fatal("expected flush on an empty screen")
	}
	if u.Text != "IT IS A FINE DAY." {
		t.Errorf("Text = %q, want %q", u.Text, "IT IS A FINE DAY.")
	}
}

func TestReaderSuppressesReappearingBox(t *testing.T) {
	r := NewReader(topRow, 3, 10, 4)
	r.Observe(box("HELLO"), time.Time{})
	r.Observe(box("GOODBYE NOW"), time.Time{})
	if _, ok := r.Observe(world, time.Time{}); !ok {
		t.Fatal("expected first flush")
	}

	// The box flickers back showing its final text.
	r.Observe(box("GOODBYE NOW"), time.Time{})
	if u, ok := r.Observe(world, time.Time{}); ok {
		t.Errorf("reappearing box flushed %q again", u.Text)
	}
	if got := len(r.Recent(0)); got != 1 {
		t.Errorf("len(Recent) = %d, want 1", got)
	}
}

func TestReaderIgnoresBlankLines(t *testing.T) {
	r := NewReader(topRow, 3, 10, 4)
	r.Observe(box("SAVE   THE", "   ", "WORLD"), time.Time{})
	u, ok := r.Observe(nil, time.Time{})
	if !ok {
		t.Fatal("expected flush")
	}
	if u.Text != "SAVE THE WORLD" {
		t.Errorf("Text = %q, want %q", u.Text, "SAVE THE WORLD")
	}
}

func TestReaderHistoryAndEvents(t *testing.T) {
	r := NewReader(topRow, 3, 2, 1)
	for _, text := range []string{"ONE", "TWO", "SIX"} {
		r.Observe(box(text), time.Time{})
		r.Observe(world, time.Time{})
	}

	recent := r.Recent(0)
	if len(recent) != 2 {
		t.Fatalf("len(Recent) = %d, want 2", len(recent))
	}
	if recent[0].Text != "TWO" || recent[1].Text != "SIX" {
		t.Errorf("Recent = %+v, want TWO then SIX", recent)
	}
	if got := r.Recent(1); len(got) != 1 || got[0].Text != "SIX" {
		t.Errorf("Recent(1) = %+v, want SIX", got)
	}

	// The buffer holds one event; later ones are dropped.
	select {
	case u := <-r.Events():
		if u.Text != "ONE" {
			t.Errorf("event = %q, want ONE", u.Text)
		}
	default:
		t.Fatal("expected a buffered event")
	}
	select {
	case u := <-r.Events():
		t.Errorf("unexpected event %q", u.Text)
	default:
	}
}

func TestObserveScreen(t *testing.T) {
	r := NewReader(topRow, 3, 10, 4)
	r.ObserveScreen(t.Context(), &recognize.Result{Lines: box("HI")}, time.Time{}, timestamp.Stamp{Text: "0d0h1m0s", Seconds: 60})
	r.ObserveScreen(t.Context(), &recognize.Result{Lines: world}, time.Time{}, timestamp.Stamp{Text: "0d0h1m1s", Seconds: 61})
	got := r.Recent(0)
	if len(got) != 1 || got[0].Text != "HI" {
		t.Fatalf("Recent = %+v, want HI", got)
	}
	// the utterance carries the clock of the screen that closed the box
	if got[0].Clock.Seconds != 61 {
		t.Errorf("Clock = %+v, want 61 seconds", got[0].Clock)
	}
}
