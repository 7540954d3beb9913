package screen

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/glyphscan/internal/glyph/glyphtest"
	"github.com/GriffinCanCode/glyphscan/internal/orchestrator/timestamp"
	"github.com/GriffinCanCode/glyphscan/internal/reconcile"
	"github.com/GriffinCanCode/glyphscan/internal/recognize"
	screencap "github.com/GriffinCanCode/glyphscan/internal/screen"
)

type mockRecognizer struct {
	res *recognize.Result
	err error
}

func (m *mockRecognizer) RecognizeImage(context.Context, image.Image) (*recognize.Result, error) {
	return m.res, m.err
}

type recordingObserver struct {
	mu     sync.Mutex
	texts  []string
	clocks []timestamp.Stamp

	inFlight, overlaps atomic.Int32
}

func (o *recordingObserver) ObserveScreen(_ context.Context, res *recognize.Result, _ time.Time, clock timestamp.Stamp) {
	if o.inFlight.Add(1) > 1 {
		o.overlaps.Add(1)
	}
	defer o.inFlight.Add(-1)
	o.mu.Lock()
	o.texts = append(o.texts, res.Text())
	o.clocks = append(o.clocks, clock)
	o.mu.Unlock()
}

func newRecognizer(t *testing.T) *recognize.Recognizer {
	t.Helper()
	opts := recognize.DefaultOptions()
	opts.Extract.Screen = image.Rectangle{}
	r, err := recognize.New(glyphtest.Dictionary(), opts)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestProcessPublishesSnapshot(t *testing.T) {
	obs := &recordingObserver{}
	p := NewProcessor(nil, newRecognizer(t), 0, obs)

	if _, ver := p.Latest(); ver != 0 {
		t.Fatalf("initial version = %d, want 0", ver)
	}

	res, err := p.Process(context.Background(), glyphtest.PNG(glyphtest.Page()))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Agreement != 5 {
		t.Errorf("Agreement = %d, want 5", res.Agreement)
	}

	snap, ver := p.Latest()
	if ver != 1 {
		t.Errorf("version = %d, want 1", ver)
	}
	want := []recognize.Line{{Y: 20, Text: "AB I"}, {Y: 60, Text: "B A"}}
	if len(snap.Lines) != 2 || snap.Lines[0] != want[0] || snap.Lines[1] != want[1] {
		t.Errorf("Lines = %v, want %v", snap.Lines, want)
	}
	if snap.Matches != 5 {
		t.Errorf("Matches = %d, want 5", snap.Matches)
	}
	if len(obs.texts) != 1 || obs.texts[0] != "AB I\nB A" {
		t.Errorf("observer saw %q", obs.texts)
	}
}

func TestProcessSkipsSimilarFrames(t *testing.T) {
	p := NewProcessor(nil, newRecognizer(t), 0)
	data := glyphtest.PNG(glyphtest.Page())
	ctx := context.Background()

	if _, err := p.Process(ctx, data); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Process(ctx, data); !errors.Is(err, ErrSimilarFrame) {
		t.Errorf("second Process() = %v, want ErrSimilarFrame", err)
	}
	if st := p.Stats(); st.Skipped != 1 || st.Recognized != 1 || st.Captured != 2 {
		t.Errorf("Stats = %+v", st)
	}

	p = NewProcessor(nil, newRecognizer(t), SkipDisabled)
	for i := 0; i < 2; i++ {
		if _, err := p.Process(ctx, data); err != nil {
			t.Errorf("Process() #%d with skipping disabled = %v", i, err)
		}
	}
}

func TestProcessDropsConflicts(t *testing.T) {
	rec := &mockRecognizer{res: &recognize.Result{Lines: []recognize.Line{{Y: 20, Text: "OLD"}}}}
	p := NewProcessor(nil, rec, SkipDisabled)
	data := makePatternJPEG(1)
	ctx := context.Background()

	if _, err := p.Process(ctx, data); err != nil {
		t.Fatal(err)
	}

	rec.res, rec.err = nil, &reconcile.ConflictError{X: 10, Y: 20, A: 1, B: 2}
	if _, err := p.Process(ctx, data); !errors.Is(err, reconcile.ErrConflict) {
		t.Errorf("Process() = %v, want ErrConflict", err)
	}

	snap, ver := p.Latest()
	if ver != 1 || snap.Lines[0].Text != "OLD" {
		t.Errorf("Latest() = (%v, %d), want previous snapshot kept", snap, ver)
	}
	if st := p.Stats(); st.Conflicts != 1 {
		t.Errorf("Conflicts = %d, want 1", st.Conflicts)
	}
}

func TestProcessUndecodable(t *testing.T) {
	p := NewProcessor(nil, &mockRecognizer{}, 0)
	if _, err := p.Process(context.Background(), []byte("not an image")); err == nil {
		t.Error("Process() should fail on garbage")
	}
	if st := p.Stats(); st.Failed != 1 {
		t.Errorf("Failed = %d, want 1", st.Failed)
	}
}

func TestRunReplaysDirectory(t *testing.T) {
	dir := t.TempDir()
	page := glyphtest.PNG(glyphtest.Page())
	blank := glyphtest.PNG(glyphtest.Blank(240, 160))
	for name, data := range map[string][]byte{"1.png": page, "2.png": page, "3.png": blank} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	capturer, err := screencap.NewDirectory(dir, "*.png", false)
	if err != nil {
		t.Fatal(err)
	}

	p := NewProcessor(capturer, newRecognizer(t), SkipDisabled)
	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), 1000, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after the last file")
	}

	// 2.png repeats 1.png byte for byte and never reaches recognition.
	if st := p.Stats(); st.Captured != 2 || st.Recognized != 2 {
		t.Errorf("Stats = %+v, want 2 captured and recognized", st)
	}
	if snap, ver := p.Latest(); ver != 2 || len(snap.Lines) != 0 {
		t.Errorf("Latest() = (%v, %d), want blank screen at version 2", snap, ver)
	}
}

// clockPNG draws the stream clock reading "0d0h0m1s" when lit, or leaves
// the clock region dark.
func clockPNG(t *testing.T, lit bool) []byte {
	t.Helper()
	sigs := []string{"DGGEEDEJGDD", "DDDDDDDDKK", "DGGEEDEJGDD", "KKBBBBGE", "DGGEEDEJGDD", "HHBBHGBBBGG", "BBDJJJJBBB", "DDEEEEEEBB"}
	img := image.NewGray(image.Rect(0, 0, 400, 200))
	if lit {
		x := timestamp.DefaultRegion.Min.X + 2
		for _, sig := range sigs {
			for _, c := range sig {
				for y := 0; y < 2*int(c-'A'); y++ {
					img.SetGray(x, timestamp.DefaultRegion.Min.Y+y, color.Gray{Y: 255})
				}
				x++
			}
			x++
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestProcessReadsClock(t *testing.T) {
	obs := &recordingObserver{}
	rec := &mockRecognizer{res: &recognize.Result{}}
	p := NewProcessor(nil, rec, SkipDisabled, obs)
	p.SetClock(timestamp.NewReader(timestamp.DefaultRegion))
	ctx := context.Background()

	if _, err := p.Process(ctx, clockPNG(t, true)); err != nil {
		t.Fatal(err)
	}
	if snap, _ := p.Latest(); snap.Clock != "0d0h0m1s" {
		t.Errorf("Clock = %q, want 0d0h0m1s", snap.Clock)
	}

	// an unreadable clock keeps the last reading
	if _, err := p.Process(ctx, clockPNG(t, false)); err != nil {
		t.Fatal(err)
	}
	if len(obs.clocks) != 2 || obs.clocks[0].Seconds != 1 || obs.clocks[1].Seconds != 1 {
		t.Errorf("observer clocks = %+v, want two readings of 1s", obs.clocks)
	}
}

func TestRefreshWhileRunning(t *testing.T) {
	dir := t.TempDir()
	frames := map[string][]byte{
		"1.png": glyphtest.PNG(glyphtest.Page()),
		"2.png": glyphtest.PNG(glyphtest.Blank(240, 160)),
	}
	for name, data := range frames {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	capturer, err := screencap.NewDirectory(dir, "*.png", true)
	if err != nil {
		t.Fatal(err)
	}

	obs := &recordingObserver{}
	p := NewProcessor(capturer, newRecognizer(t), SkipDisabled, obs)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, 1000, nil)
		close(done)
	}()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if _, err := p.Refresh(ctx); err != nil {
					t.Errorf("Refresh() = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	cancel()
	<-done

	if n := obs.overlaps.Load(); n != 0 {
		t.Errorf("observers ran concurrently %d times", n)
	}
	if st := p.Stats(); st.Recognized < 80 {
		t.Errorf("Recognized = %d, want at least 80", st.Recognized)
	}
}

func TestRefreshCaptureError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1.png"), glyphtest.PNG(glyphtest.Page()), 0o644); err != nil {
		t.Fatal(err)
	}
	capturer, err := screencap.NewDirectory(dir, "*.png", false)
	if err != nil {
		t.Fatal(err)
	}
	p := NewProcessor(capturer, newRecognizer(t), SkipDisabled)
	ctx := context.Background()

	if _, err := p.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	_, err = p.Refresh(ctx)
	if !errors.Is(err, ErrCapture) || !errors.Is(err, screencap.ErrExhausted) {
		t.Errorf("Refresh() after last file = %v, want ErrCapture wrapping ErrExhausted", err)
	}
}

func TestWaitReturnsNextSnapshot(t *testing.T) {
	p := NewProcessor(nil, newRecognizer(t), SkipDisabled)
	got := make(chan Snapshot, 1)
	go func() {
		snap, _, _ := p.Wait(context.Background(), 0)
		got <- snap
	}()

	if _, err := p.Process(context.Background(), glyphtest.PNG(glyphtest.Page())); err != nil {
		t.Fatal(err)
	}
	select {
	case snap := <-got:
		if len(snap.Lines) != 2 {
			t.Errorf("Wait() lines = %v", snap.Lines)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return")
	}
}

// makePatternJPEG creates test images with distinct patterns for pHash testing.
func makePatternJPEG(pattern int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			var c color.RGBA
			switch pattern {
			case 0: // solid gray
				c = color.RGBA{R: 128, G: 128, B: 128, A: 255}
			case 1: // checkerboard
				if (x/8+y/8)%2 == 0 {
					c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
				} else {
					c = color.RGBA{R: 0, G: 0, B: 0, A: 255}
				}
			case 2: // horizontal gradient
				c = color.RGBA{R: uint8(x * 4), G: 0, B: uint8(255 - x*4), A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestShouldSkip_FirstFrame(t *testing.T) {
	p := &Processor{}
	if p.shouldSkip(decode(t, makePatternJPEG(0))) {
		t.Error("first frame should not be skipped")
	}
	if p.lastHash == nil {
		t.Error("lastHash should be set after first frame")
	}
}

func TestShouldSkip_IdenticalFrames(t *testing.T) {
	p := &Processor{}
	img := decode(t, makePatternJPEG(0))

	p.shouldSkip(img)
	if !p.shouldSkip(img) {
		t.Error("identical frames should be skipped")
	}
}

func TestShouldSkip_DifferentFrames(t *testing.T) {
	p := &Processor{}

	p.shouldSkip(decode(t, makePatternJPEG(1)))
	if p.shouldSkip(decode(t, makePatternJPEG(2))) {
		t.Error("visually distinct frames should not be skipped")
	}
}
