package screen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corona10/goimagehash"

	"github.com/GriffinCanCode/glyphscan/internal/frame"
	"github.com/GriffinCanCode/glyphscan/internal/orchestrator/timestamp"
	"github.com/GriffinCanCode/glyphscan/internal/reconcile"
	"github.com/GriffinCanCode/glyphscan/internal/recognize"
	"github.com/GriffinCanCode/glyphscan/internal/resilience"
	screencap "github.com/GriffinCanCode/glyphscan/internal/screen"
	"github.com/GriffinCanCode/glyphscan/internal/syncx"
	"github.com/GriffinCanCode/glyphscan/internal/trace"
)

// Recognizer turns a captured image into text.
type Recognizer interface {
	RecognizeImage(ctx context.Context, img image.Image) (*recognize.Result, error)
}

// Observer receives every screen the processor recognizes, in capture order,
// with the capture time and the stream clock shown on the frame (the zero
// Stamp when no clock has been read).
type Observer interface {
	ObserveScreen(ctx context.Context, res *recognize.Result, at time.Time, clock timestamp.Stamp)
}

// Snapshot is the most recent recognized screen.
type Snapshot struct {
	Lines     []recognize.Line `json:"lines"`
	Matches   int              `json:"matches"`
	Agreement int              `json:"agreement"`
	Truncated bool             `json:"truncated"`
	At        time.Time        `json:"at"`
	Clock     string           `json:"clock,omitempty"`
}

// Stats counts frames by outcome.
type Stats struct {
	Captured   uint64 `json:"captured"`
	Skipped    uint64 `json:"skipped"`
	Recognized uint64 `json:"recognized"`
	Conflicts  uint64 `json:"conflicts"`
	Failed     uint64 `json:"failed"`
}

// Processor handles screen capture and recognition.
type Processor struct {
	capturer  screencap.Capturer
	rec       Recognizer
	observers []Observer
	skipDist  int
	clock     *timestamp.Reader

	// step serializes capture and processing so frames reach observers
	// in capture order.
	step sync.Mutex

	mu       sync.Mutex
	lastHash *goimagehash.ImageHash

	latest *syncx.Latest[Snapshot]

	captured, skipped, recognized, conflicts, failed atomic.Uint64
}

// NewProcessor creates a screen processor. Frames whose perceptual hash is
// within skipDist of the last recognized frame are skipped; SkipDisabled
// recognizes every changed frame.
func NewProcessor(capturer screencap.Capturer, rec Recognizer, skipDist int, observers ...Observer) *Processor {
	return &Processor{
		capturer:  capturer,
		rec:       rec,
		observers: observers,
		skipDist:  skipDist,
		latest:    syncx.NewLatest[Snapshot](),
	}
}

// SetClock makes the processor read the stream clock from every recognized
// frame. It must be called before Run.
func (p *Processor) SetClock(r *timestamp.Reader) {
	p.clock = r
}

// Run starts the screen capture loop. It returns when ctx is done, stopCh
// closes or a replay source runs out of frames.
func (p *Processor) Run(ctx context.Context, captureRate float64, stopCh <-chan struct{}) {
	interval := MaxCaptureInterval
	if captureRate > 0 {
		interval = min(time.Duration(float64(time.Second)/captureRate), MaxCaptureInterval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := trace.Logger(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if err := p.tick(ctx); errors.Is(err, screencap.ErrExhausted) {
				log.Info("frame source exhausted", "captured", p.captured.Load())
				return
			}
		}
	}
}

// tick captures and processes one frame if it changed.
func (p *Processor) tick(ctx context.Context) error {
	p.step.Lock()
	defer p.step.Unlock()

	data, changed, err := p.capturer.Capture(ctx)
	switch {
	case errors.Is(err, screencap.ErrExhausted):
		return err
	case errors.Is(err, resilience.ErrOpen):
		return nil
	case err != nil:
		if ctx.Err() == nil {
			trace.Logger(ctx).Warn("capture failed", "error", err)
		}
		return nil
	case !changed:
		return nil
	}
	_, _ = p.process(ctx, data)
	return nil
}

// Refresh captures a frame now, bypassing change detection, and processes
// it. It is serialized with the capture loop.
func (p *Processor) Refresh(ctx context.Context) (*recognize.Result, error) {
	p.step.Lock()
	defer p.step.Unlock()

	data, err := p.capturer.CaptureAlways(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}
	return p.process(ctx, data)
}

// Process recognizes one encoded image and publishes the result. A frame
// on which the recognition passes disagree is dropped and the previous
// snapshot stays current.
func (p *Processor) Process(ctx context.Context, data []byte) (*recognize.Result, error) {
	p.step.Lock()
	defer p.step.Unlock()
	return p.process(ctx, data)
}

func (p *Processor) process(ctx context.Context, data []byte) (*recognize.Result, error) {
	ctx, span := trace.StartSpan(ctx, "screen_frame")
	defer span.Finish(ctx, "screen frame processed")
	log := trace.Logger(ctx)
	p.captured.Add(1)
	now := time.Now()

	img, err := frame.Decode(bytes.NewReader(data))
	if err != nil {
		p.failed.Add(1)
		span.SetAttr("error", err.Error())
		log.Debug("undecodable frame", "error", err, "bytes", len(data))
		return nil, err
	}

	if p.shouldSkip(img) {
		p.skipped.Add(1)
		span.SetAttr("skipped", true)
		return nil, ErrSimilarFrame
	}

	res, err := p.rec.RecognizeImage(ctx, img)
	if err != nil {
		span.SetAttr("error", err.Error())
		if errors.Is(err, reconcile.ErrConflict) {
			p.conflicts.Add(1)
			log.Warn("recognition passes disagree, frame dropped", "error", err)
		} else {
			p.failed.Add(1)
			log.Error("recognition failed", "error", err)
		}
		// Forget the hash so the next similar frame gets another chance.
		p.mu.Lock()
		p.lastHash = nil
		p.mu.Unlock()
		return nil, err
	}

	var clock timestamp.Stamp
	if p.clock != nil {
		clock, _ = p.clock.Read(img)
	}

	p.recognized.Add(1)
	span.SetAttr("matches", len(res.Matches))
	span.SetAttr("agreement", res.Agreement)
	p.latest.Set(Snapshot{
		Lines:     res.Lines,
		Matches:   len(res.Matches),
		Agreement: res.Agreement,
		Truncated: res.Truncated,
		At:        now,
		Clock:     clock.Text,
	})
	for _, o := range p.observers {
		o.ObserveScreen(ctx, res, now, clock)
	}
	return res, nil
}

// shouldSkip computes the pHash and reports whether it is within skipDist
// of the last recognized frame.
func (p *Processor) shouldSkip(img image.Image) bool {
	if p.skipDist < 0 {
		return false
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastHash == nil {
		p.lastHash = hash
		return false
	}
	dist, err := p.lastHash.Distance(hash)
	if err != nil || dist > p.skipDist {
		p.lastHash = hash
		return false
	}
	return true
}

// Latest returns the most recent snapshot and its version; version 0 means
// no screen has been recognized yet.
func (p *Processor) Latest() (Snapshot, uint64) {
	return p.latest.Get()
}

// Wait blocks until a snapshot newer than version after is published.
func (p *Processor) Wait(ctx context.Context, after uint64) (Snapshot, uint64, error) {
	return p.latest.Wait(ctx, after)
}

// Stats returns the frame counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Captured:   p.captured.Load(),
		Skipped:    p.skipped.Load(),
		Recognized: p.recognized.Load(),
		Conflicts:  p.conflicts.Load(),
		Failed:     p.failed.Load(),
	}
}
