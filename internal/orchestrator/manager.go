package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/GriffinCanCode/glyphscan/internal/config"
	apperrors "github.com/GriffinCanCode/glyphscan/internal/errors"
	"github.com/GriffinCanCode/glyphscan/internal/frame"
	"github.com/GriffinCanCode/glyphscan/internal/orchestrator/dialog"
	"github.com/GriffinCanCode/glyphscan/internal/orchestrator/recorder"
	"github.com/GriffinCanCode/glyphscan/internal/orchestrator/screen"
	"github.com/GriffinCanCode/glyphscan/internal/orchestrator/timestamp"
	"github.com/GriffinCanCode/glyphscan/internal/recognize"
	screencap "github.com/GriffinCanCode/glyphscan/internal/screen"
	"github.com/GriffinCanCode/glyphscan/internal/trace"
)

// Utterance re-exported for API compatibility
type Utterance = dialog.Utterance

// Stats summarizes the pipeline for status endpoints.
type Stats struct {
	Screen         screen.Stats `json:"screen"`
	Utterances     int          `json:"utterances"`
	Recording      bool         `json:"recording"`
	RecordsWritten uint64       `json:"records_written"`
}

// Manager coordinates all services
type Manager struct {
	cfg      *config.Config
	rec      screen.Recognizer
	capturer screencap.Capturer

	screenProc *screen.Processor
	dialog     *dialog.Reader
	recorder   *recorder.Recorder // nil without RECORD_PATH

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a manager. A nil capturer leaves only one-shot recognition
// available.
func New(cfg *config.Config, rec screen.Recognizer, capturer screencap.Capturer) *Manager {
	m := &Manager{
		cfg:      cfg,
		rec:      rec,
		capturer: capturer,
		dialog:   dialog.NewReader(cfg.DialogTopRow, cfg.DialogMaxDist, DialogHistorySize, DialogEventBuffer),
		stopCh:   make(chan struct{}),
	}

	observers := []screen.Observer{m.dialog}
	if cfg.RecordPath != "" {
		m.recorder = recorder.New(cfg.RecordPath, RecorderMaxPending, RecorderFlushDelay)
		observers = append(observers, m.recorder)
	}
	m.screenProc = screen.NewProcessor(capturer, rec, cfg.SkipHashDistance, observers...)
	if region := cfg.ClockRegion(); !region.Empty() {
		m.screenProc.SetClock(timestamp.NewReader(region))
	}
	return m
}

// Start begins orchestration
func (m *Manager) Start(ctx context.Context) error {
	log := trace.Logger(ctx)
	if m.cfg.RecordOnStart {
		if err := m.SetRecording(true); err != nil {
			return err
		}
	}
	if m.capturer == nil {
		log.Info("no frame source configured, serving one-shot recognition only")
		return nil
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.screenProc.Run(ctx, m.cfg.CaptureRate, m.stopCh)
	}()
	return nil
}

// Stop stops orchestration and closes the frame source and the archive.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()

		log := trace.Logger(context.Background())
		if m.recorder != nil {
			if err := m.recorder.Stop(); err != nil {
				log.Error("closing recorder failed", "error", err)
			}
		}
		if m.capturer != nil {
			if err := m.capturer.Close(); err != nil {
				log.Warn("closing frame source failed", "error", err)
			}
		}
	})
}

// Done is closed once Stop has been called.
func (m *Manager) Done() <-chan struct{} {
	return m.stopCh
}

// Recognize runs recognition on one encoded image without publishing it.
func (m *Manager) Recognize(ctx context.Context, data []byte) (*recognize.Result, error) {
	ctx, span := trace.StartSpan(ctx, "orchestrator_recognize")
	defer span.Finish(ctx, "one-shot recognition")
	span.SetAttr("bytes", len(data))

	img, err := frame.Decode(bytes.NewReader(data))
	if err != nil {
		span.SetAttr("error", err.Error())
		return nil, apperrors.FromCore(err)
	}
	res, err := m.rec.RecognizeImage(ctx, img)
	if err != nil {
		span.SetAttr("error", err.Error())
		return nil, apperrors.FromCore(err)
	}
	span.SetAttr("matches", len(res.Matches))
	return res, nil
}

// Refresh captures a frame now, bypassing change detection, and processes
// it like a captured one.
func (m *Manager) Refresh(ctx context.Context) (*recognize.Result, error) {
	if m.capturer == nil {
		return nil, apperrors.New(apperrors.ConfigMissing, "no frame source configured")
	}
	res, err := m.screenProc.Refresh(ctx)
	if err != nil {
		var app *apperrors.AppError
		switch {
		case errors.As(err, &app):
			return nil, app
		case errors.Is(err, screen.ErrCapture):
			return nil, apperrors.Wrap(err, apperrors.FrameCaptureFailed, "capture failed")
		case errors.Is(err, screen.ErrSimilarFrame):
			return nil, apperrors.Wrap(err, apperrors.Unavailable, "frame unchanged")
		}
		return nil, apperrors.FromCore(err)
	}
	return res, nil
}

// LatestScreen returns the latest recognized screen and its version.
func (m *Manager) LatestScreen() (screen.Snapshot, uint64) {
	return m.screenProc.Latest()
}

// WaitScreen blocks until a screen newer than version after is recognized.
func (m *Manager) WaitScreen(ctx context.Context, after uint64) (screen.Snapshot, uint64, error) {
	return m.screenProc.Wait(ctx, after)
}

// RecentDialog returns up to n of the latest utterances, oldest first.
func (m *Manager) RecentDialog(n int) []Utterance {
	return m.dialog.Recent(n)
}

// DialogEvents returns channel for flushed utterances
func (m *Manager) DialogEvents() <-chan Utterance {
	return m.dialog.Events()
}

// SetRecording starts or stops the frame archive.
func (m *Manager) SetRecording(enabled bool) error {
	if m.recorder == nil {
		return apperrors.New(apperrors.ConfigMissing, "RECORD_PATH is not set")
	}
	var err error
	if enabled {
		err = m.recorder.Start()
	} else {
		err = m.recorder.Stop()
	}
	if err != nil {
		return err
	}
	trace.Logger(context.Background()).Info("recording state changed", "enabled", enabled, "path", m.recorder.Path())
	return nil
}

// Recording reports whether frames are being archived.
func (m *Manager) Recording() bool {
	return m.recorder != nil && m.recorder.Recording()
}

// Stats returns pipeline counters.
func (m *Manager) Stats() Stats {
	st := Stats{
		Screen:     m.screenProc.Stats(),
		Utterances: len(m.dialog.Recent(0)),
		Recording:  m.Recording(),
	}
	if m.recorder != nil {
		st.RecordsWritten = m.recorder.Written()
	}
	return st
}
