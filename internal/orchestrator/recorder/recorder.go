// Package recorder archives recognized screens as packed 2bpp frames.
//
// An archive is a gzip stream of records: the 4-byte Magic, the capture time
// in Unix seconds as a little-endian uint32, an 8-bit frame counter and the
// pack.Pack payload. The counter advances on every observed frame, skipped
// ones included, so gaps in it show where the screen stood still. Every
// Start appends a new gzip member to the file.
package recorder

import (
	"context"
	"encoding/binary"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	apperrors "github.com/GriffinCanCode/glyphscan/internal/errors"
	"github.com/GriffinCanCode/glyphscan/internal/frame"
	"github.com/GriffinCanCode/glyphscan/internal/orchestrator/timestamp"
	"github.com/GriffinCanCode/glyphscan/internal/pack"
	"github.com/GriffinCanCode/glyphscan/internal/palette"
	"github.com/GriffinCanCode/glyphscan/internal/recognize"
	"github.com/GriffinCanCode/glyphscan/internal/trace"
)

var quantize = palette.Quantize(Shift)

// Recorder buffers encoded records and writes them to the archive in
// batches, either once maxPending records are queued or flushDelay after the
// first one.
type Recorder struct {
	path       string
	maxPending int
	flushDelay time.Duration

	mu      sync.Mutex
	file    *os.File
	gz      *gzip.Writer
	pending [][]byte
	timer   *time.Timer
	last    []byte
	counter uint8
	written uint64
	err     error
}

// New creates a stopped recorder writing to path.
func New(path string, maxPending int, flushDelay time.Duration) *Recorder {
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	if flushDelay <= 0 {
		flushDelay = DefaultFlushDelay
	}
	return &Recorder{
		path:       path,
		maxPending: maxPending,
		flushDelay: flushDelay,
		pending:    make([][]byte, 0, maxPending),
	}
}

// Path returns the archive location.
func (r *Recorder) Path() string { return r.path }

// Start opens the archive for appending. Starting a running recorder is a
// no-op.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gz != nil {
		return nil
	}

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return apperrors.Wrap(err, apperrors.RecorderFailed, "open archive").WithMetadata("path", r.path)
	}
	gz, err := gzip.NewWriterLevel(f, gzip.BestSpeed)
	if err != nil {
		_ = f.Close()
		return apperrors.Wrap(err, apperrors.RecorderFailed, "start compressor")
	}
	r.file, r.gz = f, gz
	r.last = nil
	r.err = nil
	return nil
}

// Recording reports whether the recorder is started.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gz != nil
}

// Written returns the number of records written since creation.
func (r *Recorder) Written() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// ObserveScreen implements the screen processor's observer. Records are
// stamped with the stream clock when one was read, otherwise with the
// capture time.
func (r *Recorder) ObserveScreen(ctx context.Context, res *recognize.Result, at time.Time, clock timestamp.Stamp) {
	if res.Screen == nil {
		return
	}
	stamp := uint32(at.Unix())
	if clock.Valid() {
		stamp = clock.Seconds
	}
	if err := r.Observe(res.Screen, stamp); err != nil {
		trace.Logger(ctx).Warn("recording frame failed", "error", err)
	}
}

// Observe queues a record for f unless its quantized samples equal the
// previous frame's. It does nothing while the recorder is stopped.
func (r *Recorder) Observe(f *frame.Frame, stamp uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gz == nil {
		return nil
	}
	if r.err != nil {
		return r.err
	}

	r.counter++
	rows, err := f.Convert(frame.RowMajor)
	if err != nil {
		return apperrors.Wrap(err, apperrors.RecorderFailed, "convert frame")
	}
	samples := rows.Samples()
	if err := palette.Translate(samples, quantize); err != nil {
		return apperrors.Wrap(err, apperrors.RecorderFailed, "quantize frame")
	}
	if r.last != nil && string(samples) == string(r.last) {
		return nil
	}

	packed, err := pack.Pack(samples, f.Width(), f.Height())
	if err != nil {
		return apperrors.Wrap(err, apperrors.RecorderFailed, "pack frame")
	}
	r.last = samples

	rec := make([]byte, HeaderLen, HeaderLen+len(packed))
	copy(rec, Magic[:])
	binary.LittleEndian.PutUint32(rec[len(Magic):], stamp)
	rec[HeaderLen-1] = r.counter
	r.pending = append(r.pending, append(rec, packed...))

	if len(r.pending) >= r.maxPending {
		return r.flushLocked()
	}
	if r.timer == nil {
		r.timer = time.AfterFunc(r.flushDelay, r.timerFlush)
	} else {
		r.timer.Reset(r.flushDelay)
	}
	return nil
}

func (r *Recorder) timerFlush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.flushLocked(); err != nil {
		trace.Logger(context.Background()).Warn("recorder flush failed", "error", err, "path", r.path)
	}
}

// Must hold r.mu.
func (r *Recorder) flushLocked() error {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if len(r.pending) == 0 || r.gz == nil {
		return r.err
	}
	records := r.pending
	r.pending = make([][]byte, 0, r.maxPending)

	for _, rec := range records {
		if _, err := r.gz.Write(rec); err != nil {
			r.err = apperrors.Wrap(err, apperrors.RecorderFailed, "write record").WithMetadata("path", r.path)
			return r.err
		}
		r.written++
	}
	if err := r.gz.Flush(); err != nil {
		r.err = apperrors.Wrap(err, apperrors.RecorderFailed, "flush archive").WithMetadata("path", r.path)
	}
	return r.err
}

// Flush writes queued records immediately.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

// Stop flushes queued records and closes the archive. Stopping a stopped
// recorder is a no-op.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gz == nil {
		return nil
	}

	err := r.flushLocked()
	if cerr := r.gz.Close(); err == nil && cerr != nil {
		err = apperrors.Wrap(cerr, apperrors.RecorderFailed, "close compressor")
	}
	if cerr := r.file.Close(); err == nil && cerr != nil {
		err = apperrors.Wrap(cerr, apperrors.RecorderFailed, "close archive")
	}
	r.gz, r.file = nil, nil
	r.pending = r.pending[:0]
	return err
}
