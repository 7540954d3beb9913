// Package screen provides frame sources for the recognizer: a replay of
// image files on disk, or an external command that prints one captured
// image per invocation.
package screen

import (
	"context"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"
)

// Capturer captures screenshots with change detection
type Capturer interface {
	// Capture returns the next image and whether it differs from the
	// previous one. Unchanged images are not returned.
	Capture(ctx context.Context) ([]byte, bool, error)
	// CaptureAlways returns the next image regardless of change.
	CaptureAlways(ctx context.Context) ([]byte, error)
	Close() error
}

// backend produces raw encoded images
type backend interface {
	captureRaw(ctx context.Context) ([]byte, error)
	cleanup() error
}

// baseCapturer provides shared digest-based change detection. Backends are
// only ever called with mu held.
type baseCapturer struct {
	backend

	mu   sync.Mutex
	last [32]byte
	seen bool
}

func newBase(b backend) *baseCapturer {
	return &baseCapturer{backend: b}
}

func (c *baseCapturer) Capture(ctx context.Context) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := c.captureRaw(ctx)
	if err != nil {
		return nil, false, err
	}
	sum := blake3.Sum256(data)
	if c.seen && sum == c.last {
		return nil, false, nil
	}
	c.last, c.seen = sum, true
	return data, true, nil
}

func (c *baseCapturer) CaptureAlways(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := c.captureRaw(ctx)
	if err != nil {
		return nil, err
	}
	c.last, c.seen = blake3.Sum256(data), true
	return data, nil
}

func (c *baseCapturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanup()
}

// Source selects the command backend in Open.
const Source = "command"

// Open returns the capturer a FRAME_SOURCE setting names: "command" runs
// argv for every frame, anything else is a directory replayed through
// pattern.
func Open(source, pattern string, argv []string) (Capturer, error) {
	switch source {
	case "":
		return nil, fmt.Errorf("%w: no frame source configured", ErrSource)
	case Source:
		return NewCommand(argv)
	default:
		return NewDirectory(source, pattern, false)
	}
}
