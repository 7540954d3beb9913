package screen

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	apperrors "github.com/GriffinCanCode/glyphscan/internal/errors"
	"github.com/GriffinCanCode/glyphscan/internal/resilience"
	"github.com/GriffinCanCode/glyphscan/internal/trace"
)

// commandBackend runs an external grabber, e.g. ffmpeg reading one frame
// from a capture card, and reads the encoded image from its stdout.
type commandBackend struct {
	argv    []string
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

// NewCommand returns a capturer that runs argv once per frame.
func NewCommand(argv []string) (Capturer, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty capture command", ErrSource)
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSource, err)
	}
	return newBase(&commandBackend{
		argv:    argv,
		breaker: resilience.New(resilience.CaptureConfig()),
		retry:   resilience.FrameRetryConfig(),
	}), nil
}

func (c *commandBackend) captureRaw(ctx context.Context) ([]byte, error) {
	return resilience.ExecuteWithResult(c.breaker, func() ([]byte, error) {
		return resilience.RetryValue(ctx, c.retry, func() ([]byte, error) {
			return c.run(ctx)
		})
	})
}

func (c *commandBackend) run(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		trace.Logger(ctx).Debug("capture command failed", "error", err, "stderr", strings.TrimSpace(stderr.String()))
		return nil, apperrors.Wrap(err, apperrors.FrameCaptureFailed, "capture command failed").
			WithMetadata("command", c.argv[0])
	}
	if stdout.Len() == 0 {
		return nil, apperrors.New(apperrors.FrameCaptureFailed, "capture command printed nothing").
			WithMetadata("command", c.argv[0])
	}
	return stdout.Bytes(), nil
}

func (c *commandBackend) cleanup() error { return nil }
