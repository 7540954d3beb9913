package grpcclient

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	apperrors "github.com/GriffinCanCode/glyphscan/internal/errors"
	"github.com/GriffinCanCode/glyphscan/internal/glyph"
	"github.com/GriffinCanCode/glyphscan/internal/glyph/glyphtest"
	"github.com/GriffinCanCode/glyphscan/internal/recognize"
	"github.com/GriffinCanCode/glyphscan/internal/resilience"
	"github.com/GriffinCanCode/glyphscan/internal/rpc"
	"github.com/GriffinCanCode/glyphscan/internal/scan"
)

// fakeRecognizer fails the first failures calls with err.
type fakeRecognizer struct {
	calls    atomic.Int32
	failures int32
	err      error
}

func (f *fakeRecognizer) Recognize(context.Context, []byte) (*recognize.Result, error) {
	if n := f.calls.Add(1); n <= f.failures || f.failures < 0 {
		return nil, f.err
	}
	a := &glyph.Glyph{ID: 1, Label: "A", Width: 5}
	return &recognize.Result{
		Matches: []scan.Match{{X: 10, Y: 20, Glyph: a}},
		Lines:   []recognize.Line{{Y: 20, Text: "A"}},
	}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry = resilience.RetryConfig{
		MaxRetries:  2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		IsRetryable: resilience.IsRetryable,
	}
	cfg.Breaker.ResetTimeout = time.Hour
	return cfg
}

func newClient(t *testing.T, rec rpc.Recognizer, cfg Config) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := rpc.NewServer(rec)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Shutdown)

	c, err := New("passthrough:///bufnet", cfg, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.KeepaliveTime != 10*time.Second {
		t.Errorf("KeepaliveTime = %v, want 10s", cfg.KeepaliveTime)
	}
	if cfg.KeepaliveTimeout != 3*time.Second {
		t.Errorf("KeepaliveTimeout = %v, want 3s", cfg.KeepaliveTimeout)
	}
	if cfg.HealthCheckInterval != 5*time.Second {
		t.Errorf("HealthCheckInterval = %v, want 5s", cfg.HealthCheckInterval)
	}
	if cfg.Breaker.Name != "recognizer" {
		t.Errorf("Breaker.Name = %q, want recognizer", cfg.Breaker.Name)
	}
}

func TestBackwardsCompatibility(t *testing.T) {
	// Test type aliases work correctly
	if CircuitClosed != resilience.Closed {
		t.Error("CircuitClosed != resilience.Closed")
	}
	if CircuitOpen != resilience.Open {
		t.Error("CircuitOpen != resilience.Open")
	}
	if CircuitHalfOpen != resilience.HalfOpen {
		t.Error("CircuitHalfOpen != resilience.HalfOpen")
	}

	// Test error alias
	if ErrCircuitOpen != resilience.ErrOpen {
		t.Error("ErrCircuitOpen != resilience.ErrOpen")
	}
}

func TestRecognize(t *testing.T) {
	c := newClient(t, &fakeRecognizer{}, testConfig())

	rep, err := c.Recognize(context.Background(), []byte("image"))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(rep.Lines) != 1 || rep.Lines[0].Text != "A" {
		t.Errorf("Lines = %+v", rep.Lines)
	}
	if len(rep.Matches) != 1 || rep.Matches[0].X != 10 {
		t.Errorf("Matches = %+v", rep.Matches)
	}
	if c.State() != CircuitClosed {
		t.Errorf("State = %v, want closed", c.State())
	}
}

func TestRecognizeRetriesUnavailable(t *testing.T) {
	fake := &fakeRecognizer{failures: 1, err: apperrors.New(apperrors.Unavailable, "warming up")}
	c := newClient(t, fake, testConfig())

	if _, err := c.Recognize(context.Background(), []byte("image")); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if got := fake.calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestRecognizeCallerErrors(t *testing.T) {
	fake := &fakeRecognizer{failures: -1, err: apperrors.New(apperrors.FrameDecodeFailed, "undecodable image")}
	cfg := testConfig()
	cfg.Breaker.Threshold = 1
	c := newClient(t, fake, cfg)

	for i := 0; i < 3; i++ {
		_, err := c.Recognize(context.Background(), []byte("garbage"))
		if !apperrors.IsCode(err, apperrors.FrameDecodeFailed) {
			t.Fatalf("Recognize() = %v, want FRAME_DECODE_FAILED", err)
		}
	}
	if got := fake.calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3 (no retries)", got)
	}
	if c.State() != CircuitClosed {
		t.Errorf("caller errors tripped the breaker: %v", c.State())
	}
}

func TestRecognizeOpensCircuit(t *testing.T) {
	fake := &fakeRecognizer{failures: -1, err: apperrors.New(apperrors.Unavailable, "down")}
	cfg := testConfig()
	cfg.Retry.MaxRetries = 0
	cfg.Breaker.Threshold = 1
	c := newClient(t, fake, cfg)

	if _, err := c.Recognize(context.Background(), []byte("image")); !apperrors.IsCode(err, apperrors.Unavailable) {
		t.Fatalf("first call = %v, want UNAVAILABLE", err)
	}
	if c.State() != CircuitOpen {
		t.Fatalf("State = %v, want open", c.State())
	}

	_, err := c.Recognize(context.Background(), []byte("image"))
	if !apperrors.IsCode(err, apperrors.Unavailable) {
		t.Errorf("second call = %v, want UNAVAILABLE", err)
	}
	var app *apperrors.AppError
	if !errors.As(err, &app) || app.Metadata["breaker"] != "recognizer" {
		t.Errorf("open circuit error = %v, want breaker metadata", err)
	}
	if got := fake.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestRecognizeImage(t *testing.T) {
	c := newClient(t, &fakeRecognizer{}, testConfig())
	res, err := c.RecognizeImage(context.Background(), glyphtest.Page().Image(1))
	if err != nil {
		t.Fatalf("RecognizeImage: %v", err)
	}
	if res.Text() != "A" {
		t.Errorf("Text() = %q, want A", res.Text())
	}
}

func TestCheck(t *testing.T) {
	c := newClient(t, &fakeRecognizer{}, testConfig())
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check() = %v", err)
	}
	if !c.Healthy() {
		t.Error("new client should start healthy")
	}
}
