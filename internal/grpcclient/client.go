package grpcclient

import (
	"bytes"
	"context"
	"errors"
	"image"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/wrapperspb"

	apperrors "github.com/GriffinCanCode/glyphscan/internal/errors"
	"github.com/GriffinCanCode/glyphscan/internal/recognize"
	"github.com/GriffinCanCode/glyphscan/internal/resilience"
	"github.com/GriffinCanCode/glyphscan/internal/rpc"
	"github.com/GriffinCanCode/glyphscan/internal/trace"
)

// Circuit states and errors re-exported for callers that only import the
// client.
const (
	CircuitClosed   = resilience.Closed
	CircuitOpen     = resilience.Open
	CircuitHalfOpen = resilience.HalfOpen
)

var ErrCircuitOpen = resilience.ErrOpen

// Config tunes the connection and its resilience.
type Config struct {
	KeepaliveTime       time.Duration
	KeepaliveTimeout    time.Duration
	HealthCheckInterval time.Duration
	CallTimeout         time.Duration
	Breaker             resilience.Config
	Retry               resilience.RetryConfig
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		KeepaliveTime:       DefaultKeepaliveTime,
		KeepaliveTimeout:    DefaultKeepaliveTimeout,
		HealthCheckInterval: DefaultHealthCheckInterval,
		CallTimeout:         DefaultCallTimeout,
		Breaker:             resilience.RecognizerConfig(),
		Retry:               resilience.DefaultRetryConfig(),
	}
}

// Client calls a remote Recognizer service.
type Client struct {
	conn    *grpc.ClientConn
	rec     rpc.RecognizerClient
	health  healthpb.HealthClient
	breaker *resilience.Breaker
	cfg     Config
	healthy atomic.Bool
}

// New creates a client for addr. The connection is established lazily.
func New(addr string, cfg Config, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor()),
		grpc.WithDefaultCallOptions(grpc.MaxCallSendMsgSize(rpc.MaxImageBytes + 1024)),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ConfigInvalid, "invalid recognizer address").WithMetadata("addr", addr)
	}

	c := &Client{
		conn:    conn,
		rec:     rpc.NewRecognizerClient(conn),
		health:  healthpb.NewHealthClient(conn),
		breaker: resilience.New(cfg.Breaker),
		cfg:     cfg,
	}
	c.healthy.Store(true)
	return c, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// State returns the circuit breaker state.
func (c *Client) State() resilience.State {
	return c.breaker.State()
}

// Healthy reports the outcome of the last health check.
func (c *Client) Healthy() bool {
	return c.healthy.Load()
}

// Recognize sends an encoded image to the remote recognizer.
func (c *Client) Recognize(ctx context.Context, data []byte) (recognize.Report, error) {
	ctx, span := trace.StartSpan(ctx, "grpc_recognize")
	defer span.Finish(ctx, "remote recognition")
	span.SetAttr("bytes", len(data))

	out, err := resilience.ExecuteWithResult(c.breaker, func() (recognize.Report, error) {
		return resilience.RetryValue(ctx, c.cfg.Retry, func() (recognize.Report, error) {
			return c.call(ctx, data)
		})
	})
	if err != nil {
		span.SetAttr("error", err.Error())
		return recognize.Report{}, c.classify(err)
	}
	span.SetAttr("matches", len(out.Matches))
	return out, nil
}

func (c *Client) call(ctx context.Context, data []byte) (recognize.Report, error) {
	if c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}
	resp, err := c.rec.Recognize(ctx, wrapperspb.Bytes(data))
	if err != nil {
		return recognize.Report{}, err
	}
	rep, err := rpc.FromStruct(resp)
	if err != nil {
		return recognize.Report{}, apperrors.Wrap(err, apperrors.Internal, "malformed response")
	}
	return rep, nil
}

func (c *Client) classify(err error) *apperrors.AppError {
	var app *apperrors.AppError
	switch {
	case errors.Is(err, resilience.ErrOpen):
		return apperrors.Wrap(err, apperrors.Unavailable, "recognizer circuit open").
			WithMetadata("breaker", c.breaker.Name())
	case errors.As(err, &app):
		return app
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.FromCore(err)
	default:
		return apperrors.FromGRPCError(err)
	}
}

// RecognizeImage encodes img as PNG and recognizes it remotely. The result
// carries lines and counters but no matches or screen frame.
func (c *Client) RecognizeImage(ctx context.Context, img image.Image) (*recognize.Result, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "encode image")
	}
	rep, err := c.Recognize(ctx, buf.Bytes())
	if err != nil {
		return nil, err
	}
	return &recognize.Result{
		Lines:      rep.Lines,
		Agreement:  rep.Agreement,
		Considered: rep.Considered,
		Truncated:  rep.Truncated,
	}, nil
}

// Check queries the remote health service.
func (c *Client) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: rpc.ServiceName})
	if err != nil {
		return apperrors.FromGRPCError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return apperrors.Newf(apperrors.Unavailable, "recognizer is %s", resp.GetStatus())
	}
	return nil
}

// RunHealthCheck polls the health service until ctx is done, logging
// transitions.
func (c *Client) RunHealthCheck(ctx context.Context) {
	interval := c.cfg.HealthCheckInterval
	if interval <= 0 {
		interval = DefaultHealthCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := trace.Logger(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := c.Check(ctx)
			healthy := err == nil
			if c.healthy.Swap(healthy) != healthy {
				if healthy {
					log.Info("recognizer healthy again")
				} else {
					log.Warn("recognizer unhealthy", "error", err)
				}
			}
		}
	}
}
