package resilience

import "time"

// Circuit breaker configuration constants
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// The remote recognizer is a peer process; give it time to restart.
	RecognizerThreshold         = 3
	RecognizerResetTimeout      = 10 * time.Second
	RecognizerHalfOpenSuccesses = 2

	// Capture commands fail for seconds at a time when the device is
	// unplugged. Back off long enough not to spin on exec.
	CaptureThreshold         = 5
	CaptureResetTimeout      = 5 * time.Second
	CaptureHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Name              string        // dependency name for logs
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
	// Counts reports whether err reflects on the dependency. Nil counts
	// every error.
	Counts func(error) bool
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() Config {
	return Config{
		Name:              "default",
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// RecognizerConfig guards calls to a remote recognizer. Requests it rejects
// as invalid do not trip the breaker.
func RecognizerConfig() Config {
	return Config{
		Name:              "recognizer",
		Threshold:         RecognizerThreshold,
		ResetTimeout:      RecognizerResetTimeout,
		HalfOpenSuccesses: RecognizerHalfOpenSuccesses,
		Counts:            IsRetryable,
	}
}

// CaptureConfig guards the external capture command. Cancellation on
// shutdown does not trip the breaker.
func CaptureConfig() Config {
	return Config{
		Name:              "capture",
		Threshold:         CaptureThreshold,
		ResetTimeout:      CaptureResetTimeout,
		HalfOpenSuccesses: CaptureHalfOpenSuccesses,
		Counts:            IsRetryable,
	}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
