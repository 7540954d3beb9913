// Package resilience wraps calls to the remote recognizer and the capture
// command in circuit breakers and retries.
//
// A breaker starts closed and lets every call through, counting failures
// in a row. Threshold failures open it: calls then fail fast with ErrOpen
// until ResetTimeout has passed since the last failure. The first call
// after that moves it to half-open, where calls go through again;
// HalfOpenSuccesses successes close it and a single failure reopens it.
package resilience

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// State is a breaker position.
type State uint32

const (
	Closed State = iota
	Open
	HalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// ErrOpen is returned while the breaker is failing fast.
var ErrOpen = errors.New("circuit breaker open")

// Breaker guards one dependency. All methods are safe for concurrent use.
type Breaker struct {
	cfg Config

	state     atomic.Uint32
	failures  atomic.Int32 // consecutive, while closed
	successes atomic.Int32 // while half-open
	lastFail  atomic.Int64 // unix nanoseconds

	hook func(from, to State)
}

// New returns a closed breaker. Zero fields of cfg take the defaults.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults()}
}

// Name identifies the guarded dependency in logs.
func (b *Breaker) Name() string { return b.cfg.Name }

// WithHook registers fn to run after every state change. It must be set
// before the breaker is shared.
func (b *Breaker) WithHook(fn func(from, to State)) *Breaker {
	b.hook = fn
	return b
}

// State returns the current position.
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// Allow returns ErrOpen while calls must fail fast, and nil otherwise.
func (b *Breaker) Allow() error {
	if b.State() != Open {
		return nil
	}
	if time.Since(time.Unix(0, b.lastFail.Load())) <= b.cfg.ResetTimeout {
		return ErrOpen
	}
	// one caller moves the breaker; the rest find it half-open
	b.move(Open, HalfOpen)
	return nil
}

// Success records a call that went well.
func (b *Breaker) Success() {
	switch b.State() {
	case Closed:
		b.failures.Store(0)
	case HalfOpen:
		if b.successes.Add(1) >= int32(b.cfg.HalfOpenSuccesses) {
			b.move(HalfOpen, Closed)
		}
	}
}

// Failure records a call the dependency failed.
func (b *Breaker) Failure() {
	b.lastFail.Store(time.Now().UnixNano())
	n := b.failures.Add(1)
	switch b.State() {
	case Closed:
		if n >= int32(b.cfg.Threshold) {
			b.move(Closed, Open)
		}
	case HalfOpen:
		b.move(HalfOpen, Open)
	}
}

// Reset closes the breaker whatever its state.
func (b *Breaker) Reset() {
	from := State(b.state.Swap(uint32(Closed)))
	if from != Closed {
		b.entered(from, Closed)
	}
}

// move switches from one state to another and reports whether this call
// did it.
func (b *Breaker) move(from, to State) bool {
	if !b.state.CompareAndSwap(uint32(from), uint32(to)) {
		return false
	}
	b.entered(from, to)
	return true
}

func (b *Breaker) entered(from, to State) {
	b.successes.Store(0)
	if to == Closed {
		b.failures.Store(0)
	}

	log := slog.With("breaker", b.cfg.Name, "from", from.String(), "to", to.String())
	if to == Open {
		log.Warn("circuit breaker opened", "failures", b.failures.Load())
	} else {
		log.Info("circuit breaker state changed")
	}

	if b.hook != nil {
		b.hook(from, to)
	}
}

// Execute runs fn unless the breaker is open. Errors the caller caused
// (see Config.Counts) do not count against the dependency.
func (b *Breaker) Execute(fn func() error) error {
	_, err := ExecuteWithResult(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// ExecuteWithResult is Execute for calls that return a value.
func ExecuteWithResult[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	v, err := fn()
	b.done(err)
	if err != nil {
		return zero, err
	}
	return v, nil
}

func (b *Breaker) done(err error) {
	if err != nil && (b.cfg.Counts == nil || b.cfg.Counts(err)) {
		b.Failure()
		return
	}
	b.Success()
}
