// Package syncx provides extended synchronization primitives
package syncx

import (
	"context"
	"sync"
)

// Latest holds the most recent value published by one producer and lets
// any number of readers poll it or block until it changes. Every successful
// write bumps a version counter starting at 1; version 0 means nothing has
// been published yet.
type Latest[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
	changed chan struct{}
}

// NewLatest creates an empty cell.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{changed: make(chan struct{})}
}

// Get returns the current value and its version.
func (l *Latest[T]) Get() (T, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.version
}

// Version returns the current version without copying the value.
func (l *Latest[T]) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Set publishes v and returns its version.
func (l *Latest[T]) Set(v T) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value = v
	return l.bump()
}

// Update lets fn mutate the value in place under the write lock. Waiters
// are only woken when fn reports a change.
func (l *Latest[T]) Update(fn func(*T) bool) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !fn(&l.value) {
		return l.version
	}
	return l.bump()
}

// Must hold l.mu for writing.
func (l *Latest[T]) bump() uint64 {
	l.version++
	close(l.changed)
	l.changed = make(chan struct{})
	return l.version
}

// Wait blocks until the version exceeds after, then returns the value.
func (l *Latest[T]) Wait(ctx context.Context, after uint64) (T, uint64, error) {
	for {
		l.mu.RLock()
		v, ver, ch := l.value, l.version, l.changed
		l.mu.RUnlock()
		if ver > after {
			return v, ver, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			var zero T
			return zero, ver, ctx.Err()
		}
	}
}
