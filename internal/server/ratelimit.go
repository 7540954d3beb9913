package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"
)

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	limit      int
	window     time.Duration
	timestamps []time.Time
	lastSeen   time.Time
	mu         sync.Mutex
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{limit: limit, window: window}
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)
	r.lastSeen = now

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= r.limit {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

func (r *rateLimiter) idleSince(t time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSeen.Before(t)
}

// ipLimiter shares one sliding window per client IP across connections.
type ipLimiter struct {
	mu      sync.Mutex
	clients map[string]*rateLimiter
}

func newIPLimiter() *ipLimiter {
	return &ipLimiter{clients: make(map[string]*rateLimiter)}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	rl, ok := l.clients[ip]
	if !ok {
		rl = newRateLimiter(IPRateLimitMessages, IPRateLimitWindow)
		l.clients[ip] = rl
	}
	l.mu.Unlock()
	return rl.allow()
}

// purge drops entries idle for longer than IPRateLimitEntryTTL.
func (l *ipLimiter) purge(now time.Time) {
	cutoff := now.Add(-IPRateLimitEntryTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, rl := range l.clients {
		if rl.idleSince(cutoff) {
			delete(l.clients, ip)
		}
	}
}

func (l *ipLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(IPRateLimitCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.purge(now)
		}
	}
}

// limit rejects requests beyond the per-IP budget with 429.
func (l *ipLimiter) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Code: "RATE_LIMITED"})
			return
		}
		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
