// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Per-connection websocket rate limiting
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Global IP-based rate limiting for recognition requests (prevents
	// multi-connection bypass attacks)
	IPRateLimitMessages        = 30               // Max requests per IP per window
	IPRateLimitWindow          = time.Second      // Sliding window duration
	IPRateLimitCleanupInterval = 5 * time.Minute  // How often to purge stale IP entries
	IPRateLimitEntryTTL        = 10 * time.Minute // TTL for inactive IP entries

	// MaxImageBytes bounds uploaded images.
	MaxImageBytes = 8 << 20

	// Dialog history returned when the request names no count
	DefaultDialogCount = 20

	// Per-client write timeout for broadcasts
	BroadcastWriteTimeout = 5 * time.Second
)
