// Package grpcclient provides a client for a remote recognizer's gRPC server
package grpcclient

import "time"

// Client configuration defaults
const (
	// Keepalive configuration
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second

	// Health check configuration
	DefaultHealthCheckInterval = 5 * time.Second
	HealthCheckTimeout         = 2 * time.Second

	// DefaultCallTimeout bounds one Recognize attempt.
	DefaultCallTimeout = 10 * time.Second
)
