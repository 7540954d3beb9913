// Package orchestrator coordinates capture, recognition, dialog tracking and
// recording
package orchestrator

import "time"

// Orchestrator configuration constants
const (
	// Dialog reader configuration
	DialogHistorySize = 50
	DialogEventBuffer = 100

	// Recorder batching
	RecorderMaxPending = 32
	RecorderFlushDelay = 2 * time.Second
)
