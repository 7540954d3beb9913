// Package screen turns captured frames into recognized screen text
package screen

import "time"

// Screen processing constants
const (
	// MaxCaptureInterval bounds the ticker when the configured rate is tiny.
	MaxCaptureInterval = time.Minute

	// SkipDisabled turns off perceptual-hash skipping when used as the
	// skip distance.
	SkipDisabled = -1
)
