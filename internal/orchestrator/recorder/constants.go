package recorder

import "time"

// Recorder defaults
const (
	DefaultMaxPending = 32
	DefaultFlushDelay = 2 * time.Second

	// Shift reduces 8-bit gray to the four shades a packed record holds.
	Shift = 6
)

// Magic starts every record in an archive.
var Magic = [4]byte{'+', 'f', 0xc9, 'q'}

// HeaderLen is the record size before the packed payload.
const HeaderLen = len(Magic) + 4 + 1
