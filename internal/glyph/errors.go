package glyph

import "errors"

// Sentinel errors for glyph and dictionary construction.
var (
	ErrHeight        = errors.New("glyph: height out of range")
	ErrWidth         = errors.New("glyph: width out of range")
	ErrShape         = errors.New("glyph: image shape mismatch")
	ErrNotNormalized = errors.New("glyph: ranks are not in discovery order")
	ErrColors        = errors.New("glyph: wrong number of colors")
	ErrDuplicateID   = errors.New("glyph: duplicate identifier")
	ErrSheet         = errors.New("glyph: invalid sprite sheet")
	ErrManifest      = errors.New("glyph: invalid manifest")
)
