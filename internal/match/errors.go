package match

import "errors"

var (
	ErrUnknownPolicy = errors.New("match: unknown policy")
	ErrNoDictionary  = errors.New("match: nil dictionary")
	ErrOptions       = errors.New("match: invalid options")
	ErrTileHeight    = errors.New("match: tile height out of range")
)
