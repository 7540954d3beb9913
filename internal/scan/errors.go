package scan

import "errors"

var (
	ErrNoPolicy      = errors.New("scan: nil policy")
	ErrNoCapacity    = errors.New("scan: output has no capacity")
	ErrOptions       = errors.New("scan: invalid options")
	ErrFrameTooSmall = errors.New("scan: frame smaller than one tile")
)
