package pkce

import "errors"

var (
	ErrRandomness    = errors.New("secure randomness source unavailable")
	ErrInvalidTriple = errors.New("invalid session triple")
)
