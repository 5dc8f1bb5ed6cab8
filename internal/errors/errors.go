package errors

import (
	"errors"
	"fmt"
)

// Common error types shared by the mock auth server and the CLI
var (
	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidMode    = errors.New("invalid mode")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionBound    = errors.New("session already bound")

	// Verification errors
	ErrChallengeMismatch = errors.New("verifier does not match challenge")

	// General errors
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
