package errors

import (
	"errors"
	"fmt"
)

// Common error types for the auth client
var (
	// Session errors
	ErrNoSession      = errors.New("no session")
	ErrSessionExpired = errors.New("session expired")
	ErrNoRefreshToken = errors.New("no refresh token available")

	// Token errors
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingSubject = errors.New("token missing subject")

	// Remote call errors
	ErrTimeout         = errors.New("operation timed out")
	ErrUnexpectedReply = errors.New("unexpected reply")
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

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
