package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session gateway
var (
	// Authentication errors: missing cookie, missing/expired session key,
	// malformed session data, missing app user id. The HTTP layer maps these
	// to 401 only where authentication is mandatory.
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionMalformed = errors.New("malformed session data")

	// Cipher errors
	ErrCipherDisabled = errors.New("token cipher disabled: no encryption key configured")
	ErrCipherFailure  = errors.New("token cipher operation failed")

	// Refresh errors. Both resolve to a degraded session: the app identity
	// stays valid, the upstream token fields are nulled.
	ErrNoRefreshToken = errors.New("no refresh token on file")
	ErrRefreshFailed  = errors.New("upstream token refresh failed")

	// User errors
	ErrUserNotFound = errors.New("user not found")

	// General errors
	ErrNotFound = errors.New("not found")
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

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
