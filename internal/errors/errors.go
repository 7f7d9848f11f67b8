package errors

import (
	"errors"
	"fmt"
)

// Common error types for the bridge
var (
	// Authentication errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExpired   = errors.New("session expired")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Auth flow errors
	ErrInvalidState   = errors.New("invalid auth state")
	ErrMissingIDToken = errors.New("no id_token in token response")

	// Sandbox errors
	ErrExecutionPending = errors.New("execution did not settle")
	ErrSpecUnavailable  = errors.New("spec.json not found. Run the scheduled refresh or the seed-spec command")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// ConfigError reports missing or invalid configuration. It is fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

// APIError is a non-success response from the downstream API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Datum API error: %d %s", e.Status, e.Message)
}

// UsageError reports a capability precondition violated by caller code.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

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
