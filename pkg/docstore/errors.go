package docstore

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection classifies failures to reach the server while constructing a client.
	ErrConnection = errors.New("docstore connection error")
	// ErrOperation classifies store calls that kept failing until the retry budget was spent.
	ErrOperation = errors.New("docstore operation failed")
	// ErrValidation classifies arguments rejected before any store call.
	ErrValidation = errors.New("docstore validation error")
	// ErrIllegalState classifies calls made on a closed client.
	ErrIllegalState = errors.New("docstore illegal state")
	// ErrNotFound is returned by Read when no document matches the query.
	ErrNotFound = errors.New("docstore document not found")
)

// ConnectionError is returned by New when the initial connect or ping fails.
// It is never retried.
type ConnectionError struct {
	Database string
	Cause    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to database %q failed: %v", e.Database, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// OperationError reports a store call that failed on every attempt. Attempts is the number
// of calls made, which equals the configured retry budget unless the loop stopped early
// (non-retryable failure or cancelled context).
type OperationError struct {
	Operation  string
	Collection string
	Attempts   int
	Cause      error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s on collection %q failed after %d retries: %v", e.Operation, e.Collection, e.Attempts, e.Cause)
}

func (e *OperationError) Unwrap() error { return e.Cause }

func (e *OperationError) Is(target error) bool { return target == ErrOperation }

// ValidationError reports an argument rejected before reaching the store.
type ValidationError struct {
	Field  string
	Reason string
	Cause  error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid argument: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IllegalStateError is returned by every operation attempted after Close.
type IllegalStateError struct {
	Operation string
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("cannot %s: client is closed", e.Operation)
}

func (e *IllegalStateError) Is(target error) bool { return target == ErrIllegalState }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
