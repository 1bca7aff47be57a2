package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	ErrInvalidQuery      = errors.New("invalid query")
	ErrMessageTooLong    = fmt.Errorf("%w: message too long", ErrInvalidQuery)
	ErrInvalidChunking   = errors.New("invalid chunking parameters")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrMalformedDocument = errors.New("malformed document")
	ErrCollectionMissing = errors.New("collection missing")
	ErrNotConfigured     = errors.New("not configured")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// DimensionError reports a vector whose length differs from the configured size.
func DimensionError(where string, want, got int) error {
	return fmt.Errorf("%s: %w: want %d, got %d", where, ErrDimensionMismatch, want, got)
}
