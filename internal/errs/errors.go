// Package errs holds the error taxonomy shared by repositories, controllers
// and handlers. Callers match with errors.Is / errors.As.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidationFailed    = errors.New("validation failed")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrPersistenceFailure  = errors.New("persistence failure")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is returned by the Validate functions on request types.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// Add appends a field error.
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}

// OrNil returns nil when nothing was collected so callers can return it
// directly as an error.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// ProviderError is returned once the AI provider has exhausted its retries.
type ProviderError struct {
	Attempts int
	Last     error
}

func (e *ProviderError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("provider unavailable after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("provider unavailable after %d attempts: %s", e.Attempts, e.Last.Error())
}

func (e *ProviderError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrProviderUnavailable}
	}
	return []error{ErrProviderUnavailable, e.Last}
}

// Persistence wraps a store error so it matches ErrPersistenceFailure while
// keeping the driver message.
func Persistence(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
}
