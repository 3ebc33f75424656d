package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists is returned on a uniqueness conflict (duplicate slug or vote).
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrValidation is the sentinel wrapped by every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNoFieldsToUpdate is returned when an update carries no fields.
	ErrNoFieldsToUpdate = errors.New("no fields to update")

	// ErrUpstream is the sentinel wrapped by every UpstreamError.
	ErrUpstream = errors.New("upstream failure")
)

// ValidationError reports invalid input. No write happened.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// UpstreamError wraps a failure from an external collaborator (GitHub,
// a model provider).
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstream, e.Err} }

// Upstream wraps err as an UpstreamError for service.
func Upstream(service string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Service: service, Err: err}
}
