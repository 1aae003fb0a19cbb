package common

import (
	"errors"
	"strings"
)

// Sentinel errors shared across domains. Callers wrap them with fmt.Errorf("...: %w")
// and handlers map them to HTTP status codes with errors.Is.
var (
	// ErrNotFound is returned when a referenced activity, event, booker or registration does not exist
	ErrNotFound = errors.New("not found")

	// ErrCapacityExceeded is returned when both the regular spots and the waiting queue are full
	ErrCapacityExceeded = errors.New("activity is full and the waiting queue is also full")

	// ErrDuplicateRegistration is returned when a participant is already registered for an activity
	ErrDuplicateRegistration = errors.New("participant is already registered for this activity")

	// ErrValidation is returned when a request is malformed
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a unique natural key is already taken
	ErrConflict = errors.New("already exists")
)

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string { return e.Field + ": " + e.Message }

// ValidationError aggregates field errors. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// NewValidationError builds a ValidationError for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Add appends a field error
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no field error was collected.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
