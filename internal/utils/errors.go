package utils

import (
	"errors"
	"fmt"
)

// ValidationError is returned when caller input is rejected before any
// forecasting work starts. Field names the offending request field when
// one applies.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError rejects input without pinning it to a single field.
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

// NewValidationErrorf is NewValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NewFieldError rejects the named request field. The message is prefixed
// with the field name.
func NewFieldError(field, format string, args ...interface{}) error {
	return &ValidationError{
		Field:   field,
		Message: field + " " + fmt.Sprintf(format, args...),
	}
}

// AsValidationError unwraps err to its ValidationError, if any.
func AsValidationError(err error) (*ValidationError, bool) {
	var target *ValidationError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	_, ok := AsValidationError(err)
	return ok
}
