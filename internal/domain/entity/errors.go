package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks arguments the caller should never have passed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed marks a source or catalog that failed validation.
	ErrValidationFailed = errors.New("validation failed")
)

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
