package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidField         = errors.New("invalid field")
	ErrUnrecognizedPlatform = errors.New("unrecognized platform")
	// ErrMultipleMatches means an identity key that must be unique matched
	// several stored rows. It signals corrupted data.
	ErrMultipleMatches = errors.New("multiple rows share an identity key")
)

// FieldError reports a malformed input field.
type FieldError struct {
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s %v: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %v", e.Field, e.Value)
}

func (e *FieldError) Unwrap() error { return ErrInvalidField }

func InvalidField(field string, value any, err error) error {
	return &FieldError{Field: field, Value: value, Err: err}
}
