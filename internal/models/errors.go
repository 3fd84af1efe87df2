package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrNotReady    = errors.New("model not ready")
	ErrUnavailable = errors.New("model unavailable")
	ErrUpstream    = errors.New("model failure")
	ErrIO          = errors.New("io failure")
)

// NotReadyError reports a call to a collaborator that has not finished loading.
type NotReadyError struct {
	Capability Capability
	State      State
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s model is not ready", e.Capability)
}

func (e *NotReadyError) Unwrap() error {
	return ErrNotReady
}

// MissingFieldError is returned when a collaborator result lacks a field the
// gateway needs to build its response.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("model result is missing field %q", e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrUpstream
}
