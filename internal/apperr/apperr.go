// Package apperr defines the error taxonomy shared by the call loop:
// collaborator failures, unparseable model output, and invalid domain values.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// ServiceError reports that an external collaborator (model API, TTS,
// counterpart generator) was unreachable or answered with a non-2xx status.
type ServiceError struct {
	Service    string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s service error (status %d): %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s service error: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// NewServiceError wraps err as a failure of service. Context expiry keeps its
// identity through Unwrap so callers can still match context.DeadlineExceeded.
func NewServiceError(service string, status int, err error) *ServiceError {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return &ServiceError{Service: service, StatusCode: status, Err: err}
}

// MalformedOutputError reports a model response that could not be parsed
// into the expected record.
type MalformedOutputError struct {
	Source string // "analysis", "improvement", ...
	Reason string
	Raw    string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed %s output: %s", e.Source, e.Reason)
}

// Malformed builds a MalformedOutputError, keeping at most 200 bytes of raw output.
func Malformed(source, reason, raw string) *MalformedOutputError {
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	return &MalformedOutputError{Source: source, Reason: reason, Raw: raw}
}

// ValidationError reports a persona, script or config field outside its
// declared range or enumeration.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field string, value any, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// IsRecoverable reports whether err is a collaborator failure the core is
// expected to absorb with a deterministic fallback.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var se *ServiceError
	var me *MalformedOutputError
	switch {
	case errors.As(err, &se), errors.As(err, &me):
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
