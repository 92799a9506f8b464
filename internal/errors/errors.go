// Package errors defines the error kinds used across keygate.
//
// Every operation surfaces one of these kinds so callers can branch on the
// failure cause with errors.As instead of string matching. The HTTP layer is
// the only place where kinds are mapped to status codes.
package errors

import (
	"errors"
	"fmt"
)

// ValidationError indicates a request was rejected before any state change.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	msg := "validation error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	return msg + ": " + e.Message
}

// NotFoundError indicates no credential or container exists for the given
// name.
//
// It is a normal control-flow signal, never retried, and carries no
// credential material.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return "not found: " + e.Name
}

// AlreadyExistsError indicates container provisioning collided with a prior
// run. It never escapes the credential store: EnsureContainer treats it as
// success.
type AlreadyExistsError struct {
	Container string
}

func (e AlreadyExistsError) Error() string {
	return "container already exists: " + e.Container
}

// TransientError wraps a backend failure that is safe to retry: the store was
// unavailable, timed out, or throttled the call.
type TransientError struct {
	Op  string
	Err error
}

func (e TransientError) Error() string {
	return fmt.Sprintf("transient backend error during %s: %v", e.Op, e.Err)
}

func (e TransientError) Unwrap() error {
	return e.Err
}

// PermissionError indicates the backend rejected our authorization. Fatal,
// surfaced immediately, never retried.
type PermissionError struct {
	Op  string
	Err error
}

func (e PermissionError) Error() string {
	return fmt.Sprintf("backend permission denied during %s: %v", e.Op, e.Err)
}

func (e PermissionError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe NotFoundError
	return errors.As(err, &nfe)
}

// IsAlreadyExists reports whether err is an AlreadyExistsError.
func IsAlreadyExists(err error) bool {
	var aee AlreadyExistsError
	return errors.As(err, &aee)
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te TransientError
	return errors.As(err, &te)
}

// IsPermission reports whether err is a backend authorization failure.
func IsPermission(err error) bool {
	var pe PermissionError
	return errors.As(err, &pe)
}
