package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to API clients.
const (
	CodeValidation    = "validation_error"
	CodeAuthorization = "authorization_error"
	CodeNotFound      = "not_found"
	CodeStorage       = "storage_error"
	CodeExternal      = "external_service_error"
)

// Error carries an HTTP-style status and a stable code alongside the underlying cause.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error with an explicit status and code.
func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Validation reports malformed input such as an unknown activity type.
func Validation(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, CodeValidation, fmt.Errorf(format, args...))
}

// Authorization reports a caller lacking the rights for an operation.
func Authorization(format string, args ...interface{}) *Error {
	return New(http.StatusUnauthorized, CodeAuthorization, fmt.Errorf(format, args...))
}

// NotFound reports a missing entity.
func NotFound(format string, args ...interface{}) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

// Storage wraps a persistence failure.
func Storage(err error, action string) *Error {
	return New(http.StatusInternalServerError, CodeStorage, fmt.Errorf("%s: %w", action, err))
}

// External wraps a failed call to the LMS or another collaborator.
func External(err error, action string) *Error {
	return New(http.StatusInternalServerError, CodeExternal, fmt.Errorf("%s: %w", action, err))
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status != 0 {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}

// CodeOf returns the code carried by err, or "internal_error".
func CodeOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		return apiErr.Code
	}
	return "internal_error"
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
