// Package errors provides standardized domain errors with codes for the ThreadStash API.
//
// Usage:
//
//	// In store/services - return typed errors
//	if meta.ThreadCount >= maxFree {
//	    return errors.StorageLimitReached("free tier thread limit reached")
//	}
//
//	// In handlers - check with errors.Is
//	if errors.Is(err, errors.ErrNotFound) {
//	    return huma.Error404NotFound(err.Error())
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound            Code = "NOT_FOUND"
	CodeForbidden           Code = "FORBIDDEN"
	CodeEmptyThread         Code = "EMPTY_THREAD"
	CodeStorageLimitReached Code = "STORAGE_LIMIT_REACHED"
	CodeBackendUnavailable  Code = "BACKEND_UNAVAILABLE"
	CodeValidation          Code = "VALIDATION"
	CodeAlreadyExists       Code = "ALREADY_EXISTS"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeInvalidCredentials  Code = "INVALID_CREDENTIALS"
	CodeTokenExpired        Code = "TOKEN_EXPIRED"
	CodeConflict            Code = "CONFLICT"
	CodeInternal            Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeEmptyThread, CodeValidation:
		return http.StatusBadRequest
	case CodeStorageLimitReached:
		return http.StatusPaymentRequired
	case CodeAlreadyExists, CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized, CodeInvalidCredentials, CodeTokenExpired:
		return http.StatusUnauthorized
	case CodeBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
	ErrForbidden           = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrEmptyThread         = &Error{Code: CodeEmptyThread, Message: "thread has no posts"}
	ErrStorageLimitReached = &Error{Code: CodeStorageLimitReached, Message: "storage limit reached"}
	ErrBackendUnavailable  = &Error{Code: CodeBackendUnavailable, Message: "storage backend unavailable"}
	ErrValidation          = &Error{Code: CodeValidation, Message: "validation error"}
	ErrAlreadyExists       = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrUnauthorized        = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrInvalidCredentials  = &Error{Code: CodeInvalidCredentials, Message: "invalid credentials"}
	ErrTokenExpired        = &Error{Code: CodeTokenExpired, Message: "token expired"}
	ErrConflict            = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal            = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructors for errors with custom messages.

func NotFound(msg string) *Error            { return &Error{Code: CodeNotFound, Message: msg} }
func Forbidden(msg string) *Error           { return &Error{Code: CodeForbidden, Message: msg} }
func EmptyThread(msg string) *Error         { return &Error{Code: CodeEmptyThread, Message: msg} }
func StorageLimitReached(msg string) *Error { return &Error{Code: CodeStorageLimitReached, Message: msg} }
func BackendUnavailable(msg string) *Error  { return &Error{Code: CodeBackendUnavailable, Message: msg} }
func Validation(msg string) *Error          { return &Error{Code: CodeValidation, Message: msg} }
func AlreadyExists(msg string) *Error       { return &Error{Code: CodeAlreadyExists, Message: msg} }
func Unauthorized(msg string) *Error        { return &Error{Code: CodeUnauthorized, Message: msg} }
func InvalidCredentials(msg string) *Error  { return &Error{Code: CodeInvalidCredentials, Message: msg} }
func TokenExpired(msg string) *Error        { return &Error{Code: CodeTokenExpired, Message: msg} }
func Conflict(msg string) *Error            { return &Error{Code: CodeConflict, Message: msg} }
func Internal(msg string) *Error            { return &Error{Code: CodeInternal, Message: msg} }

// NotFoundf creates a not found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error carrying structured
// details, typically per-field failures.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}
