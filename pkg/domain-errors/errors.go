// Package domainerrors provides coded errors for the service layer.
//
// Services return these instead of raw errors so transport layers can map
// them to response statuses without inspecting message text. Stores return
// sentinel errors (pkg/platform/sentinel) and services translate them here.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and retry decisions.
type Code string

const (
	CodeBadRequest          Code = "bad_request"
	CodeUnauthorized        Code = "unauthorized"
	CodePermissionDenied    Code = "permission_denied"
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
	CodeInvalidTransition   Code = "invalid_transition"
	CodeRequiredLinkMissing Code = "required_link_missing"
	CodeContention          Code = "contention"
	CodeTimeout             Code = "timeout"
	CodeInternal            Code = "internal_error"
)

// Error is a coded domain error. Retryable is advisory: callers may retry
// the whole operation with backoff (sequence contention, lock timeouts).
type Error struct {
	Code    Code
	Message string
	Meta    map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithMeta returns a copy of the error carrying structured detail for the
// client (current status, attempted status, actor role and the like).
func (e *Error) WithMeta(meta map[string]string) *Error {
	clone := *e
	clone.Meta = meta
	return &clone
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// unclassified errors so nothing leaks as a 200.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Retryable reports whether the caller may retry the operation.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeContention, CodeTimeout:
		return true
	}
	return false
}
