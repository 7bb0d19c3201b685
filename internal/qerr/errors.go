// Package qerr defines the error taxonomy shared by every compile stage.
//
// Compile errors are never transient: they describe a document that cannot be
// lowered as written (missing keys, forbidden operations, or constructs with
// no defined lowering). Callers surface them and discard the query.
package qerr

import (
	"errors"
	"fmt"
)

// Code categorizes compile errors.
type Code string

const (
	// CodeKeyMissing indicates a required field was absent.
	CodeKeyMissing Code = "KEY_MISSING"

	// CodeNotAllowed indicates an authorization or call-ordering violation.
	CodeNotAllowed Code = "NOT_ALLOWED"

	// CodeNotImplemented indicates a granularity, variant or query type
	// without a defined lowering.
	CodeNotImplemented Code = "NOT_IMPLEMENTED"
)

// Error is a compile error with a code and a human-readable reason.
type Error struct {
	Code Code

	// Field names the offending document key, if any.
	Field string

	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// KeyMissing creates a KEY_MISSING error for field.
func KeyMissing(field, format string, args ...any) *Error {
	return &Error{Code: CodeKeyMissing, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotAllowed creates a NOT_ALLOWED error.
func NotAllowed(format string, args ...any) *Error {
	return &Error{Code: CodeNotAllowed, Message: fmt.Sprintf(format, args...)}
}

// NotImplemented creates a NOT_IMPLEMENTED error.
func NotImplemented(format string, args ...any) *Error {
	return &Error{Code: CodeNotImplemented, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsKeyMissing reports whether err is a KEY_MISSING error.
// Uses errors.As to handle wrapped errors.
func IsKeyMissing(err error) bool {
	return CodeOf(err) == CodeKeyMissing
}

// IsNotAllowed reports whether err is a NOT_ALLOWED error.
func IsNotAllowed(err error) bool {
	return CodeOf(err) == CodeNotAllowed
}

// IsNotImplemented reports whether err is a NOT_IMPLEMENTED error.
func IsNotImplemented(err error) bool {
	return CodeOf(err) == CodeNotImplemented
}
