// Package taskerr defines taskgate's structured error taxonomy, shared by
// every component so tool handlers can translate a failure into a stable
// code/message pair without the caller needing type assertions.
package taskerr

import (
	"errors"
	"fmt"
)

// Code is a stable, externally visible error classification.
type Code string

const (
	BadRequest        Code = "BAD_REQUEST"
	NotFound          Code = "NOT_FOUND"
	PermissionDenied  Code = "PERMISSION_DENIED"
	PreconditionFailed Code = "PRECONDITION_FAILED"
	Unavailable       Code = "UNAVAILABLE"
	Internal          Code = "INTERNAL"
)

// Error is taskgate's structured error type. It always carries a Code so
// transport-layer handlers (internal/mcpserver) can map it to a tool error
// without guessing from message text.
type Error struct {
	Code    Code
	Message string
	Data    map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func WithData(code Code, data map[string]any, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Data: data}
}

// As extracts a *Error from err, if any, the way errors.As would.
func As(err error) (*Error, bool) {
	var te *Error
	ok := errors.As(err, &te)
	return te, ok
}
