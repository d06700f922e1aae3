package model

import (
	"fmt"
)

// Code classifies a calendar error.
type Code string

const (
	CodeValidation Code = "VALIDATION"
	CodeDuplicate  Code = "DUPLICATE"
	CodeNotFound   Code = "NOT_FOUND"
)

// Error is the single error type surfaced by the calendar core.
//
// Callers should match on the sentinels below with errors.Is rather than
// inspecting Code directly:
//
//	if errors.Is(err, model.ErrDuplicate) { ... }
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Sentinels used for errors.Is matching. Only the Code is compared.
var (
	ErrValidation = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrDuplicate  = &Error{Code: CodeDuplicate, Message: "duplicate event"}
	ErrNotFound   = &Error{Code: CodeNotFound, Message: "not found"}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Validationf builds a VALIDATION error.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Duplicatef builds a DUPLICATE error.
func Duplicatef(format string, args ...any) *Error {
	return &Error{Code: CodeDuplicate, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a NOT_FOUND error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause to a new error of the given code.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
