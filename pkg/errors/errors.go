package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error. Rule names the violated rule
// or offending field so callers can surface it without parsing Message.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Rule    string    `json:"rule,omitempty"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrValidation
	ErrForbidden
	ErrConflict
	ErrInvalidTransition
	ErrInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not_found"
	case ErrValidation:
		return "validation"
	case ErrForbidden:
		return "forbidden"
	case ErrConflict:
		return "conflict"
	case ErrInvalidTransition:
		return "invalid_transition"
	case ErrInternal:
		return "internal"
	}
	return "unknown"
}

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Rule:    resource,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func Validation(field, message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Rule:    field,
		Message: message,
	}
}

func Forbidden(rule, message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Rule:    rule,
		Message: message,
	}
}

func Conflict(rule, message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Rule:    rule,
		Message: message,
		Err:     err,
	}
}

func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Rule:    "connection_transition",
		Message: fmt.Sprintf("cannot move connection from %s to %s", from, to),
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or
// ErrInternal when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// HasCode reports whether err carries an AppError with code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

// RuleOf returns the rule of the first AppError in err's chain.
func RuleOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Rule
	}
	return ""
}

// Wrap passes AppErrors through and turns anything else into Internal.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	return Internal(err)
}
