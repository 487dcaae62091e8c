package models

import (
	"errors"
	"fmt"
)

// Common error types
var (
	ErrNotFound        = errors.New("resource not found")
	ErrAlreadyExists   = errors.New("resource already exists")
	ErrConflict        = errors.New("operation conflicts with current state")
	ErrNothingToExport = errors.New("no data to export")
)

// Error codes carried by AppError
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeDuplicate           = "DUPLICATE"
	CodeInvalidFile         = "INVALID_FILE"
	CodeEmptyFile           = "EMPTY_FILE"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeUpstreamError       = "UPSTREAM_ERROR"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
)

// AppError represents an application-level error with context
type AppError struct {
	Code    string
	Message string
	Err     error
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

// ErrInvalidInput creates a validation error
func ErrInvalidInput(message string) error {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
	}
}

// ErrDuplicate creates a duplicate-record error
func ErrDuplicate(message string) error {
	return &AppError{
		Code:    CodeDuplicate,
		Message: message,
		Err:     ErrAlreadyExists,
	}
}

// ErrInvalidFile creates a file-format error
func ErrInvalidFile(message string, err error) error {
	return &AppError{
		Code:    CodeInvalidFile,
		Message: message,
		Err:     err,
	}
}

// ErrEmptyFile creates an error for a workbook without data rows
func ErrEmptyFile(message string) error {
	return &AppError{
		Code:    CodeEmptyFile,
		Message: message,
	}
}

// ErrNotFoundWithMsg creates a not found error with custom message
func ErrNotFoundWithMsg(message string) error {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
		Err:     ErrNotFound,
	}
}

// ErrConflictWithMsg creates a conflict error with custom message
func ErrConflictWithMsg(message string) error {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Err:     ErrConflict,
	}
}

// ErrUpstream creates an error for a backend that answered with a failure status
func ErrUpstream(message string) error {
	return &AppError{
		Code:    CodeUpstreamError,
		Message: message,
	}
}

// ErrUnavailable creates an error for a backend that could not be reached
func ErrUnavailable(message string, err error) error {
	return &AppError{
		Code:    CodeUpstreamUnavailable,
		Message: message,
		Err:     err,
	}
}

// UserMessage returns the message suitable for a notification. AppError
// messages are returned without the wrapped cause.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// HasCode reports whether err is an AppError with the given code
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
