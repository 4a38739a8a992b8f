package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of coordinator error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a job or service record does not exist (or has expired).
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeInvalidTransition indicates a job status change outside the lifecycle graph.
	ErrCodeInvalidTransition ErrorCode = "invalid_transition"
	// ErrCodeJobNotTerminal indicates a delete was attempted on a job that has not finished.
	ErrCodeJobNotTerminal ErrorCode = "job_not_terminal"
	// ErrCodeInvalidArgument indicates malformed input (bad key, non-positive TTL, unknown status).
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	// ErrCodeInternal indicates an internal failure.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific input field that was rejected (optional)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return newError(ErrCodeNotFound, message)
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return newError(ErrCodeNotFound, fmt.Sprintf(format, args...))
}

// InvalidTransition creates a new InvalidTransition error.
func InvalidTransition(message string) *AppError {
	return newError(ErrCodeInvalidTransition, message)
}

// InvalidTransitionf creates a new InvalidTransition error with formatted message.
func InvalidTransitionf(format string, args ...any) *AppError {
	return newError(ErrCodeInvalidTransition, fmt.Sprintf(format, args...))
}

// JobNotTerminalf creates a new JobNotTerminal error with formatted message.
func JobNotTerminalf(format string, args ...any) *AppError {
	return newError(ErrCodeJobNotTerminal, fmt.Sprintf(format, args...))
}

// InvalidArgument creates a new InvalidArgument error.
func InvalidArgument(message string) *AppError {
	return newError(ErrCodeInvalidArgument, message)
}

// InvalidArgumentf creates a new InvalidArgument error with formatted message.
func InvalidArgumentf(format string, args ...any) *AppError {
	return newError(ErrCodeInvalidArgument, fmt.Sprintf(format, args...))
}

// InvalidArgumentField creates a new InvalidArgument error for a specific field.
func InvalidArgumentField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidArgument,
		Message: message,
		Field:   field,
	}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return newError(ErrCodeInternal, message)
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsInvalidTransition checks if an error is an InvalidTransition error.
func IsInvalidTransition(err error) bool {
	return isCode(err, ErrCodeInvalidTransition)
}

// IsJobNotTerminal checks if an error is a JobNotTerminal error.
func IsJobNotTerminal(err error) bool {
	return isCode(err, ErrCodeJobNotTerminal)
}

// IsInvalidArgument checks if an error is an InvalidArgument error.
func IsInvalidArgument(err error) bool {
	return isCode(err, ErrCodeInvalidArgument)
}

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool {
	return isCode(err, ErrCodeInternal)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
