package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures so callers can decide whether to absorb,
// retry, or surface them
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeDecode      ErrorType = "decode"
	ErrorTypeFileSystem  ErrorType = "filesystem"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error carries a failure kind, an HTTP status when one applies, and the
// underlying cause
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error without a wrapped cause
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around cause
func Wrap(t ErrorType, cause error, msg string) *Error {
	if cause != nil {
		msg = msg + ": " + cause.Error()
	}
	return &Error{Type: t, Message: msg, Err: cause}
}

// Network reports a transport failure or unusable response
func Network(code int, format string, args ...interface{}) *Error {
	return &Error{Type: ErrorTypeNetwork, Message: fmt.Sprintf(format, args...), Code: code}
}

// Validation reports bad input at the entry boundary
func Validation(format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, format, args...)
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err is an *Error of the given type
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// Retryable reports whether err is worth another attempt. Network errors that
// carry a 4xx status other than 429 are final.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if e.Code >= 400 && e.Code < 500 && e.Code != 429 {
		return false
	}
	return IsRetryable(e.Type)
}

// FromStatus maps a non-2xx HTTP status to an Error
func FromStatus(statusCode int) *Error {
	switch {
	case statusCode == 429:
		return &Error{Type: ErrorTypeRateLimit, Message: "rate limit exceeded", Code: statusCode}
	case statusCode >= 500:
		return &Error{Type: ErrorTypeServerError, Message: "server error", Code: statusCode}
	default:
		return &Error{Type: ErrorTypeNetwork, Message: fmt.Sprintf("unexpected status code: %d", statusCode), Code: statusCode}
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0, 429:
		return true
	default:
		return statusCode >= 500
	}
}
