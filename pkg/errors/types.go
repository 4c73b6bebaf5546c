package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal server errors
	ErrorTypeInternal ErrorType = "internal"

	// ErrorTypeValidation represents malformed input to a mutating call
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeNotFound represents an unknown ring, asset class, target or suggestion id
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeConflict represents resource conflict errors
	ErrorTypeConflict ErrorType = "conflict"

	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeExternal represents failures reported by an external collaborator
	ErrorTypeExternal ErrorType = "external"

	// ErrorTypeTransient represents transient errors that can be retried
	ErrorTypeTransient ErrorType = "transient"

	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
)

// AppError represents an application error with additional context
type AppError struct {
	Type       ErrorType         `json:"type"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Err        error             `json:"-"`
	Retryable  bool              `json:"retryable"`
	StatusCode int               `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Common error instances, usable as errors.Is targets
var (
	ErrValidation = &AppError{
		Type:       ErrorTypeValidation,
		Code:       CodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Type:       ErrorTypeNotFound,
		Code:       CodeNotFound,
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrExternalService = &AppError{
		Type:       ErrorTypeExternal,
		Code:       CodeExternalService,
		Message:    "External service error",
		StatusCode: 502,
	}

	ErrInternalServer = &AppError{
		Type:       ErrorTypeInternal,
		Code:       CodeInternalError,
		Message:    "An internal server error occurred",
		StatusCode: 500,
	}
)

// New creates a new AppError
func New(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetType returns the error type
func GetType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// GetCode returns the error code
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknownError
}

// GetStatusCode returns the HTTP status code for an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.StatusCode != 0 {
			return appErr.StatusCode
		}
	}
	return 500
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool { return GetType(err) == ErrorTypeValidation }

// IsNotFound reports whether err is a NotFound error
func IsNotFound(err error) bool { return GetType(err) == ErrorTypeNotFound }

// IsExternal reports whether err came from an external collaborator
func IsExternal(err error) bool { return GetType(err) == ErrorTypeExternal }
