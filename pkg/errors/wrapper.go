package errors

import (
	"fmt"
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WrapWithType wraps an error with a specific error type
func WrapWithType(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:      errType,
		Code:      code,
		Message:   message,
		Err:       err,
		Retryable: IsTransient(errType),
	}
}

// WrapInternal wraps an internal error
func WrapInternal(err error, message string) *AppError {
	appErr := WrapWithType(err, ErrorTypeInternal, CodeInternalError, message)
	appErr.StatusCode = 500
	return appErr
}

// WrapExternal wraps a failure reported by an external collaborator. The
// collaborator's error stays reachable through Unwrap. Retryable is left false:
// whether a call is safe to repeat is the caller's decision.
func WrapExternal(err error, service, code string) *AppError {
	appErr := &AppError{
		Type:       ErrorTypeExternal,
		Code:       code,
		Message:    fmt.Sprintf("%s request failed", service),
		Err:        err,
		StatusCode: 502,
	}
	return appErr.WithDetail("service", service)
}

// IsTransient determines if an error type is transient
func IsTransient(errType ErrorType) bool {
	switch errType {
	case ErrorTypeTransient, ErrorTypeTimeout, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// NewValidationError creates a new validation error for a single field
func NewValidationError(field, message string) *AppError {
	appErr := &AppError{
		Type:       ErrorTypeValidation,
		Code:       CodeValidationFailed,
		Message:    message,
		StatusCode: 400,
	}
	if field != "" {
		appErr.WithDetail("field", field)
	}
	return appErr
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, id string) *AppError {
	appErr := &AppError{
		Type:       ErrorTypeNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: 404,
	}
	if id != "" {
		appErr.WithDetail("id", id)
	}
	return appErr
}

// NewConflictError creates a new conflict error
func NewConflictError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: 409,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       CodeInternalError,
		Message:    message,
		StatusCode: 500,
	}
}
