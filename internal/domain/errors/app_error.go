package apperrors

import (
	"errors"
	"fmt"
)

// AppError represents an error intrinsic to the business domain.
// Errors of this family pass through the dispatch bus unchanged.
type AppError struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Err     error  `json:"-"`
}

// Error types
const (
	ValidationError   = "VALIDATION_ERROR"
	SecurityError     = "SECURITY_ERROR"
	UnauthorizedError = "UNAUTHORIZED_ERROR"
	NotFoundError     = "NOT_FOUND_ERROR"
	InternalError     = "INTERNAL_ERROR"
)

// Error returns the error message
func (e *AppError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error for the given field
func NewValidationError(field, message string) *AppError {
	return &AppError{
		Message: message,
		Field:   field,
		Code:    ValidationError,
	}
}

// NewSecurityError creates a new security error. The cause may be nil.
func NewSecurityError(message string, cause error) *AppError {
	appErr := &AppError{
		Message: message,
		Code:    SecurityError,
		Err:     cause,
	}
	if cause != nil {
		appErr.Details = cause.Error()
	}
	return appErr
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Message: message,
		Code:    UnauthorizedError,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Message: message,
		Code:    NotFoundError,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	appErr := &AppError{
		Message: message,
		Code:    InternalError,
		Err:     err,
	}
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// As returns the AppError found in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func hasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return hasCode(err, ValidationError)
}

// IsSecurityError checks if the error is a security error
func IsSecurityError(err error) bool {
	return hasCode(err, SecurityError)
}

// IsUnauthorizedError checks if the error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return hasCode(err, UnauthorizedError)
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return hasCode(err, NotFoundError)
}

// IsInternalError checks if the error is an internal error
func IsInternalError(err error) bool {
	return hasCode(err, InternalError)
}
