package domain

import (
	"errors"
	"fmt"
)

// FieldError describes one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeBadRequest   = "BAD_REQUEST"
)

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) error {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewValidationError creates a new validation error carrying field-level details
func NewValidationError(msg string, fields ...FieldError) error {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: msg,
		Fields:  fields,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(msg string) error {
	if msg == "" {
		msg = "Authentication required"
	}
	return &DomainError{
		Code:    ErrCodeUnauthorized,
		Message: msg,
	}
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(msg string) error {
	return &DomainError{
		Code:    ErrCodeForbidden,
		Message: msg,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(err error) error {
	return &DomainError{
		Code:    ErrCodeInternal,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(msg string) error {
	return &DomainError{
		Code:    ErrCodeConflict,
		Message: msg,
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(msg string) error {
	return &DomainError{
		Code:    ErrCodeBadRequest,
		Message: msg,
	}
}

// AsDomainError unwraps err into a *DomainError, if it is one
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func hasCode(err error, code string) bool {
	de, ok := AsDomainError(err)
	return ok && de.Code == code
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsUnauthorized checks if the error is an unauthorized error
func IsUnauthorized(err error) bool { return hasCode(err, ErrCodeUnauthorized) }

// IsForbidden checks if the error is a forbidden error
func IsForbidden(err error) bool { return hasCode(err, ErrCodeForbidden) }

// IsConflict checks if the error is a conflict error
func IsConflict(err error) bool { return hasCode(err, ErrCodeConflict) }

// IsBadRequest checks if the error is a bad request error
func IsBadRequest(err error) bool { return hasCode(err, ErrCodeBadRequest) }

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	if de, ok := AsDomainError(err); ok {
		return de.Code
	}
	return ErrCodeInternal
}
