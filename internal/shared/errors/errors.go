package errors

import (
	"errors"
	"fmt"
)

// Error types for the bootstrap domain
type ErrorType string

const (
	ErrorTypeDomain         ErrorType = "DOMAIN_ERROR"
	ErrorTypeValidation     ErrorType = "VALIDATION_ERROR"
	ErrorTypeConfiguration  ErrorType = "CONFIGURATION_ERROR"
	ErrorTypeInfrastructure ErrorType = "INFRASTRUCTURE_ERROR"
	ErrorTypeAuthorization  ErrorType = "AUTHORIZATION_ERROR"
	ErrorTypeConflict       ErrorType = "CONFLICT_ERROR"
	ErrorTypeInternal       ErrorType = "INTERNAL_ERROR"
)

// Exit codes reported by the bootstrap process, one per error type
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitConfiguration  = 2
	ExitConflict       = 3
	ExitAuthorization  = 4
	ExitInfrastructure = 5
)

// Bootstrap errors
var (
	ErrDuplicateUser       = errors.New("user already exists")
	ErrCollectionExists    = errors.New("collection already exists")
	ErrDatabaseNotSelected = errors.New("target database has not been selected")
	ErrInvalidPlan         = errors.New("invalid bootstrap plan")
	ErrVerificationFailed  = errors.New("bootstrap verification failed")
	ErrUnauthorized        = errors.New("unauthorized")
)

// AppError represents a custom application error with context
type AppError struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Component string                 `json:"component,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithCause adds the underlying cause
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithComponent adds the component name
func (e *AppError) WithComponent(component string) *AppError {
	e.Component = component
	return e
}

// WithDetail adds a detail field
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Common error constructors

// NewDomainError creates a domain-specific error
func NewDomainError(message string) *AppError {
	return NewAppError(ErrorTypeDomain, message)
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return NewAppError(ErrorTypeValidation, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string) *AppError {
	return NewAppError(ErrorTypeConfiguration, message)
}

// NewInfrastructureError creates an infrastructure error
func NewInfrastructureError(message string) *AppError {
	return NewAppError(ErrorTypeInfrastructure, message)
}

// NewAuthorizationError creates an authorization error
func NewAuthorizationError(message string) *AppError {
	return NewAppError(ErrorTypeAuthorization, message)
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return NewAppError(ErrorTypeConflict, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, message)
}

// ValidationError represents a validation failure on a single field
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ValidationErrors represents a collection of validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// Error implements the error interface
func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s: %s", ve.Errors[0].Field, ve.Errors[0].Message)
}

// NewValidationErrors creates a new validation errors instance
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]ValidationError, 0),
	}
}

// Add adds a validation error
func (ve *ValidationErrors) Add(field, message string, value interface{}) *ValidationErrors {
	ve.Errors = append(ve.Errors, ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	})
	return ve
}

// HasErrors returns true if there are validation errors
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ToAppError converts validation errors to an AppError wrapping ErrInvalidPlan
func (ve *ValidationErrors) ToAppError() *AppError {
	if !ve.HasErrors() {
		return nil
	}

	appErr := NewValidationError(ve.Error()).WithCause(ErrInvalidPlan)
	appErr.Details["validation_errors"] = ve.Errors
	return appErr
}

// Helper functions for common error scenarios

// WrapError wraps an error with context, keeping AppErrors as they are
func WrapError(err error, message string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(message).WithCause(err)
}

func typeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}

// IsDuplicateUser checks if an error reports an existing user
func IsDuplicateUser(err error) bool {
	return errors.Is(err, ErrDuplicateUser)
}

// IsCollectionExists checks if an error reports an existing collection
func IsCollectionExists(err error) bool {
	return errors.Is(err, ErrCollectionExists)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	if t, ok := typeOf(err); ok && t == ErrorTypeConflict {
		return true
	}
	return IsDuplicateUser(err) || IsCollectionExists(err)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	if t, ok := typeOf(err); ok {
		return t == ErrorTypeValidation || t == ErrorTypeConfiguration
	}
	return errors.Is(err, ErrInvalidPlan)
}

// IsAuthorization checks if an error is an authorization error
func IsAuthorization(err error) bool {
	if t, ok := typeOf(err); ok && t == ErrorTypeAuthorization {
		return true
	}
	return errors.Is(err, ErrUnauthorized)
}

// IsInfrastructure checks if an error is an infrastructure error
func IsInfrastructure(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeInfrastructure
}

// ExitCode maps an error to the process exit status
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsValidation(err):
		return ExitConfiguration
	case IsConflict(err):
		return ExitConflict
	case IsAuthorization(err):
		return ExitAuthorization
	case IsInfrastructure(err):
		return ExitInfrastructure
	default:
		return ExitFailure
	}
}
