// Package errors defines the error taxonomy shared by every layer. AppError
// covers infrastructure and request failures; DomainError and
// ValidationErrors carry business-rule and field-level failures.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the coarse category reported to clients.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeInternal     ErrorType = "INTERNAL"
	ErrorTypeRateLimit    ErrorType = "RATE_LIMIT"
	ErrorTypeUnavailable  ErrorType = "UNAVAILABLE"
	ErrorTypeDatabase     ErrorType = "DATABASE"
	ErrorTypeExternal     ErrorType = "EXTERNAL"
)

var statusByType = map[ErrorType]int{
	ErrorTypeValidation:   http.StatusBadRequest,
	ErrorTypeNotFound:     http.StatusNotFound,
	ErrorTypeConflict:     http.StatusConflict,
	ErrorTypeUnauthorized: http.StatusUnauthorized,
	ErrorTypeForbidden:    http.StatusForbidden,
	ErrorTypeInternal:     http.StatusInternalServerError,
	ErrorTypeRateLimit:    http.StatusTooManyRequests,
	ErrorTypeUnavailable:  http.StatusServiceUnavailable,
	ErrorTypeDatabase:     http.StatusInternalServerError,
	ErrorTypeExternal:     http.StatusBadGateway,
}

// Codes attached to AppErrors raised by the catalog and rating paths.
const (
	CodeTransactionAborted  = "TRANSACTION_ABORTED"
	CodeTransactionConflict = "TRANSACTION_CONFLICT"
	CodeNotSignedIn         = "NOT_SIGNED_IN"
	CodeUsernameTaken       = "USERNAME_TAKEN"
)

type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	HTTPStatus int                    `json:"-"`
}

func newAppError(t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message, HTTPStatus: statusByType[t]}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func NewValidationError(message string) *AppError {
	return newAppError(ErrorTypeValidation, message)
}

// NewNotFoundError names the missing resource, e.g. "alternative".
func NewNotFoundError(resource string) *AppError {
	return newAppError(ErrorTypeNotFound, resource+" not found")
}

func NewConflictError(message string) *AppError {
	return newAppError(ErrorTypeConflict, message)
}

func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return newAppError(ErrorTypeUnauthorized, message)
}

func NewInternalError(message string) *AppError {
	return newAppError(ErrorTypeInternal, message)
}

// NewUnavailableError reports a dependency that cannot be reached right now,
// such as a catalog behind an open circuit breaker.
func NewUnavailableError(service string) *AppError {
	return newAppError(ErrorTypeUnavailable, fmt.Sprintf("service '%s' is unavailable", service))
}

// NewDatabaseError wraps a failed store call; operation is the SDK call name.
func NewDatabaseError(operation string, err error) *AppError {
	return newAppError(ErrorTypeDatabase, fmt.Sprintf("database operation '%s' failed", operation)).WithCause(err)
}

// NewTransactionConflict marks a commit that lost a race with another writer.
func NewTransactionConflict(resource string) *AppError {
	return NewConflictError(fmt.Sprintf("concurrent modification of %s", resource)).WithCode(CodeTransactionConflict)
}

// NewNotSignedInError is returned before any I/O when a write has no user.
func NewNotSignedInError() *AppError {
	return NewUnauthorizedError("sign in required").WithCode(CodeNotSignedIn)
}

// GetAppError extracts the first AppError in err's chain.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

func IsNotFound(err error) bool     { return IsType(err, ErrorTypeNotFound) }
func IsUnauthorized(err error) bool { return IsType(err, ErrorTypeUnauthorized) }
func IsConflict(err error) bool     { return IsType(err, ErrorTypeConflict) }

// IsTransactionConflict reports whether err is a commit-time version conflict
// that the optimistic transaction loop may retry.
func IsTransactionConflict(err error) bool {
	return IsConflict(err) && HasCode(err, CodeTransactionConflict)
}

// HasCode reports whether err carries the given AppError code.
func HasCode(err error, code string) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}

// Wrap prefixes message onto err. An AppError keeps its type and status;
// anything else becomes an internal error with err as the cause.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		wrapped := *appErr
		wrapped.Message = message + ": " + appErr.Message
		return &wrapped
	}
	return NewInternalError(message).WithCause(err)
}
