package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DomainErrorType is the category of a rule the domain refused.
type DomainErrorType string

const (
	DomainValidationError   DomainErrorType = "VALIDATION_ERROR"
	DomainBusinessRuleError DomainErrorType = "BUSINESS_RULE_ERROR"
	DomainNotFoundError     DomainErrorType = "NOT_FOUND"
	DomainConflictError     DomainErrorType = "CONFLICT"
	DomainRateLimitError    DomainErrorType = "RATE_LIMIT_ERROR"
)

var domainStatus = map[DomainErrorType]int{
	DomainValidationError:   http.StatusBadRequest,
	DomainBusinessRuleError: http.StatusUnprocessableEntity,
	DomainNotFoundError:     http.StatusNotFound,
	DomainConflictError:     http.StatusConflict,
	DomainRateLimitError:    http.StatusTooManyRequests,
}

// DomainError is a refused business rule with a stable code clients can
// switch on. The package-level values below are shared; call Clone before
// attaching request details.
type DomainError struct {
	Type       DomainErrorType        `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StatusCode int                    `json:"-"`
}

func NewDomainError(errorType DomainErrorType, code string, message string) *DomainError {
	status, ok := domainStatus[errorType]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &DomainError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Details:    make(map[string]interface{}),
		StatusCode: status,
	}
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	e.Details[key] = value
	return e
}

// Is matches on type and code, so a cloned error still satisfies
// errors.Is against its package-level original.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Clone returns a copy of e with its own Details map.
func (e *DomainError) Clone() *DomainError {
	c := *e
	c.Details = make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		c.Details[k] = v
	}
	return &c
}

var (
	ErrInvalidPackageName = NewDomainError(
		DomainValidationError,
		"INVALID_PACKAGE_NAME",
		"Package name must be a lowercase reverse-domain identifier",
	)

	ErrStarsOutOfRange = NewDomainError(
		DomainValidationError,
		"STARS_OUT_OF_RANGE",
		"Rating must be between 1 and 5 stars",
	).WithDetail("min", 1).WithDetail("max", 5)

	ErrInsecureRepoURL = NewDomainError(
		DomainValidationError,
		"INSECURE_REPO_URL",
		"Repository URL must use https",
	)

	ErrFieldRequired = NewDomainError(
		DomainValidationError,
		"FIELD_REQUIRED",
		"Field is required",
	)

	ErrAlternativeNotFound = NewDomainError(
		DomainNotFoundError,
		"ALTERNATIVE_NOT_FOUND",
		"The requested alternative does not exist",
	)

	ErrProfileNotSetUp = NewDomainError(
		DomainBusinessRuleError,
		"PROFILE_NOT_SET_UP",
		"A user profile is required before contributing",
	)

	ErrUsernameTaken = NewDomainError(
		DomainConflictError,
		CodeUsernameTaken,
		"This username is already in use",
	)

	ErrAlreadyVoted = NewDomainError(
		DomainConflictError,
		"ALREADY_VOTED",
		"You have already voted for this alternative in this category",
	)

	ErrInvalidVoteCategory = NewDomainError(
		DomainValidationError,
		"INVALID_VOTE_CATEGORY",
		"Vote category must be usability, privacy or features",
	)

	ErrRateLimitExceeded = NewDomainError(
		DomainRateLimitError,
		"RATE_LIMIT_EXCEEDED",
		"Too many requests, please try again later",
	)
)

// ValidationErrors collects every field failure of one input so the caller
// sees them all at once.
type ValidationErrors struct {
	Errors []*DomainError `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{Errors: make([]*DomainError, 0)}
}

// Add records a free-form message against field.
func (v *ValidationErrors) Add(field string, message string) {
	err := NewDomainError(DomainValidationError, "FIELD_VALIDATION_ERROR", message).
		WithDetail("field", field)
	v.Errors = append(v.Errors, err)
}

// AddFieldError records err against field, keeping err's code and message.
func (v *ValidationErrors) AddFieldError(field string, err error) {
	var de *DomainError
	if errors.As(err, &de) {
		v.Errors = append(v.Errors, de.Clone().WithDetail("field", field))
		return
	}
	v.Add(field, err.Error())
}

// ErrorOrNil returns v when it holds errors and nil otherwise.
func (v *ValidationErrors) ErrorOrNil() error {
	if len(v.Errors) > 0 {
		return v
	}
	return nil
}

func (v *ValidationErrors) Error() string {
	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = err.Message
	}
	return "Validation failed: " + strings.Join(messages, "; ")
}

// ToMap groups messages by field. Errors without a field land under
// "general".
func (v *ValidationErrors) ToMap() map[string][]string {
	result := make(map[string][]string)
	for _, err := range v.Errors {
		field, ok := err.Details["field"].(string)
		if !ok {
			field = "general"
		}
		result[field] = append(result[field], err.Message)
	}
	return result
}
