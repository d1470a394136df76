package models

import (
	"fmt"
)

// Error codes surfaced to API clients.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeEmptyContent     = "EMPTY_CONTENT"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeMaliciousContent = "MALICIOUS_CONTENT"
	CodeBanned           = "BANNED"
	CodeInTimeout        = "IN_TIMEOUT"
	CodeRateLimited      = "RATE_LIMITED"
	CodeForbiddenWords   = "FORBIDDEN_WORDS"
	CodeInvalidState     = "INVALID_STATE"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
	// Details carries structured, user-safe data such as remaining timeout seconds.
	Details map[string]any
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

// WithDetail attaches a detail entry and returns the same error.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewInvalidStateError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidState,
		Message: message,
	}
}

func NewEmptyContentError() *AppError {
	return &AppError{
		Code:    CodeEmptyContent,
		Message: "Comment content cannot be empty",
	}
}

func NewMaliciousContentError() *AppError {
	return &AppError{
		Code:    CodeMaliciousContent,
		Message: "Comment contains disallowed markup or script content",
	}
}

func NewBannedError() *AppError {
	return &AppError{
		Code:    CodeBanned,
		Message: "Your account is banned from commenting",
	}
}

// NewInTimeoutError reports an active timeout. Remaining minutes are rounded up
// so a user is never told "0 minutes" while still blocked.
func NewInTimeoutError(reason string, severity Severity, remainingSeconds int64) *AppError {
	minutes := (remainingSeconds + 59) / 60
	return &AppError{
		Code:    CodeInTimeout,
		Message: fmt.Sprintf("You are timed out from commenting for another %d minute(s)", minutes),
		Details: map[string]any{
			"reason":           reason,
			"severity":         severity.String(),
			"remainingSeconds": remainingSeconds,
		},
	}
}

func NewRateLimitedError(retryAfterSeconds int64) *AppError {
	return &AppError{
		Code:    CodeRateLimited,
		Message: "You are commenting too quickly, please slow down",
		Details: map[string]any{
			"retryAfterSeconds": retryAfterSeconds,
		},
	}
}

// NewForbiddenWordsError never includes the matched words, only their severity.
func NewForbiddenWordsError(reason string, severity Severity, durationMinutes int) *AppError {
	return &AppError{
		Code: CodeForbiddenWords,
		Message: fmt.Sprintf(
			"Your comment contains %s-severity language that violates community guidelines; you have been timed out for %d minutes",
			severity.String(), durationMinutes,
		),
		Details: map[string]any{
			"reason":          reason,
			"severity":        severity.String(),
			"durationMinutes": durationMinutes,
		},
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}
