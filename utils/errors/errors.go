package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// APIError represents a custom error type for API responses
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Details   string `json:"details,omitempty"`
	Current   string `json:"current,omitempty"`
	Attempted string `json:"attempted,omitempty"`
}

// Error returns the error message
func (e *APIError) Error() string {
	if e.Current != "" || e.Attempted != "" {
		return fmt.Sprintf("%s: %s (current=%s attempted=%s)", e.Code, e.Message, e.Current, e.Attempted)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on the error code so copies of a sentinel compare equal.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func NewAPIError(code, message string, status int, details ...string) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput      = NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest)
	ErrValidation        = NewAPIError("VALIDATION_FAILED", "Validation failed", http.StatusBadRequest)
	ErrTransition        = NewAPIError("INVALID_TRANSITION", "Invalid status transition", http.StatusBadRequest)
	ErrUnauthorized      = NewAPIError("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrForbidden         = NewAPIError("ACCESS_DENIED", "Access denied", http.StatusForbidden)
	ErrNotFound          = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrConflict          = NewAPIError("CONFLICT", "Resource conflict", http.StatusConflict)
	ErrTooManyRequests   = NewAPIError("TOO_MANY_REQUESTS", "Too many requests", http.StatusTooManyRequests)
	ErrInternal          = NewAPIError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrInvalidCredential = NewAPIError("INVALID_CREDENTIALS", "Invalid credentials", http.StatusUnauthorized)
)

// Validation returns a 400 carrying a caller-facing message.
func Validation(message string) *APIError {
	return NewAPIError(ErrValidation.Code, message, http.StatusBadRequest)
}

// Forbidden returns a 403 with a specific message.
func Forbidden(message string) *APIError {
	return NewAPIError(ErrForbidden.Code, message, http.StatusForbidden)
}

// NotFound returns a 404 with a specific message.
func NotFound(message string) *APIError {
	return NewAPIError(ErrNotFound.Code, message, http.StatusNotFound)
}

// Conflict returns a 409 with a specific message.
func Conflict(message string) *APIError {
	return NewAPIError(ErrConflict.Code, message, http.StatusConflict)
}

// InvalidTransition reports a lifecycle move that the current status does not allow.
func InvalidTransition(current, attempted string) *APIError {
	err := NewAPIError(ErrTransition.Code,
		fmt.Sprintf("cannot move request from %s to %s", current, attempted),
		http.StatusBadRequest)
	err.Current = current
	err.Attempted = attempted
	return err
}

func Wrap(err error, code, message string, status int) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return NewAPIError(code, message, status, err.Error())
}

// As extracts the APIError from err, if any.
func As(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
