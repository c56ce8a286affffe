package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error surfaced by the engine
type ErrorType string

const (
	// ErrorTypeValidation represents malformed caller input (400)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeTransientModel represents a failed model call after all
	// alternatives were exhausted (502)
	ErrorTypeTransientModel ErrorType = "transient_model"
	// ErrorTypeBudgetExceeded represents a projected or cumulative cost above
	// max_cost_per_request (402)
	ErrorTypeBudgetExceeded ErrorType = "budget_exceeded"
	// ErrorTypeInsufficientConsensus represents fewer than two successful
	// model responses in consensus mode (502)
	ErrorTypeInsufficientConsensus ErrorType = "insufficient_consensus"
	// ErrorTypeDeadlineExceeded represents an expired caller deadline with no
	// usable result (504)
	ErrorTypeDeadlineExceeded ErrorType = "deadline_exceeded"
	// ErrorTypeCacheUnavailable marks cache backend failures. Never surfaced
	// to callers; the cache degrades to a miss.
	ErrorTypeCacheUnavailable ErrorType = "cache_unavailable"
	// ErrorTypeInternal represents internal engine errors (500)
	ErrorTypeInternal ErrorType = "internal"
)

// CascadeError is the structured error type for everything the engine
// surfaces. Callers receive either a complete result or one of these — never
// a bare transport error.
type CascadeError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface
func (e *CascadeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows error unwrapping
func (e *CascadeError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP status code for the error type.
func (e *CascadeError) StatusCode() int {
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeBudgetExceeded:
		return http.StatusPaymentRequired
	case ErrorTypeTransientModel, ErrorTypeInsufficientConsensus:
		return http.StatusBadGateway
	case ErrorTypeDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsErrorType reports whether err is a CascadeError of the given type.
func IsErrorType(err error, t ErrorType) bool {
	var ce *CascadeError
	if errors.As(err, &ce) {
		return ce.Type == t
	}
	return false
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *CascadeError {
	return &CascadeError{
		Type:      ErrorTypeValidation,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// NewTransientModelError creates an error for a model call that failed with
// no remaining alternatives
func NewTransientModelError(model string, cause error) *CascadeError {
	return &CascadeError{
		Type:      ErrorTypeTransientModel,
		Message:   fmt.Sprintf("model %s failed and no alternative produced a result", model),
		Retryable: true,
		Cause:     cause,
	}
}

// NewBudgetExceededError creates a budget error. projected is the cost the
// next attempt would have brought the request to.
func NewBudgetExceededError(projected, limit float64) *CascadeError {
	return &CascadeError{
		Type:      ErrorTypeBudgetExceeded,
		Message:   fmt.Sprintf("projected cost %.6f exceeds max_cost_per_request %.6f", projected, limit),
		Retryable: false,
	}
}

// NewInsufficientConsensusError creates an error for consensus runs with
// fewer than two usable responses
func NewInsufficientConsensusError(succeeded, required int) *CascadeError {
	return &CascadeError{
		Type:      ErrorTypeInsufficientConsensus,
		Message:   fmt.Sprintf("only %d of required %d models produced responses", succeeded, required),
		Retryable: true,
	}
}

// NewDeadlineExceededError creates a deadline error for requests where no
// attempt completed before the caller deadline
func NewDeadlineExceededError(cause error) *CascadeError {
	return &CascadeError{
		Type:      ErrorTypeDeadlineExceeded,
		Message:   "request deadline exceeded before any attempt completed",
		Retryable: true,
		Cause:     cause,
	}
}

// NewCacheUnavailableError creates a cache backend error. The cache layer
// logs these and degrades to a miss; they are never returned to callers.
func NewCacheUnavailableError(op string, cause error) *CascadeError {
	return &CascadeError{
		Type:      ErrorTypeCacheUnavailable,
		Message:   fmt.Sprintf("cache backend %s failed", op),
		Retryable: true,
		Cause:     cause,
	}
}

// NewInternalError creates an internal engine error
func NewInternalError(message string, cause error) *CascadeError {
	return &CascadeError{
		Type:      ErrorTypeInternal,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}
