// Package services provides the designer session service used by the API.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/flowdesigner/pkg/designer"
	"github.com/dukex/flowdesigner/pkg/persistence"
	"github.com/dukex/flowdesigner/pkg/routing"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")

	// Not Found Errors (404 Not Found).
	ErrFlowNotOpen  = errors.New("flow is not open")
	ErrFlowNotFound = persistence.ErrFlowNotFound
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	FlowID  string // Flow ID if applicable
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	if e.FlowID != "" {
		return fmt.Sprintf("%s: flow %s: %v", e.Op, e.FlowID, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, persistence.ErrInvalidListOptions) ||
		errors.Is(err, persistence.ErrInvalidFlow) ||
		errors.Is(err, routing.ErrInvalidContext) ||
		designer.IsValidationError(err)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return designer.IsConflictError(err)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrFlowNotOpen) ||
		errors.Is(err, ErrFlowNotFound) ||
		designer.IsNotFound(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, message string) *ServiceError {
	return &ServiceError{
		Op:      op,
		Message: message,
		Err:     ErrInvalidRequest,
	}
}
