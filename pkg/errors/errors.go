package errors

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors
type Kind string

const (
	KindPhaseViolation      Kind = "phase_violation"
	KindShapeViolation      Kind = "shape_violation"
	KindPermissionViolation Kind = "permission_violation"
	KindAggregation         Kind = "aggregation_error"
	KindTransientStore      Kind = "transient_store_error"
	KindContractBug         Kind = "contract_bug"
	KindNotFound            Kind = "not_found"
)

// EngineError is a structured engine error carrying its kind, an optional
// wrapped cause and optional detail fields.
type EngineError struct {
	Kind     Kind                   `json:"kind"`
	Message  string                 `json:"message"`
	Internal error                  `json:"-"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Internal.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause
func (e *EngineError) Unwrap() error {
	return e.Internal
}

// IsKind reports whether err is an EngineError of the given kind
func IsKind(err error, kind Kind) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind == kind
	}
	return false
}

// NewPhaseViolation creates an error for operations outside their phase
func NewPhaseViolation(message string, details map[string]interface{}) *EngineError {
	return &EngineError{Kind: KindPhaseViolation, Message: message, Details: details}
}

// NewShapeViolation creates an error for structurally invalid ballots or statements
func NewShapeViolation(message string, details map[string]interface{}) *EngineError {
	return &EngineError{Kind: KindShapeViolation, Message: message, Details: details}
}

// NewPermissionViolation creates an error for actors lacking a group capability
func NewPermissionViolation(message string) *EngineError {
	return &EngineError{Kind: KindPermissionViolation, Message: message}
}

// NewAggregationError creates an error for a numeric failure on a single
// prediction statement. The statement's combined bet becomes null; other
// statements proceed.
func NewAggregationError(message string, internal error) *EngineError {
	return &EngineError{Kind: KindAggregation, Message: message, Internal: internal}
}

// NewTransientStoreError wraps a repository I/O failure eligible for retry
func NewTransientStoreError(message string, internal error) *EngineError {
	return &EngineError{Kind: KindTransientStore, Message: message, Internal: internal}
}

// NewContractBug creates an error for a broken internal invariant. The
// affected poll's lane is marked inert.
func NewContractBug(message string, internal error) *EngineError {
	return &EngineError{Kind: KindContractBug, Message: message, Internal: internal}
}

// NewNotFound creates an error for a missing entity
func NewNotFound(message string) *EngineError {
	return &EngineError{Kind: KindNotFound, Message: message}
}
