package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/models"
)

// ErrorKind classifies an expected business failure
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindAlreadyFilled     ErrorKind = "already_filled"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindValidation        ErrorKind = "validation_error"
	KindExternalService   ErrorKind = "external_service_error"
	KindInvalidState      ErrorKind = "invalid_state"
)

// EngineError is a business outcome that callers surface to users
type EngineError struct {
	Kind          ErrorKind            `json:"kind"`
	Message       string               `json:"message"`
	CurrentState  models.ShiftStatus   `json:"current_state,omitempty"`
	AllowedStates []models.ShiftStatus `json:"allowed_states,omitempty"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewNotFoundError reports a missing entity
func NewNotFoundError(entity string, id uuid.UUID) *EngineError {
	return &EngineError{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewInvalidTransitionError reports a move outside the transition table
func NewInvalidTransitionError(current, requested models.ShiftStatus) *EngineError {
	allowed := current.AllowedTransitions()
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	msg := fmt.Sprintf("cannot move shift from %s to %s", current, requested)
	if len(names) > 0 {
		msg += fmt.Sprintf(" (allowed: %s)", strings.Join(names, ", "))
	} else {
		msg += " (shift is final)"
	}
	return &EngineError{
		Kind:          KindInvalidTransition,
		Message:       msg,
		CurrentState:  current,
		AllowedStates: allowed,
	}
}

// NewAlreadyFilledError reports a lost race for a shift
func NewAlreadyFilledError(shiftID uuid.UUID) *EngineError {
	return &EngineError{Kind: KindAlreadyFilled, Message: fmt.Sprintf("shift %s has already been filled", shiftID)}
}

// NewUnauthorizedError reports an actor acting outside their rights
func NewUnauthorizedError(msg string) *EngineError {
	return &EngineError{Kind: KindUnauthorized, Message: msg}
}

// NewValidationError reports malformed input
func NewValidationError(format string, args ...interface{}) *EngineError {
	return &EngineError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidStateError reports an operation on a shift in the wrong state
func NewInvalidStateError(current models.ShiftStatus, msg string) *EngineError {
	return &EngineError{Kind: KindInvalidState, Message: msg, CurrentState: current}
}

// NewExternalServiceError wraps a collaborator failure; always non-fatal
func NewExternalServiceError(service string, err error) *EngineError {
	return &EngineError{Kind: KindExternalService, Message: fmt.Sprintf("%s: %v", service, err)}
}

// AsEngineError extracts an EngineError from err
func AsEngineError(err error) (*EngineError, bool) {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr, true
	}
	return nil, false
}

// IsKind reports whether err is an EngineError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	engineErr, ok := AsEngineError(err)
	return ok && engineErr.Kind == kind
}

// TransitionResult is the typed outcome of a state-machine operation.
// Expected failures are carried in Error; only infrastructure failures
// are returned as a Go error alongside it.
type TransitionResult struct {
	Success bool          `json:"success"`
	Shift   *models.Shift `json:"shift,omitempty"`
	Error   *EngineError  `json:"error,omitempty"`
}

func succeeded(shift *models.Shift) *TransitionResult {
	return &TransitionResult{Success: true, Shift: shift}
}

func failed(shift *models.Shift, err *EngineError) *TransitionResult {
	return &TransitionResult{Success: false, Shift: shift, Error: err}
}
