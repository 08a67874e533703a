package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected during turn execution.
//
// Runtime errors include:
//   - Unit failure: one unit raised; recorded in the trace, never returned
//   - Setup failure: sources or the trace could not be prepared for the turn
//   - Cancellation: the Run context ended between units
//   - Turn in progress: another turn is already running on this engine
//   - Persist failure: persistent sources or the trace archive could not be written
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Session identifies the engine session.
	Session string

	// Turn is the turn number, when one had been assigned.
	Turn int

	// Unit is the unit key, for unit failures.
	Unit string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnitFailed indicates a single unit raised during execution.
	ErrCodeUnitFailed RuntimeErrorCode = "UNIT_FAILED"

	// ErrCodeSetupFailed indicates procedure-wide setup failed.
	ErrCodeSetupFailed RuntimeErrorCode = "SETUP_FAILED"

	// ErrCodeCancelled indicates the Run context was cancelled.
	ErrCodeCancelled RuntimeErrorCode = "CANCELLED"

	// ErrCodeTurnInProgress indicates a concurrent Run on the same engine.
	ErrCodeTurnInProgress RuntimeErrorCode = "TURN_IN_PROGRESS"

	// ErrCodePersistFailed indicates write-back after the turn failed.
	ErrCodePersistFailed RuntimeErrorCode = "PERSIST_FAILED"
)

// ErrTurnInProgress is returned by Run while another turn is executing.
var ErrTurnInProgress = &RuntimeError{
	Code:    ErrCodeTurnInProgress,
	Message: "another turn is executing on this engine",
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Unit != "":
		msg = fmt.Sprintf("%s (turn=%d, unit=%s)", msg, e.Turn, e.Unit)
	case e.Turn > 0:
		msg = fmt.Sprintf("%s (turn=%d)", msg, e.Turn)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// HasCode reports whether err is a RuntimeError with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsCancelled returns true if the turn stopped because its context ended.
func IsCancelled(err error) bool {
	return HasCode(err, ErrCodeCancelled)
}

// newSetupError creates a RuntimeError for a failed turn setup.
func newSetupError(session string, turn int, msg string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeSetupFailed,
		Message: msg,
		Session: session,
		Turn:    turn,
		Err:     err,
	}
}

// newUnitError creates a RuntimeError for a unit that raised or panicked.
func newUnitError(session string, turn int, unit string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnitFailed,
		Message: "unit failed",
		Session: session,
		Turn:    turn,
		Unit:    unit,
		Err:     err,
	}
}
