package stateres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/stateres/internal/ir"
)

// Error is a structural failure of a resolution run. Authorization
// rejections are never errors; they only exclude events from the result.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// EventID is the offending event, when there is one.
	EventID ir.EventID

	// Cycle lists the events left unordered when a cycle was found.
	Cycle []ir.EventID

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes resolution errors.
type ErrorCode string

const (
	// ErrCodeArityMismatch indicates snapshots and auth chains differ in count.
	ErrCodeArityMismatch ErrorCode = "ARITY_MISMATCH"

	// ErrCodeNotAStateEvent indicates a state-bearing position held an event
	// without a state key.
	ErrCodeNotAStateEvent ErrorCode = "NOT_A_STATE_EVENT"

	// ErrCodeFetchMissing indicates a referenced event could not be fetched.
	ErrCodeFetchMissing ErrorCode = "FETCH_MISSING"

	// ErrCodeCycleDetected indicates the auth graph is not acyclic.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.EventID != "" {
		fmt.Fprintf(&b, " (event=%s)", e.EventID)
	}
	if e.Err != nil && !errors.Is(e.Err, ErrEventNotFound) {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewArityError reports mismatched input lengths.
func NewArityError(snapshots, chains int) *Error {
	return &Error{
		Code:    ErrCodeArityMismatch,
		Message: fmt.Sprintf("%d state snapshots but %d auth chains", snapshots, chains),
	}
}

// NewNotAStateEventError reports an event without a state key.
func NewNotAStateEventError(id ir.EventID) *Error {
	return &Error{
		Code:    ErrCodeNotAStateEvent,
		Message: "event has no state key",
		EventID: id,
	}
}

// NewFetchMissingError reports an event the fetcher could not provide.
func NewFetchMissingError(id ir.EventID, cause error) *Error {
	return &Error{
		Code:    ErrCodeFetchMissing,
		Message: "referenced event is not available",
		EventID: id,
		Err:     cause,
	}
}

// NewCycleError reports events that could not be ordered.
func NewCycleError(remaining []ir.EventID) *Error {
	e := &Error{
		Code:    ErrCodeCycleDetected,
		Message: fmt.Sprintf("auth graph has a cycle through %d events", len(remaining)),
		Cycle:   remaining,
	}
	if len(remaining) > 0 {
		e.EventID = remaining[0]
	}
	return e
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsArityError reports whether err is an ARITY_MISMATCH error.
func IsArityError(err error) bool { return hasCode(err, ErrCodeArityMismatch) }

// IsNotAStateEventError reports whether err is a NOT_A_STATE_EVENT error.
func IsNotAStateEventError(err error) bool { return hasCode(err, ErrCodeNotAStateEvent) }

// IsFetchMissingError reports whether err is a FETCH_MISSING error.
func IsFetchMissingError(err error) bool { return hasCode(err, ErrCodeFetchMissing) }

// IsCycleError reports whether err is a CYCLE_DETECTED error.
func IsCycleError(err error) bool { return hasCode(err, ErrCodeCycleDetected) }

// MissingEventID returns the ID a FETCH_MISSING error refers to.
func MissingEventID(err error) (ir.EventID, bool) {
	var e *Error
	if errors.As(err, &e) && e.Code == ErrCodeFetchMissing {
		return e.EventID, true
	}
	return "", false
}
