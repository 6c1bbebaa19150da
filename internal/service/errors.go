package service

import (
	"fmt"

	"github.com/edjs/seat-reservation/internal/model"
)

// ValidationError reports malformed input. It is raised before any store
// access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a session id that does not resolve.
type NotFoundError struct {
	SessionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", e.SessionID)
}

// CapacityExceededError is the business-rule rejection of a reservation. It
// carries the alternatives so callers can offer them without another call.
type CapacityExceededError struct {
	SessionID    string
	Requested    int
	Available    int
	Alternatives []model.AlternativeSession
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("session %s has %d seats available, %d requested", e.SessionID, e.Available, e.Requested)
}

// PersistenceError wraps a data-store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
