package service

import "fmt"

// ValidationError rejects malformed or out-of-range input before any side
// effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError rejects an operation that contradicts existing state, such
// as starting a second active copy trade for the same pair.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NotFoundError indicates the referenced trade, escrow or ledger
// transaction does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// DegradedStateWarning marks a successful mirror whose escrow lock failed.
// Funds moved and nothing is rolled back, so this is attached to the
// successful response, never returned as an error.
type DegradedStateWarning struct {
	Reason string
}

func (w *DegradedStateWarning) String() string {
	return "escrow lock failed, trade proceeds unlocked: " + w.Reason
}
