package mirror

import (
	"errors"
	"fmt"
	"time"
)

// ErrUserTradeNotFound is returned when the user's transaction cannot be
// located at any commitment level.
var ErrUserTradeNotFound = errors.New("user transaction not found on ledger")

// InsufficientReserveError indicates the custodial wallet is below its
// minimum operating balance. No trade was attempted.
type InsufficientReserveError struct {
	Balance  uint64 // lamports
	Required uint64 // lamports
}

func (e *InsufficientReserveError) Error() string {
	return fmt.Sprintf("insufficient custodial balance: have %d lamports, need %d", e.Balance, e.Required)
}

// LedgerFailureError indicates a transaction exists but failed on-chain.
type LedgerFailureError struct {
	Signature string
	Detail    interface{}
}

func (e *LedgerFailureError) Error() string {
	return fmt.Sprintf("transaction %s failed on ledger: %v", e.Signature, e.Detail)
}

// ConfirmationTimeoutError indicates the bounded confirmation poll was
// exhausted without observing the mirrored trade. The trade may still land:
// callers must treat this as "processing", not as failure.
type ConfirmationTimeoutError struct {
	Signature string
	Attempts  int
	Spacing   time.Duration
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("mirror trade %s not confirmed after %d attempts at %s spacing", e.Signature, e.Attempts, e.Spacing)
}
