package escrow

import (
	"errors"
	"fmt"
	"time"
)

// ErrNothingToLock is returned when a lock is requested for zero proceeds.
var ErrNothingToLock = errors.New("escrow lock requires a positive amount")

// StillLockedError indicates the lock window has not elapsed. No funds
// moved; callers must not bypass the gate.
type StillLockedError struct {
	LockID    uint64
	Remaining time.Duration
}

func (e *StillLockedError) Error() string {
	return fmt.Sprintf("escrow lock %d still held for %s", e.LockID, e.Remaining)
}
