package domain

// EscrowLock is a time-boxed, address-derived holding of tokens.
// Corresponds to escrow_locks table in PostgreSQL.
//
// Amount always equals the custodial wallet's observed balance delta across
// the mirrored trade, never the requested amount: proceeds are subject to
// slippage and are measured, not assumed.
type EscrowLock struct {
	LockID        uint64 // monotonic, time-derived
	CopyTradeID   string // owning CopyTrade UUID
	UserWallet    string // base58
	EscrowAddress string // deterministically derived from {userWallet, tokenMint, lockID}
	TokenMint     string // base58 mint address
	Amount        uint64 // raw token units
	UnlockTime    int64  // Unix timestamp (seconds), recorded at lock creation
	CreatedAt     int64  // Unix timestamp (seconds)
	Released      bool
	ReleasedAt    int64 // Unix timestamp (seconds), 0 while held
	ReleaseTxSig  string
}

// Unlocked reports whether the lock window has elapsed at the given instant.
func (l *EscrowLock) Unlocked(now int64) bool {
	return now >= l.UnlockTime
}

// RemainingSeconds returns how long the lock is still held at the given
// instant, 0 once unlocked.
func (l *EscrowLock) RemainingSeconds(now int64) int64 {
	if now >= l.UnlockTime {
		return 0
	}
	return l.UnlockTime - now
}
