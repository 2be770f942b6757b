package domain

// CopyTrade represents one mirrored-trading relationship between a user
// wallet and a reference trader wallet.
// Corresponds to copy_trades table in PostgreSQL.
type CopyTrade struct {
	ID           string // UUID
	UserWallet   string // base58 wallet address
	TraderWallet string // base58 wallet address being mirrored

	// Parameters
	Allocation  float64 // fraction of the user's trade size mirrored, (0, 1]
	MaxSlippage float64 // percent, advisory bound for swap submission
	StopLoss    float64 // percent

	// Execution record
	UserTradeSignature string  // user's own transaction signature
	AITradeSignature   string  // custodial wallet's mirrored transaction
	TokenMint          string  // mint of the token both positions hold
	EntryPrice         float64 // computed entry price
	LockedAmount       uint64  // raw token units actually received and locked

	// Escrow linkage, zero values when lock creation failed (degraded state)
	LockID         uint64
	EscrowAddress  string
	LockPeriodDays int
	StartDate      int64 // Unix timestamp (seconds)
	EndDate        int64 // Unix timestamp (seconds)

	Status    string // active | completed | failed
	CreatedAt int64  // Unix timestamp (seconds)
	UpdatedAt int64  // Unix timestamp (seconds)
}

// CopyTrade status constants.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// IsLocked reports whether the escrowed funds are still inside the lock
// window at the given instant.
func (c *CopyTrade) IsLocked(now int64) bool {
	return c.LockID != 0 && now < c.EndDate
}

// HasEscrow reports whether a lock reference was recorded. A CopyTrade
// without one is in the degraded state: the mirror succeeded but the
// escrow lock did not.
func (c *CopyTrade) HasEscrow() bool {
	return c.LockID != 0 && c.EscrowAddress != ""
}
