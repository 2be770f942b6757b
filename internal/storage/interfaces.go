package storage

import (
	"context"

	"solana-copytrade/internal/domain"
)

// CopyTradeStore provides access to copy_trades storage.
type CopyTradeStore interface {
	// Insert adds a new copy trade. Returns ErrDuplicateKey when an active
	// record already exists for the (userWallet, traderWallet) pair.
	Insert(ctx context.Context, t *domain.CopyTrade) error

	// GetByID retrieves a copy trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.CopyTrade, error)

	// GetActiveByPair retrieves the active copy trade for a (user, trader)
	// pair. Returns ErrNotFound when none is active.
	GetActiveByPair(ctx context.Context, userWallet, traderWallet string) (*domain.CopyTrade, error)

	// GetByUserWallet retrieves all copy trades for a user, newest first.
	GetByUserWallet(ctx context.Context, userWallet string) ([]*domain.CopyTrade, error)

	// UpdateExecution records the execution and escrow fields after a
	// confirmed mirror. Returns ErrNotFound if the trade does not exist.
	UpdateExecution(ctx context.Context, t *domain.CopyTrade) error

	// UpdateStatus transitions the trade's lifecycle status. Returns
	// ErrNotFound if the trade does not exist.
	UpdateStatus(ctx context.Context, id, status string) error
}

// EscrowLockStore provides access to escrow_locks storage.
type EscrowLockStore interface {
	// Insert adds a new lock. Returns ErrDuplicateKey if lock_id exists.
	Insert(ctx context.Context, l *domain.EscrowLock) error

	// GetByLockID retrieves a lock by its ID. Returns ErrNotFound if not exists.
	GetByLockID(ctx context.Context, lockID uint64) (*domain.EscrowLock, error)

	// GetByCopyTradeID retrieves the lock backing a copy trade.
	// Returns ErrNotFound if not exists.
	GetByCopyTradeID(ctx context.Context, copyTradeID string) (*domain.EscrowLock, error)

	// MarkReleased records a completed release. Returns ErrNotFound if the
	// lock does not exist.
	MarkReleased(ctx context.Context, lockID uint64, releasedAt int64, txSig string) error
}

// TradeEventStore is an append-only audit sink for classified trade events.
type TradeEventStore interface {
	// Insert archives one event. Re-archiving the same signature is a no-op
	// for implementations that can detect it.
	Insert(ctx context.Context, e *domain.TradeEvent) error

	// GetByWallet retrieves archived events for a trader wallet, newest first.
	GetByWallet(ctx context.Context, wallet string, limit int) ([]*domain.TradeEvent, error)
}
