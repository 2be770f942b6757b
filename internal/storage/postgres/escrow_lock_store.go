package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/storage"
)

// EscrowLockStore implements storage.EscrowLockStore using PostgreSQL.
type EscrowLockStore struct {
	pool *Pool
}

// NewEscrowLockStore creates a new EscrowLockStore.
func NewEscrowLockStore(pool *Pool) *EscrowLockStore {
	return &EscrowLockStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EscrowLockStore = (*EscrowLockStore)(nil)

const escrowLockColumns = `
	lock_id, copy_trade_id, user_wallet, escrow_address, token_mint,
	amount, unlock_time, created_at, released, released_at, release_tx_sig`

// Insert adds a new lock. Returns ErrDuplicateKey if lock_id exists.
func (s *EscrowLockStore) Insert(ctx context.Context, l *domain.EscrowLock) error {
	query := `
		INSERT INTO escrow_locks (` + escrowLockColumns + `
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11
		)
	`

	_, err := s.pool.Exec(ctx, query,
		int64(l.LockID), l.CopyTradeID, l.UserWallet, l.EscrowAddress, l.TokenMint,
		int64(l.Amount), l.UnlockTime, l.CreatedAt, l.Released, l.ReleasedAt, l.ReleaseTxSig,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert escrow lock: %w", err)
	}
	return nil
}

// GetByLockID retrieves a lock by its ID. Returns ErrNotFound if not exists.
func (s *EscrowLockStore) GetByLockID(ctx context.Context, lockID uint64) (*domain.EscrowLock, error) {
	query := `SELECT` + escrowLockColumns + ` FROM escrow_locks WHERE lock_id = $1`

	row := s.pool.QueryRow(ctx, query, int64(lockID))
	l, err := scanEscrowLock(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get escrow lock by id: %w", err)
	}
	return l, nil
}

// GetByCopyTradeID retrieves the lock backing a copy trade. Returns
// ErrNotFound if not exists.
func (s *EscrowLockStore) GetByCopyTradeID(ctx context.Context, copyTradeID string) (*domain.EscrowLock, error) {
	query := `
		SELECT` + escrowLockColumns + `
		FROM escrow_locks
		WHERE copy_trade_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, copyTradeID)
	l, err := scanEscrowLock(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get escrow lock by copy trade id: %w", err)
	}
	return l, nil
}

// MarkReleased records a completed release. Returns ErrNotFound if the lock
// does not exist.
func (s *EscrowLockStore) MarkReleased(ctx context.Context, lockID uint64, releasedAt int64, txSig string) error {
	query := `
		UPDATE escrow_locks
		SET released = TRUE, released_at = $2, release_tx_sig = $3
		WHERE lock_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, int64(lockID), releasedAt, txSig)
	if err != nil {
		return fmt.Errorf("mark escrow lock released: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanEscrowLock scans a single row into an EscrowLock.
func scanEscrowLock(row pgx.Row) (*domain.EscrowLock, error) {
	var l domain.EscrowLock
	var lockID, amount int64

	err := row.Scan(
		&lockID, &l.CopyTradeID, &l.UserWallet, &l.EscrowAddress, &l.TokenMint,
		&amount, &l.UnlockTime, &l.CreatedAt, &l.Released, &l.ReleasedAt, &l.ReleaseTxSig,
	)
	if err != nil {
		return nil, err
	}

	l.LockID = uint64(lockID)
	l.Amount = uint64(amount)
	return &l, nil
}
