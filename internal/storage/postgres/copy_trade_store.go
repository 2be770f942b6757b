package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/storage"
)

// CopyTradeStore implements storage.CopyTradeStore using PostgreSQL.
type CopyTradeStore struct {
	pool *Pool
}

// NewCopyTradeStore creates a new CopyTradeStore.
func NewCopyTradeStore(pool *Pool) *CopyTradeStore {
	return &CopyTradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CopyTradeStore = (*CopyTradeStore)(nil)

const copyTradeColumns = `
	id, user_wallet, trader_wallet,
	allocation, max_slippage, stop_loss,
	user_trade_signature, ai_trade_signature, token_mint, entry_price, locked_amount,
	lock_id, escrow_address, lock_period_days, start_date, end_date,
	status, created_at, updated_at`

// Insert adds a new copy trade. Returns ErrDuplicateKey when an active
// record already exists for the (userWallet, traderWallet) pair; the
// partial unique index on status='active' enforces it.
func (s *CopyTradeStore) Insert(ctx context.Context, t *domain.CopyTrade) error {
	query := `
		INSERT INTO copy_trades (` + copyTradeColumns + `
		) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18, $19
		)
	`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.UserWallet, t.TraderWallet,
		t.Allocation, t.MaxSlippage, t.StopLoss,
		t.UserTradeSignature, t.AITradeSignature, t.TokenMint, t.EntryPrice, int64(t.LockedAmount),
		int64(t.LockID), t.EscrowAddress, t.LockPeriodDays, t.StartDate, t.EndDate,
		t.Status, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert copy trade: %w", err)
	}
	return nil
}

// GetByID retrieves a copy trade by its ID. Returns ErrNotFound if not exists.
func (s *CopyTradeStore) GetByID(ctx context.Context, id string) (*domain.CopyTrade, error) {
	query := `SELECT` + copyTradeColumns + ` FROM copy_trades WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	t, err := scanCopyTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get copy trade by id: %w", err)
	}
	return t, nil
}

// GetActiveByPair retrieves the active copy trade for a (user, trader) pair.
// Returns ErrNotFound when none is active.
func (s *CopyTradeStore) GetActiveByPair(ctx context.Context, userWallet, traderWallet string) (*domain.CopyTrade, error) {
	query := `
		SELECT` + copyTradeColumns + `
		FROM copy_trades
		WHERE user_wallet = $1 AND trader_wallet = $2 AND status = 'active'
	`

	row := s.pool.QueryRow(ctx, query, userWallet, traderWallet)
	t, err := scanCopyTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get active copy trade by pair: %w", err)
	}
	return t, nil
}

// GetByUserWallet retrieves all copy trades for a user, newest first.
func (s *CopyTradeStore) GetByUserWallet(ctx context.Context, userWallet string) ([]*domain.CopyTrade, error) {
	query := `
		SELECT` + copyTradeColumns + `
		FROM copy_trades
		WHERE user_wallet = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, userWallet)
	if err != nil {
		return nil, fmt.Errorf("get copy trades by user wallet: %w", err)
	}
	defer rows.Close()

	return scanCopyTrades(rows)
}

// UpdateExecution records the execution and escrow fields after a confirmed
// mirror. Returns ErrNotFound if the trade does not exist.
func (s *CopyTradeStore) UpdateExecution(ctx context.Context, t *domain.CopyTrade) error {
	query := `
		UPDATE copy_trades SET
			user_trade_signature = $2,
			ai_trade_signature = $3,
			token_mint = $4,
			entry_price = $5,
			locked_amount = $6,
			lock_id = $7,
			escrow_address = $8,
			lock_period_days = $9,
			start_date = $10,
			end_date = $11,
			updated_at = $12
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		t.ID,
		t.UserTradeSignature, t.AITradeSignature, t.TokenMint, t.EntryPrice, int64(t.LockedAmount),
		int64(t.LockID), t.EscrowAddress, t.LockPeriodDays, t.StartDate, t.EndDate,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update copy trade execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateStatus transitions the trade's lifecycle status. Returns
// ErrNotFound if the trade does not exist.
func (s *CopyTradeStore) UpdateStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE copy_trades
		SET status = $2, updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update copy trade status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanCopyTrade scans a single row into a CopyTrade.
func scanCopyTrade(row pgx.Row) (*domain.CopyTrade, error) {
	var t domain.CopyTrade
	var lockedAmount, lockID int64

	err := row.Scan(
		&t.ID, &t.UserWallet, &t.TraderWallet,
		&t.Allocation, &t.MaxSlippage, &t.StopLoss,
		&t.UserTradeSignature, &t.AITradeSignature, &t.TokenMint, &t.EntryPrice, &lockedAmount,
		&lockID, &t.EscrowAddress, &t.LockPeriodDays, &t.StartDate, &t.EndDate,
		&t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.LockedAmount = uint64(lockedAmount)
	t.LockID = uint64(lockID)
	return &t, nil
}

// scanCopyTrades scans multiple rows into a slice of CopyTrade.
func scanCopyTrades(rows pgx.Rows) ([]*domain.CopyTrade, error) {
	var trades []*domain.CopyTrade

	for rows.Next() {
		t, err := scanCopyTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan copy trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate copy trade rows: %w", err)
	}

	return trades, nil
}
