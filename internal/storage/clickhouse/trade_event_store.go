package clickhouse

import (
	"context"
	"fmt"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/storage"
)

// TradeEventStore implements storage.TradeEventStore using ClickHouse.
// The table is an append-only audit archive of classified trade events.
type TradeEventStore struct {
	conn *Conn
}

// NewTradeEventStore creates a new TradeEventStore.
func NewTradeEventStore(conn *Conn) *TradeEventStore {
	return &TradeEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

// Insert archives one event. Re-archiving an already stored signature is a
// no-op: the store checks before inserting, and ReplacingMergeTree collapses
// anything that races past the check.
func (s *TradeEventStore) Insert(ctx context.Context, e *domain.TradeEvent) error {
	exists, err := s.exists(ctx, e.Signature)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_events (
			signature, type, token, amount, price, timestamp, wallet_address
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	if err := batch.Append(
		e.Signature, e.Type, e.Token, e.Amount, e.Price, e.Timestamp, e.WalletAddress,
	); err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByWallet retrieves archived events for a trader wallet, newest first.
// A limit of 0 returns everything.
func (s *TradeEventStore) GetByWallet(ctx context.Context, wallet string, limit int) ([]*domain.TradeEvent, error) {
	query := `
		SELECT signature, type, token, amount, price, timestamp, wallet_address
		FROM trade_events
		WHERE wallet_address = ?
		ORDER BY timestamp DESC, signature DESC
	`
	args := []any{wallet}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get trade events by wallet: %w", err)
	}
	defer rows.Close()

	var events []*domain.TradeEvent
	for rows.Next() {
		var e domain.TradeEvent
		if err := rows.Scan(
			&e.Signature, &e.Type, &e.Token, &e.Amount, &e.Price, &e.Timestamp, &e.WalletAddress,
		); err != nil {
			return nil, fmt.Errorf("scan trade event row: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade event rows: %w", err)
	}
	return events, nil
}

// exists reports whether a signature is already archived.
func (s *TradeEventStore) exists(ctx context.Context, signature string) (bool, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT count() FROM trade_events WHERE signature = ?`, signature)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
