package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/storage"
)

// newTestCopyTrade builds a minimal active trade for storage tests.
func newTestCopyTrade(id, userWallet, traderWallet string) *domain.CopyTrade {
	return &domain.CopyTrade{
		ID:           id,
		UserWallet:   userWallet,
		TraderWallet: traderWallet,
		Allocation:   0.5,
		MaxSlippage:  1.0,
		StopLoss:     20.0,
		Status:       domain.StatusActive,
		CreatedAt:    1700000000,
		UpdatedAt:    1700000000,
	}
}

func TestCopyTradeStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCopyTradeStore(pool)

	trade := newTestCopyTrade("trade-1", "UserA", "TraderA")
	require.NoError(t, store.Insert(ctx, trade))

	got, err := store.GetByID(ctx, "trade-1")
	require.NoError(t, err)
	assert.Equal(t, trade.UserWallet, got.UserWallet)
	assert.Equal(t, trade.TraderWallet, got.TraderWallet)
	assert.Equal(t, trade.Allocation, got.Allocation)
	assert.Equal(t, domain.StatusActive, got.Status)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCopyTradeStore_SingleActivePair(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCopyTradeStore(pool)

	require.NoError(t, store.Insert(ctx, newTestCopyTrade("trade-1", "UserA", "TraderA")))

	// Second active record for the same pair violates the partial index
	err := store.Insert(ctx, newTestCopyTrade("trade-2", "UserA", "TraderA"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Other pairs are unaffected
	require.NoError(t, store.Insert(ctx, newTestCopyTrade("trade-3", "UserA", "TraderB")))
	require.NoError(t, store.Insert(ctx, newTestCopyTrade("trade-4", "UserB", "TraderA")))

	// Once the prior record leaves active, the pair opens up again
	require.NoError(t, store.UpdateStatus(ctx, "trade-1", domain.StatusCompleted))
	require.NoError(t, store.Insert(ctx, newTestCopyTrade("trade-5", "UserA", "TraderA")))
}

func TestCopyTradeStore_GetActiveByPair(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCopyTradeStore(pool)

	require.NoError(t, store.Insert(ctx, newTestCopyTrade("trade-1", "UserA", "TraderA")))

	got, err := store.GetActiveByPair(ctx, "UserA", "TraderA")
	require.NoError(t, err)
	assert.Equal(t, "trade-1", got.ID)

	require.NoError(t, store.UpdateStatus(ctx, "trade-1", domain.StatusFailed))
	_, err = store.GetActiveByPair(ctx, "UserA", "TraderA")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCopyTradeStore_UpdateExecution(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCopyTradeStore(pool)

	trade := newTestCopyTrade("trade-1", "UserA", "TraderA")
	require.NoError(t, store.Insert(ctx, trade))

	trade.UserTradeSignature = "user-sig"
	trade.AITradeSignature = "ai-sig"
	trade.TokenMint = "Mint1"
	trade.EntryPrice = 0.005
	trade.LockedAmount = 493_000_000
	trade.LockID = 1700000000001
	trade.EscrowAddress = "Vau1t"
	trade.LockPeriodDays = 10
	trade.StartDate = 1700000100
	trade.EndDate = 1700000100 + 10*86400
	trade.UpdatedAt = 1700000100
	require.NoError(t, store.UpdateExecution(ctx, trade))

	got, err := store.GetByID(ctx, "trade-1")
	require.NoError(t, err)
	assert.Equal(t, "ai-sig", got.AITradeSignature)
	assert.Equal(t, uint64(493_000_000), got.LockedAmount)
	assert.Equal(t, uint64(1700000000001), got.LockID)
	assert.Equal(t, "Vau1t", got.EscrowAddress)

	missing := newTestCopyTrade("missing", "UserA", "TraderX")
	assert.ErrorIs(t, store.UpdateExecution(ctx, missing), storage.ErrNotFound)
}

func TestCopyTradeStore_GetByUserWallet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCopyTradeStore(pool)

	first := newTestCopyTrade("trade-1", "UserA", "TraderA")
	first.CreatedAt = 1700000000
	second := newTestCopyTrade("trade-2", "UserA", "TraderB")
	second.CreatedAt = 1700000500
	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))
	require.NoError(t, store.Insert(ctx, newTestCopyTrade("trade-3", "UserB", "TraderA")))

	trades, err := store.GetByUserWallet(ctx, "UserA")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "trade-2", trades[0].ID, "newest first")
	assert.Equal(t, "trade-1", trades[1].ID)
}
