package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/storage"
)

func newTestEscrowLock(lockID uint64, copyTradeID string) *domain.EscrowLock {
	return &domain.EscrowLock{
		LockID:        lockID,
		CopyTradeID:   copyTradeID,
		UserWallet:    "UserA",
		EscrowAddress: "Vau1t",
		TokenMint:     "Mint1",
		Amount:        493_000_000,
		UnlockTime:    1700864000,
		CreatedAt:     1700000000,
	}
}

func TestEscrowLockStore_InsertAndGetByLockID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEscrowLockStore(pool)

	lock := newTestEscrowLock(42, "trade-1")
	require.NoError(t, store.Insert(ctx, lock))

	got, err := store.GetByLockID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(493_000_000), got.Amount)
	assert.Equal(t, "Vau1t", got.EscrowAddress)
	assert.False(t, got.Released)

	_, err = store.GetByLockID(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEscrowLockStore_DuplicateLockID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEscrowLockStore(pool)

	require.NoError(t, store.Insert(ctx, newTestEscrowLock(42, "trade-1")))
	err := store.Insert(ctx, newTestEscrowLock(42, "trade-2"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestEscrowLockStore_GetByCopyTradeID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEscrowLockStore(pool)

	require.NoError(t, store.Insert(ctx, newTestEscrowLock(42, "trade-1")))

	got, err := store.GetByCopyTradeID(ctx, "trade-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got.LockID)

	_, err = store.GetByCopyTradeID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEscrowLockStore_MarkReleased(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEscrowLockStore(pool)

	require.NoError(t, store.Insert(ctx, newTestEscrowLock(42, "trade-1")))
	require.NoError(t, store.MarkReleased(ctx, 42, 1700864100, "release-sig"))

	got, err := store.GetByLockID(ctx, 42)
	require.NoError(t, err)
	assert.True(t, got.Released)
	assert.Equal(t, int64(1700864100), got.ReleasedAt)
	assert.Equal(t, "release-sig", got.ReleaseTxSig)

	assert.ErrorIs(t, store.MarkReleased(ctx, 999, 1700864100, "x"), storage.ErrNotFound)
}
