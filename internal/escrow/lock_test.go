package escrow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copytrade/internal/storage"
	"solana-copytrade/internal/storage/memory"
)

// stubWallet records transfers without touching a network.
type stubWallet struct {
	calls     []TransferRequest
	signature string
	err       error
}

func (w *stubWallet) Transfer(_ context.Context, req TransferRequest) (string, error) {
	w.calls = append(w.calls, req)
	return w.signature, w.err
}

const (
	lockUser = "UserWa11et"
	aiWallet = "AIWa11et"
	lockMint = "TokenMint"
)

func newTestLockService(wallet *stubWallet, store storage.EscrowLockStore, now int64) *LockService {
	s := NewLockService(wallet, store, nil)
	s.now = func() time.Time { return time.Unix(now, 0) }
	return s
}

func TestLock_ExactMeasuredProceeds(t *testing.T) {
	store := memory.NewEscrowLockStore()
	wallet := &stubWallet{signature: "fund-sig"}
	const now = int64(1700000000)

	s := newTestLockService(wallet, store, now)
	lock, err := s.Lock(context.Background(), LockRequest{
		CopyTradeID: "trade-1",
		UserWallet:  lockUser,
		AIWallet:    aiWallet,
		TokenMint:   lockMint,
		Amount:      493_000_000,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(493_000_000), lock.Amount)
	assert.Equal(t, now+10*86400, lock.UnlockTime)
	assert.Equal(t, now, lock.CreatedAt)
	assert.False(t, lock.Released)

	// Vault address re-derivable from the recorded tuple
	vault, err := DeriveVaultAddress(lockUser, lockMint, lock.LockID)
	require.NoError(t, err)
	assert.Equal(t, vault, lock.EscrowAddress)

	require.Len(t, wallet.calls, 1)
	assert.Equal(t, aiWallet, wallet.calls[0].From)
	assert.Equal(t, vault, wallet.calls[0].To)
	assert.Equal(t, uint64(493_000_000), wallet.calls[0].Amount)

	stored, err := store.GetByLockID(context.Background(), lock.LockID)
	require.NoError(t, err)
	assert.Equal(t, lock.EscrowAddress, stored.EscrowAddress)
}

func TestLock_CustomPeriod(t *testing.T) {
	store := memory.NewEscrowLockStore()
	const now = int64(1700000000)

	s := newTestLockService(&stubWallet{signature: "sig"}, store, now)
	lock, err := s.Lock(context.Background(), LockRequest{
		CopyTradeID: "trade-2",
		UserWallet:  lockUser,
		AIWallet:    aiWallet,
		TokenMint:   lockMint,
		Amount:      1,
		PeriodDays:  3,
	})
	require.NoError(t, err)

	assert.Equal(t, now+3*86400, lock.UnlockTime)
}

func TestLock_ZeroAmountRejected(t *testing.T) {
	wallet := &stubWallet{signature: "sig"}
	s := newTestLockService(wallet, memory.NewEscrowLockStore(), 1700000000)

	_, err := s.Lock(context.Background(), LockRequest{
		UserWallet: lockUser,
		AIWallet:   aiWallet,
		TokenMint:  lockMint,
		Amount:     0,
	})

	assert.ErrorIs(t, err, ErrNothingToLock)
	assert.Empty(t, wallet.calls, "no transfer may be attempted for zero proceeds")
}

func TestLock_TransferFailureRecordsNothing(t *testing.T) {
	store := memory.NewEscrowLockStore()
	wallet := &stubWallet{err: errors.New("signer unavailable")}

	s := newTestLockService(wallet, store, 1700000000)
	_, err := s.Lock(context.Background(), LockRequest{
		CopyTradeID: "trade-3",
		UserWallet:  lockUser,
		AIWallet:    aiWallet,
		TokenMint:   lockMint,
		Amount:      100,
	})
	require.Error(t, err)

	_, err = store.GetByCopyTradeID(context.Background(), "trade-3")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
