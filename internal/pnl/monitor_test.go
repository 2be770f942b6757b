package pnl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/storage"
	"solana-copytrade/internal/storage/memory"
)

// stubPrices serves fixed prices per mint.
type stubPrices struct {
	prices map[string]float64
	calls  int
}

func (s *stubPrices) Price(_ context.Context, mint string) (float64, error) {
	s.calls++
	return s.prices[mint], nil
}

const (
	userWallet   = "UserWa11et"
	traderWallet = "TraderWa11et"
	tokenMint    = "TokenMint"
)

func seedTrade(t *testing.T, store storage.CopyTradeStore, endDate int64) *domain.CopyTrade {
	t.Helper()
	trade := &domain.CopyTrade{
		ID:             "trade-1",
		UserWallet:     userWallet,
		TraderWallet:   traderWallet,
		Allocation:     0.5,
		MaxSlippage:    1.0,
		TokenMint:      tokenMint,
		EntryPrice:     0.005,
		LockedAmount:   493_000_000,
		LockID:         42,
		EscrowAddress:  "Vau1tAddr",
		LockPeriodDays: 10,
		StartDate:      endDate - 10*86400,
		EndDate:        endDate,
		Status:         domain.StatusActive,
	}
	require.NoError(t, store.Insert(context.Background(), trade))
	return trade
}

func newTestMonitor(store storage.CopyTradeStore, prices PriceSource, now int64) *Monitor {
	m := NewMonitor(store, prices, nil)
	m.now = func() time.Time { return time.Unix(now, 0) }
	return m
}

func TestMonitor_ComputesBothPositions(t *testing.T) {
	store := memory.NewCopyTradeStore()
	const endDate = int64(1700864000)
	seedTrade(t, store, endDate)

	prices := &stubPrices{prices: map[string]float64{tokenMint: 0.006}}
	m := newTestMonitor(store, prices, endDate-3600)

	report, err := m.Monitor(context.Background(), "trade-1", userWallet)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusActive, report.Status)
	assert.True(t, report.IsLocked)

	// AI side holds 0.493 tokens; the user traded at 1/allocation scale.
	assert.InDelta(t, 0.493, report.AIPosition.Amount, 1e-9)
	assert.InDelta(t, 0.986, report.UserPosition.Amount, 1e-9)

	assert.InDelta(t, 0.001*0.493, report.AIPosition.PnL, 1e-12)
	assert.InDelta(t, 0.001*0.986, report.UserPosition.PnL, 1e-12)
	assert.InDelta(t, 20.0, report.AIPosition.PnLPercentage, 1e-9)

	assert.InDelta(t, report.UserPosition.PnL-report.AIPosition.PnL, report.Performance.Difference, 1e-12)
}

func TestMonitor_CompletesExpiredTradeOnRead(t *testing.T) {
	store := memory.NewCopyTradeStore()
	const endDate = int64(1700864000)
	seedTrade(t, store, endDate)

	prices := &stubPrices{prices: map[string]float64{tokenMint: 0.005}}
	m := newTestMonitor(store, prices, endDate+1)

	report, err := m.Monitor(context.Background(), "trade-1", userWallet)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, report.Status)
	assert.False(t, report.IsLocked)

	stored, err := store.GetByID(context.Background(), "trade-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status, "transition must be persisted")
}

func TestMonitor_CompletedTradeStaysCompleted(t *testing.T) {
	store := memory.NewCopyTradeStore()
	const endDate = int64(1700864000)
	trade := seedTrade(t, store, endDate)
	require.NoError(t, store.UpdateStatus(context.Background(), trade.ID, domain.StatusCompleted))

	prices := &stubPrices{prices: map[string]float64{tokenMint: 0.005}}
	m := newTestMonitor(store, prices, endDate+100)

	report, err := m.Monitor(context.Background(), "trade-1", userWallet)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, report.Status)
}

func TestMonitor_DegradedTradeReportsFlat(t *testing.T) {
	store := memory.NewCopyTradeStore()
	trade := &domain.CopyTrade{
		ID:           "trade-2",
		UserWallet:   userWallet,
		TraderWallet: traderWallet,
		Allocation:   0.5,
		EntryPrice:   0.005,
		Status:       domain.StatusActive,
	}
	require.NoError(t, store.Insert(context.Background(), trade))

	prices := &stubPrices{prices: map[string]float64{}}
	m := newTestMonitor(store, prices, 1700864000)

	report, err := m.Monitor(context.Background(), "trade-2", userWallet)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusActive, report.Status, "no lock window, nothing to expire")
	assert.Zero(t, report.AIPosition.PnL)
	assert.Zero(t, prices.calls, "no mint recorded, no quote to fetch")
}

func TestMonitor_ForeignTradeNotVisible(t *testing.T) {
	store := memory.NewCopyTradeStore()
	seedTrade(t, store, 1700864000)

	m := newTestMonitor(store, &stubPrices{prices: map[string]float64{}}, 1700000000)

	_, err := m.Monitor(context.Background(), "trade-1", "SomeoneE1se")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMonitor_UnknownTrade(t *testing.T) {
	m := newTestMonitor(memory.NewCopyTradeStore(), &stubPrices{}, 1700000000)

	_, err := m.Monitor(context.Background(), "missing", userWallet)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
