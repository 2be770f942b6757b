package pnl

import (
	"context"
	"fmt"
	"log"
	"time"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/storage"
)

// rawUnitsPerToken converts LockedAmount raw units to whole tokens. SPL
// tokens default to 9 decimals and the quote service prices whole tokens.
const rawUnitsPerToken = 1e9

// Monitor computes the live view of a copy trade: both positions, their
// unrealized PnL and the user-vs-AI comparison.
type Monitor struct {
	trades storage.CopyTradeStore
	prices PriceSource
	logger *log.Logger

	now func() time.Time
}

// NewMonitor creates a Monitor.
func NewMonitor(trades storage.CopyTradeStore, prices PriceSource, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.New(log.Writer(), "[pnl] ", log.LstdFlags)
	}
	return &Monitor{
		trades: trades,
		prices: prices,
		logger: logger,
		now:    time.Now,
	}
}

// Report is one monitor read.
type Report struct {
	Status       string
	IsLocked     bool
	UserPosition domain.Position
	AIPosition   domain.Position
	Performance  domain.Performance
}

// Monitor fetches the trade, refreshes the token price and recomputes both
// positions. When the lock window has elapsed on an active trade, the read
// itself transitions the trade to completed; there is no scheduled job.
func (m *Monitor) Monitor(ctx context.Context, tradeID, userWallet string) (*Report, error) {
	trade, err := m.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	// A trade is only visible to its owner.
	if trade.UserWallet != userWallet {
		return nil, storage.ErrNotFound
	}

	now := m.now().Unix()
	if trade.Status == domain.StatusActive && trade.EndDate > 0 && now >= trade.EndDate {
		if err := m.trades.UpdateStatus(ctx, trade.ID, domain.StatusCompleted); err != nil {
			return nil, fmt.Errorf("complete trade %s: %w", trade.ID, err)
		}
		trade.Status = domain.StatusCompleted
		m.logger.Printf("trade %s lock window elapsed, completed", trade.ID)
	}

	// A degraded trade has no lock reference and no recorded mint; its
	// positions are reported flat at entry.
	currentPrice := trade.EntryPrice
	if trade.TokenMint != "" {
		currentPrice, err = m.prices.Price(ctx, trade.TokenMint)
		if err != nil {
			return nil, fmt.Errorf("price %s: %w", trade.TokenMint, err)
		}
	}

	aiAmount := float64(trade.LockedAmount) / rawUnitsPerToken
	userAmount := aiAmount
	if trade.Allocation > 0 {
		userAmount = aiAmount / trade.Allocation
	}

	report := &Report{
		Status:   trade.Status,
		IsLocked: trade.IsLocked(now),
		UserPosition: domain.Position{
			Symbol:       trade.TokenMint,
			Amount:       userAmount,
			EntryPrice:   trade.EntryPrice,
			CurrentPrice: currentPrice,
		},
		AIPosition: domain.Position{
			Symbol:       trade.TokenMint,
			Amount:       aiAmount,
			EntryPrice:   trade.EntryPrice,
			CurrentPrice: currentPrice,
		},
	}
	report.UserPosition.ComputePnL()
	report.AIPosition.ComputePnL()
	report.Performance = domain.Performance{
		UserPnL:    report.UserPosition.PnL,
		AIPnL:      report.AIPosition.PnL,
		Difference: report.UserPosition.PnL - report.AIPosition.PnL,
	}
	return report, nil
}
