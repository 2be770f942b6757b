package escrow

import (
	"context"
	"fmt"
	"log"
	"time"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/storage"
)

// DefaultLockPeriodDays is the lock window applied when a request does not
// specify one.
const DefaultLockPeriodDays = 10

// LockService moves measured trade proceeds into a derived vault for a
// fixed period.
type LockService struct {
	wallet TokenWallet
	store  storage.EscrowLockStore
	logger *log.Logger

	now func() time.Time
}

// NewLockService creates a LockService.
func NewLockService(wallet TokenWallet, store storage.EscrowLockStore, logger *log.Logger) *LockService {
	if logger == nil {
		logger = log.New(log.Writer(), "[escrow] ", log.LstdFlags)
	}
	return &LockService{
		wallet: wallet,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// LockRequest describes one escrow lock.
type LockRequest struct {
	CopyTradeID string
	UserWallet  string
	AIWallet    string // source of funds
	TokenMint   string
	Amount      uint64 // measured proceeds, raw units
	PeriodDays  int    // 0 means DefaultLockPeriodDays
}

// Lock derives the vault, transfers exactly req.Amount raw units from the
// custodial wallet into it and records the lock. The unlock time counts
// from lock creation, not from trade time.
func (s *LockService) Lock(ctx context.Context, req LockRequest) (*domain.EscrowLock, error) {
	if req.Amount == 0 {
		return nil, ErrNothingToLock
	}

	days := req.PeriodDays
	if days == 0 {
		days = DefaultLockPeriodDays
	}

	lockID := NextLockID()
	vault, err := DeriveVaultAddress(req.UserWallet, req.TokenMint, lockID)
	if err != nil {
		return nil, fmt.Errorf("derive vault: %w", err)
	}

	if _, err := s.wallet.Transfer(ctx, TransferRequest{
		From:      req.AIWallet,
		To:        vault,
		TokenMint: req.TokenMint,
		Amount:    req.Amount,
	}); err != nil {
		return nil, fmt.Errorf("fund vault %s: %w", vault, err)
	}

	now := s.now().Unix()
	lock := &domain.EscrowLock{
		LockID:        lockID,
		CopyTradeID:   req.CopyTradeID,
		UserWallet:    req.UserWallet,
		EscrowAddress: vault,
		TokenMint:     req.TokenMint,
		Amount:        req.Amount,
		UnlockTime:    now + int64(days)*86400,
		CreatedAt:     now,
	}
	if err := s.store.Insert(ctx, lock); err != nil {
		// Funds are in the vault; the record must not be lost silently.
		return nil, fmt.Errorf("record lock %d (vault %s funded): %w", lockID, vault, err)
	}

	s.logger.Printf("locked %d raw units of %s in %s until %d (lock %d)",
		req.Amount, req.TokenMint, vault, lock.UnlockTime, lockID)
	return lock, nil
}
