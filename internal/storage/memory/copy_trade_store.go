package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/storage"
)

// CopyTradeStore is an in-memory implementation of storage.CopyTradeStore.
type CopyTradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CopyTrade // keyed by id
}

// NewCopyTradeStore creates a new in-memory copy trade store.
func NewCopyTradeStore() *CopyTradeStore {
	return &CopyTradeStore{
		data: make(map[string]*domain.CopyTrade),
	}
}

// Insert adds a new copy trade. Returns ErrDuplicateKey when an active
// record already exists for the (userWallet, traderWallet) pair.
func (s *CopyTradeStore) Insert(_ context.Context, t *domain.CopyTrade) error {
	if t == nil || t.ID == "" || t.UserWallet == "" || t.TraderWallet == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ID]; exists {
		return storage.ErrDuplicateKey
	}
	for _, existing := range s.data {
		if existing.UserWallet == t.UserWallet &&
			existing.TraderWallet == t.TraderWallet &&
			existing.Status == domain.StatusActive &&
			t.Status == domain.StatusActive {
			return storage.ErrDuplicateKey
		}
	}

	copy := *t
	s.data[t.ID] = &copy
	return nil
}

// GetByID retrieves a copy trade by its ID. Returns ErrNotFound if not exists.
func (s *CopyTradeStore) GetByID(_ context.Context, id string) (*domain.CopyTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *t
	return &copy, nil
}

// GetActiveByPair retrieves the active copy trade for a (user, trader) pair.
func (s *CopyTradeStore) GetActiveByPair(_ context.Context, userWallet, traderWallet string) (*domain.CopyTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.data {
		if t.UserWallet == userWallet && t.TraderWallet == traderWallet && t.Status == domain.StatusActive {
			copy := *t
			return &copy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetByUserWallet retrieves all copy trades for a user, newest first.
func (s *CopyTradeStore) GetByUserWallet(_ context.Context, userWallet string) ([]*domain.CopyTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CopyTrade
	for _, t := range s.data {
		if t.UserWallet == userWallet {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt > result[j].CreatedAt
	})
	return result, nil
}

// UpdateExecution records the execution and escrow fields after a confirmed
// mirror.
func (s *CopyTradeStore) UpdateExecution(_ context.Context, t *domain.CopyTrade) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[t.ID]
	if !ok {
		return storage.ErrNotFound
	}

	existing.UserTradeSignature = t.UserTradeSignature
	existing.AITradeSignature = t.AITradeSignature
	existing.TokenMint = t.TokenMint
	existing.EntryPrice = t.EntryPrice
	existing.LockedAmount = t.LockedAmount
	existing.LockID = t.LockID
	existing.EscrowAddress = t.EscrowAddress
	existing.LockPeriodDays = t.LockPeriodDays
	existing.StartDate = t.StartDate
	existing.EndDate = t.EndDate
	existing.UpdatedAt = time.Now().Unix()
	return nil
}

// UpdateStatus transitions the trade's lifecycle status.
func (s *CopyTradeStore) UpdateStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now().Unix()
	return nil
}

var _ storage.CopyTradeStore = (*CopyTradeStore)(nil)
