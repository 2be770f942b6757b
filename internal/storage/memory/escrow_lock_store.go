package memory

import (
	"context"
	"sync"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/storage"
)

// EscrowLockStore is an in-memory implementation of storage.EscrowLockStore.
type EscrowLockStore struct {
	mu   sync.RWMutex
	data map[uint64]*domain.EscrowLock // keyed by lock_id
}

// NewEscrowLockStore creates a new in-memory escrow lock store.
func NewEscrowLockStore() *EscrowLockStore {
	return &EscrowLockStore{
		data: make(map[uint64]*domain.EscrowLock),
	}
}

// Insert adds a new lock. Returns ErrDuplicateKey if lock_id exists.
func (s *EscrowLockStore) Insert(_ context.Context, l *domain.EscrowLock) error {
	if l == nil || l.LockID == 0 || l.EscrowAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[l.LockID]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *l
	s.data[l.LockID] = &copy
	return nil
}

// GetByLockID retrieves a lock by its ID. Returns ErrNotFound if not exists.
func (s *EscrowLockStore) GetByLockID(_ context.Context, lockID uint64) (*domain.EscrowLock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, exists := s.data[lockID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *l
	return &copy, nil
}

// GetByCopyTradeID retrieves the lock backing a copy trade.
func (s *EscrowLockStore) GetByCopyTradeID(_ context.Context, copyTradeID string) (*domain.EscrowLock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.data {
		if l.CopyTradeID == copyTradeID {
			copy := *l
			return &copy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// MarkReleased records a completed release.
func (s *EscrowLockStore) MarkReleased(_ context.Context, lockID uint64, releasedAt int64, txSig string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.data[lockID]
	if !ok {
		return storage.ErrNotFound
	}
	l.Released = true
	l.ReleasedAt = releasedAt
	l.ReleaseTxSig = txSig
	return nil
}

var _ storage.EscrowLockStore = (*EscrowLockStore)(nil)
