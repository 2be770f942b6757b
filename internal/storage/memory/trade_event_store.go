package memory

import (
	"context"
	"sort"
	"sync"

	"solana-copytrade/internal/domain"
	"solana-copytrade/internal/storage"
)

// TradeEventStore is an in-memory implementation of storage.TradeEventStore.
type TradeEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeEvent // keyed by signature
}

// NewTradeEventStore creates a new in-memory trade event archive.
func NewTradeEventStore() *TradeEventStore {
	return &TradeEventStore{
		data: make(map[string]*domain.TradeEvent),
	}
}

// Insert archives one event. Re-archiving the same signature is a no-op.
func (s *TradeEventStore) Insert(_ context.Context, e *domain.TradeEvent) error {
	if e == nil || e.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.Signature]; exists {
		return nil
	}
	copy := *e
	s.data[e.Signature] = &copy
	return nil
}

// GetByWallet retrieves archived events for a trader wallet, newest first.
func (s *TradeEventStore) GetByWallet(_ context.Context, wallet string, limit int) ([]*domain.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeEvent
	for _, e := range s.data {
		if e.WalletAddress == wallet {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp > result[j].Timestamp
	})
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// Len reports how many events are archived.
func (s *TradeEventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var _ storage.TradeEventStore = (*TradeEventStore)(nil)
