package memory

import (
	"context"
	"sort"
	"sync"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/storage"
)

// RealizedPnlStore is an in-memory implementation of storage.RealizedPnlStore.
type RealizedPnlStore struct {
	mu     sync.RWMutex
	events []*domain.RealizedPnlEvent
}

// NewRealizedPnlStore creates a new in-memory realized PNL store.
func NewRealizedPnlStore() *RealizedPnlStore {
	return &RealizedPnlStore{}
}

// Append adds a realized PNL event.
func (s *RealizedPnlStore) Append(_ context.Context, e *domain.RealizedPnlEvent) error {
	if e == nil || e.WalletAddress == "" || e.TokenMint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *e
	s.events = append(s.events, &copy)
	return nil
}

// GetByWalletSince retrieves events closed at or after since, ordered by
// ClosedAt ASC.
func (s *RealizedPnlStore) GetByWalletSince(_ context.Context, wallet string, since int64) ([]*domain.RealizedPnlEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RealizedPnlEvent
	for _, e := range s.events {
		if e.WalletAddress == wallet && e.ClosedAt >= since {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ClosedAt < result[j].ClosedAt
	})

	return result, nil
}

var _ storage.RealizedPnlStore = (*RealizedPnlStore)(nil)
