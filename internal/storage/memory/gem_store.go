package memory

import (
	"context"
	"sync"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/storage"
)

// GemStore is an in-memory implementation of storage.GemStore.
type GemStore struct {
	mu            sync.RWMutex
	discoveries   []*domain.GemCandidate
	lastDiscovery map[string]int64 // mint -> most recent discovery timestamp
}

// NewGemStore creates a new in-memory gem store.
func NewGemStore() *GemStore {
	return &GemStore{
		lastDiscovery: make(map[string]int64),
	}
}

// Insert adds a discovery.
func (s *GemStore) Insert(_ context.Context, g *domain.GemCandidate) error {
	if g == nil || g.TokenMint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *g
	copy.BuyerAddresses = append([]string(nil), g.BuyerAddresses...)
	if g.Metadata != nil {
		meta := *g.Metadata
		copy.Metadata = &meta
	}
	s.discoveries = append(s.discoveries, &copy)

	if g.DiscoveryTimestamp > s.lastDiscovery[g.TokenMint] {
		s.lastDiscovery[g.TokenMint] = g.DiscoveryTimestamp
	}
	return nil
}

// LastDiscovery returns the most recent discovery timestamp for a mint.
func (s *GemStore) LastDiscovery(_ context.Context, mint string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ts, ok := s.lastDiscovery[mint]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return ts, nil
}

var _ storage.GemStore = (*GemStore)(nil)
