package memory

import (
	"context"
	"sync"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/storage"
)

// TokenMetadataStore is an in-memory implementation of storage.TokenMetadataStore.
type TokenMetadataStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenMetadata // keyed by mint
}

// NewTokenMetadataStore creates a new in-memory token metadata store.
func NewTokenMetadataStore() *TokenMetadataStore {
	return &TokenMetadataStore{
		data: make(map[string]*domain.TokenMetadata),
	}
}

// Upsert writes metadata for a mint.
func (s *TokenMetadataStore) Upsert(_ context.Context, m *domain.TokenMetadata) error {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *m
	s.data[m.Mint] = &copy
	return nil
}

// GetByMint retrieves metadata. Returns ErrNotFound if not exists.
func (s *TokenMetadataStore) GetByMint(_ context.Context, mint string) (*domain.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}

	copy := *m
	return &copy, nil
}

var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)
