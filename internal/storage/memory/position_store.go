// Package memory provides in-memory store implementations for tests and
// single-process runs.
package memory

import (
	"context"
	"sync"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position // keyed by wallet|mint
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.Position),
	}
}

func positionKey(wallet, mint string) string {
	return wallet + "|" + mint
}

// Get retrieves a position. Returns ErrNotFound if not exists.
func (s *PositionStore) Get(_ context.Context, wallet, mint string) (*domain.Position, error) {
	if wallet == "" || mint == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.data[positionKey(wallet, mint)]
	if !ok {
		return nil, storage.ErrNotFound
	}

	copy := *pos
	return &copy, nil
}

// GetByWallet retrieves all open positions for a wallet.
func (s *PositionStore) GetByWallet(_ context.Context, wallet string) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, pos := range s.data {
		if pos.WalletAddress == wallet {
			copy := *pos
			result = append(result, &copy)
		}
	}
	return result, nil
}

// GetAll retrieves every open position.
func (s *PositionStore) GetAll(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Position, 0, len(s.data))
	for _, pos := range s.data {
		copy := *pos
		result = append(result, &copy)
	}
	return result, nil
}

// Upsert writes a position with compare-and-write on Version. The caller's
// struct is updated with the new version on success.
func (s *PositionStore) Upsert(_ context.Context, p *domain.Position) error {
	if p == nil || p.WalletAddress == "" || p.TokenMint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := positionKey(p.WalletAddress, p.TokenMint)
	existing, ok := s.data[key]
	if ok {
		if p.Version != existing.Version {
			return storage.ErrVersionConflict
		}
	} else if p.Version != 0 {
		return storage.ErrVersionConflict
	}

	copy := *p
	copy.Version = p.Version + 1
	s.data[key] = &copy
	p.Version = copy.Version
	return nil
}

// Delete removes a position. Returns ErrNotFound if absent.
func (s *PositionStore) Delete(_ context.Context, wallet, mint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := positionKey(wallet, mint)
	if _, ok := s.data[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.data, key)
	return nil
}

var _ storage.PositionStore = (*PositionStore)(nil)
