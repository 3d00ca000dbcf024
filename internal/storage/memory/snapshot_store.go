package memory

import (
	"context"
	"sort"
	"sync"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PnlSnapshot // keyed by wallet|timeframe
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]*domain.PnlSnapshot),
	}
}

func snapshotKey(wallet string, tf domain.Timeframe) string {
	return wallet + "|" + string(tf)
}

// Upsert writes a snapshot, superseding any prior (wallet, timeframe) value.
func (s *SnapshotStore) Upsert(_ context.Context, snap *domain.PnlSnapshot) error {
	if snap == nil || snap.WalletAddress == "" || snap.Timeframe == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *snap
	s.data[snapshotKey(snap.WalletAddress, snap.Timeframe)] = &copy
	return nil
}

// Get retrieves the latest snapshot. Returns ErrNotFound if not exists.
func (s *SnapshotStore) Get(_ context.Context, wallet string, tf domain.Timeframe) (*domain.PnlSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[snapshotKey(wallet, tf)]
	if !ok {
		return nil, storage.ErrNotFound
	}

	copy := *snap
	return &copy, nil
}

// TopByTimeframe retrieves up to limit snapshots ordered by total PNL desc.
func (s *SnapshotStore) TopByTimeframe(_ context.Context, tf domain.Timeframe, limit int) ([]*domain.PnlSnapshot, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PnlSnapshot
	for _, snap := range s.data {
		if snap.Timeframe == tf {
			copy := *snap
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalPnlUsd != result[j].TotalPnlUsd {
			return result[i].TotalPnlUsd > result[j].TotalPnlUsd
		}
		return result[i].WalletAddress < result[j].WalletAddress
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
