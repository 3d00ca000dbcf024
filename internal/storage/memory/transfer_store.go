package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/storage"
)

// TransferStore is an in-memory implementation of storage.TransferStore.
type TransferStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[string]*domain.WalletTransfer // keyed by composite key
}

// NewTransferStore creates a new in-memory transfer store.
func NewTransferStore() *TransferStore {
	return &TransferStore{
		nextID: 1,
		data:   make(map[string]*domain.WalletTransfer),
	}
}

func transferKey(t *domain.WalletTransfer) string {
	return fmt.Sprintf("%s|%s|%s|%s", t.TxSignature, t.WalletAddress, t.TokenMint, t.Side)
}

// InsertBulk adds transfer rows, silently skipping duplicates so queue
// redelivery does not double-count legs.
func (s *TransferStore) InsertBulk(_ context.Context, transfers []*domain.WalletTransfer) error {
	if len(transfers) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range transfers {
		if t == nil || t.WalletAddress == "" || t.TokenMint == "" || t.TxSignature == "" {
			return storage.ErrInvalidInput
		}
		key := transferKey(t)
		if _, exists := s.data[key]; exists {
			continue
		}
		copy := *t
		copy.ID = s.nextID
		s.nextID++
		s.data[key] = &copy
	}
	return nil
}

// GetBuysSince retrieves buy-side transfers at or after since, ordered by
// timestamp ASC.
func (s *TransferStore) GetBuysSince(_ context.Context, since int64) ([]*domain.WalletTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WalletTransfer
	for _, t := range s.data {
		if t.Side == domain.TransferSideBuy && t.Timestamp >= since {
			copy := *t
			result = append(result, &copy)
		}
	}

	sortTransfers(result)
	return result, nil
}

// GetByWalletSince retrieves a wallet's transfers at or after since, ordered
// by timestamp ASC.
func (s *TransferStore) GetByWalletSince(_ context.Context, wallet string, since int64) ([]*domain.WalletTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WalletTransfer
	for _, t := range s.data {
		if t.WalletAddress == wallet && t.Timestamp >= since {
			copy := *t
			result = append(result, &copy)
		}
	}

	sortTransfers(result)
	return result, nil
}

func sortTransfers(transfers []*domain.WalletTransfer) {
	sort.Slice(transfers, func(i, j int) bool {
		if transfers[i].Timestamp != transfers[j].Timestamp {
			return transfers[i].Timestamp < transfers[j].Timestamp
		}
		return transfers[i].ID < transfers[j].ID
	})
}

var _ storage.TransferStore = (*TransferStore)(nil)
