package memory

import (
	"context"
	"errors"
	"testing"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/storage"
)

func TestPositionStore_UpsertAssignsVersion(t *testing.T) {
	s := NewPositionStore()
	ctx := context.Background()

	p := &domain.Position{WalletAddress: "w1", TokenMint: "m1", CurrentBalance: 10}
	if err := s.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if p.Version != 1 {
		t.Errorf("version after create: got %d, want 1", p.Version)
	}

	p.CurrentBalance = 20
	if err := s.Upsert(ctx, p); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	if p.Version != 2 {
		t.Errorf("version after update: got %d, want 2", p.Version)
	}
}

func TestPositionStore_StaleVersionConflicts(t *testing.T) {
	s := NewPositionStore()
	ctx := context.Background()

	p := &domain.Position{WalletAddress: "w1", TokenMint: "m1"}
	if err := s.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	stale := &domain.Position{WalletAddress: "w1", TokenMint: "m1", Version: 0}
	if err := s.Upsert(ctx, stale); !errors.Is(err, storage.ErrVersionConflict) {
		t.Errorf("stale write: got %v, want ErrVersionConflict", err)
	}

	// Creating with a nonzero version is also a conflict.
	ghost := &domain.Position{WalletAddress: "w2", TokenMint: "m1", Version: 5}
	if err := s.Upsert(ctx, ghost); !errors.Is(err, storage.ErrVersionConflict) {
		t.Errorf("phantom version: got %v, want ErrVersionConflict", err)
	}
}

func TestPositionStore_GetReturnsCopy(t *testing.T) {
	s := NewPositionStore()
	ctx := context.Background()

	p := &domain.Position{WalletAddress: "w1", TokenMint: "m1", CurrentBalance: 10}
	if err := s.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := s.Get(ctx, "w1", "m1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got.CurrentBalance = 999

	again, err := s.Get(ctx, "w1", "m1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if again.CurrentBalance != 10 {
		t.Errorf("stored value mutated through returned copy: %f", again.CurrentBalance)
	}
}

func TestPositionStore_GetMissing(t *testing.T) {
	s := NewPositionStore()
	if _, err := s.Get(context.Background(), "w1", "m1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestPositionStore_Delete(t *testing.T) {
	s := NewPositionStore()
	ctx := context.Background()

	p := &domain.Position{WalletAddress: "w1", TokenMint: "m1"}
	if err := s.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := s.Delete(ctx, "w1", "m1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "w1", "m1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("double delete: got %v, want ErrNotFound", err)
	}
}

func TestPositionStore_GetByWallet(t *testing.T) {
	s := NewPositionStore()
	ctx := context.Background()

	for _, mint := range []string{"m1", "m2"} {
		p := &domain.Position{WalletAddress: "w1", TokenMint: mint}
		if err := s.Upsert(ctx, p); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}
	other := &domain.Position{WalletAddress: "w2", TokenMint: "m1"}
	if err := s.Upsert(ctx, other); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := s.GetByWallet(ctx, "w1")
	if err != nil {
		t.Fatalf("GetByWallet failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("positions: got %d, want 2", len(got))
	}
}
