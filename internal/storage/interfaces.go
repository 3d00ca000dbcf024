package storage

import (
	"context"

	"solana-wallet-pulse/internal/domain"
)

// PositionStore provides access to positions storage.
// Mutations race between a buy and a sell for the same (wallet, mint) pair;
// Upsert uses the position Version for compare-and-write serialization.
type PositionStore interface {
	// Get retrieves a position. Returns ErrNotFound if not exists.
	Get(ctx context.Context, wallet, mint string) (*domain.Position, error)

	// GetByWallet retrieves all open positions for a wallet.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.Position, error)

	// GetAll retrieves every open position across wallets.
	GetAll(ctx context.Context) ([]*domain.Position, error)

	// Upsert writes a position. When p.Version > 0 the write succeeds only if
	// the stored version matches; ErrVersionConflict otherwise. The stored
	// version is incremented on success.
	Upsert(ctx context.Context, p *domain.Position) error

	// Delete removes a fully liquidated position. Returns ErrNotFound if absent.
	Delete(ctx context.Context, wallet, mint string) error
}

// RealizedPnlStore provides append-only access to realized PNL events.
type RealizedPnlStore interface {
	// Append adds a realized PNL event. Events are immutable.
	Append(ctx context.Context, e *domain.RealizedPnlEvent) error

	// GetByWalletSince retrieves events for a wallet closed at or after since (ms).
	GetByWalletSince(ctx context.Context, wallet string, since int64) ([]*domain.RealizedPnlEvent, error)
}

// SnapshotStore provides access to PNL snapshots, latest-only per
// (wallet, timeframe).
type SnapshotStore interface {
	// Upsert writes a snapshot, superseding any prior (wallet, timeframe) row.
	Upsert(ctx context.Context, s *domain.PnlSnapshot) error

	// Get retrieves the latest snapshot. Returns ErrNotFound if not exists.
	Get(ctx context.Context, wallet string, tf domain.Timeframe) (*domain.PnlSnapshot, error)

	// TopByTimeframe retrieves up to limit snapshots ordered by total PNL desc.
	TopByTimeframe(ctx context.Context, tf domain.Timeframe, limit int) ([]*domain.PnlSnapshot, error)
}

// TransferStore provides access to wallet_transfers storage.
type TransferStore interface {
	// InsertBulk adds transfer rows; duplicates on (signature, wallet, mint, side)
	// are skipped, not errors, since queue redelivery replays messages.
	InsertBulk(ctx context.Context, transfers []*domain.WalletTransfer) error

	// GetBuysSince retrieves buy-side transfers at or after since (ms),
	// ordered by timestamp ASC.
	GetBuysSince(ctx context.Context, since int64) ([]*domain.WalletTransfer, error)

	// GetByWalletSince retrieves a wallet's transfers at or after since (ms).
	GetByWalletSince(ctx context.Context, wallet string, since int64) ([]*domain.WalletTransfer, error)
}

// GemStore provides access to gem_candidates storage.
type GemStore interface {
	// Insert adds a discovery.
	Insert(ctx context.Context, g *domain.GemCandidate) error

	// LastDiscovery returns the most recent discovery timestamp (ms) for a
	// mint, or ErrNotFound if never discovered.
	LastDiscovery(ctx context.Context, mint string) (int64, error)
}

// TokenMetadataStore provides access to token metadata.
type TokenMetadataStore interface {
	// Upsert writes metadata for a mint.
	Upsert(ctx context.Context, m *domain.TokenMetadata) error

	// GetByMint retrieves metadata. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}

// QueueStore is the durable substrate under the event bus: FIFO lists keyed
// by queue name with priority-aware draining.
type QueueStore interface {
	// Push appends a message to the queue.
	Push(ctx context.Context, queue string, msg *domain.QueueMessage) error

	// PopBatch removes and returns up to n messages, priority desc then FIFO.
	PopBatch(ctx context.Context, queue string, n int) ([]*domain.QueueMessage, error)

	// Depth returns the number of pending messages.
	Depth(ctx context.Context, queue string) (int, error)

	// Clear removes all pending messages from the queue.
	Clear(ctx context.Context, queue string) error
}
