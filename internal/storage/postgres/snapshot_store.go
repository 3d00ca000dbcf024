package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Upsert writes a snapshot, superseding any prior (wallet, timeframe) row.
func (s *SnapshotStore) Upsert(ctx context.Context, snap *domain.PnlSnapshot) error {
	if snap == nil || snap.WalletAddress == "" || snap.Timeframe == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pnl_snapshots (
			wallet_address, timeframe, realized_pnl_usd, unrealized_pnl_usd, total_pnl_usd,
			roi_percentage, win_rate, total_trades, total_volume_usd, snapshot_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (wallet_address, timeframe) DO UPDATE SET
			realized_pnl_usd = EXCLUDED.realized_pnl_usd,
			unrealized_pnl_usd = EXCLUDED.unrealized_pnl_usd,
			total_pnl_usd = EXCLUDED.total_pnl_usd,
			roi_percentage = EXCLUDED.roi_percentage,
			win_rate = EXCLUDED.win_rate,
			total_trades = EXCLUDED.total_trades,
			total_volume_usd = EXCLUDED.total_volume_usd,
			snapshot_timestamp = EXCLUDED.snapshot_timestamp
	`

	_, err := s.pool.Exec(ctx, query,
		snap.WalletAddress,
		string(snap.Timeframe),
		snap.RealizedPnlUsd,
		snap.UnrealizedPnlUsd,
		snap.TotalPnlUsd,
		snap.RoiPercentage,
		snap.WinRate,
		snap.TotalTrades,
		snap.TotalVolumeUsd,
		snap.SnapshotTimestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// Get retrieves the latest snapshot. Returns ErrNotFound if not exists.
func (s *SnapshotStore) Get(ctx context.Context, wallet string, tf domain.Timeframe) (*domain.PnlSnapshot, error) {
	query := `
		SELECT wallet_address, timeframe, realized_pnl_usd, unrealized_pnl_usd, total_pnl_usd,
		       roi_percentage, win_rate, total_trades, total_volume_usd, snapshot_timestamp
		FROM pnl_snapshots
		WHERE wallet_address = $1 AND timeframe = $2
	`

	row := s.pool.QueryRow(ctx, query, wallet, string(tf))
	snap, err := scanSnapshot(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return snap, nil
}

// TopByTimeframe retrieves up to limit snapshots ordered by total PNL desc.
func (s *SnapshotStore) TopByTimeframe(ctx context.Context, tf domain.Timeframe, limit int) ([]*domain.PnlSnapshot, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT wallet_address, timeframe, realized_pnl_usd, unrealized_pnl_usd, total_pnl_usd,
		       roi_percentage, win_rate, total_trades, total_volume_usd, snapshot_timestamp
		FROM pnl_snapshots
		WHERE timeframe = $1
		ORDER BY total_pnl_usd DESC, wallet_address ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, string(tf), limit)
	if err != nil {
		return nil, fmt.Errorf("get top snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.PnlSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return snaps, nil
}

func scanSnapshot(row pgx.Row) (*domain.PnlSnapshot, error) {
	var snap domain.PnlSnapshot
	var timeframe string
	err := row.Scan(
		&snap.WalletAddress,
		&timeframe,
		&snap.RealizedPnlUsd,
		&snap.UnrealizedPnlUsd,
		&snap.TotalPnlUsd,
		&snap.RoiPercentage,
		&snap.WinRate,
		&snap.TotalTrades,
		&snap.TotalVolumeUsd,
		&snap.SnapshotTimestamp,
	)
	if err != nil {
		return nil, err
	}
	snap.Timeframe = domain.Timeframe(timeframe)
	return &snap, nil
}
