package clickhouse

import (
	"context"
	"fmt"

	"solana-wallet-pulse/internal/domain"
)

// HistoryStore appends realized PNL events and snapshot rollups to
// append-only MergeTree tables. The latest-only primary stores stay in
// Postgres or memory; this is the time-travel record.
type HistoryStore struct {
	conn *Conn
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(conn *Conn) *HistoryStore {
	return &HistoryStore{conn: conn}
}

// AppendRealized records a realized PNL event.
func (s *HistoryStore) AppendRealized(ctx context.Context, e *domain.RealizedPnlEvent) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO realized_pnl_history (
			wallet_address, token_mint, tx_signature, quantity_sold, sale_value_usd,
			cost_basis_usd, realized_pnl_usd, roi_percentage, closed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		e.WalletAddress, e.TokenMint, e.TxSignature,
		e.QuantitySold, e.SaleValueUsd, e.CostBasisUsd,
		e.RealizedPnlUsd, e.RoiPercentage, uint64(e.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// AppendSnapshot records a snapshot rollup.
func (s *HistoryStore) AppendSnapshot(ctx context.Context, snap *domain.PnlSnapshot) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pnl_snapshot_history (
			wallet_address, timeframe, realized_pnl_usd, unrealized_pnl_usd, total_pnl_usd,
			roi_percentage, win_rate, total_trades, total_volume_usd, snapshot_timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		snap.WalletAddress, string(snap.Timeframe),
		snap.RealizedPnlUsd, snap.UnrealizedPnlUsd, snap.TotalPnlUsd,
		snap.RoiPercentage, snap.WinRate, uint32(snap.TotalTrades),
		snap.TotalVolumeUsd, uint64(snap.SnapshotTimestamp),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetRealizedByWallet retrieves a wallet's realized history at or after since,
// ordered by closed_at ASC.
func (s *HistoryStore) GetRealizedByWallet(ctx context.Context, wallet string, since int64) ([]*domain.RealizedPnlEvent, error) {
	query := `
		SELECT wallet_address, token_mint, tx_signature, quantity_sold, sale_value_usd,
		       cost_basis_usd, realized_pnl_usd, roi_percentage, closed_at
		FROM realized_pnl_history
		WHERE wallet_address = ? AND closed_at >= ?
		ORDER BY closed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, wallet, uint64(since))
	if err != nil {
		return nil, fmt.Errorf("query realized history: %w", err)
	}
	defer rows.Close()

	var events []*domain.RealizedPnlEvent
	for rows.Next() {
		var e domain.RealizedPnlEvent
		var closedAt uint64
		err := rows.Scan(
			&e.WalletAddress, &e.TokenMint, &e.TxSignature,
			&e.QuantitySold, &e.SaleValueUsd, &e.CostBasisUsd,
			&e.RealizedPnlUsd, &e.RoiPercentage, &closedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan realized history row: %w", err)
		}
		e.ClosedAt = int64(closedAt)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate realized history rows: %w", err)
	}

	return events, nil
}
