package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/storage"
)

// RealizedPnlStore implements storage.RealizedPnlStore using PostgreSQL.
type RealizedPnlStore struct {
	pool *Pool
}

// NewRealizedPnlStore creates a new RealizedPnlStore.
func NewRealizedPnlStore(pool *Pool) *RealizedPnlStore {
	return &RealizedPnlStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RealizedPnlStore = (*RealizedPnlStore)(nil)

// Append adds a realized PNL event.
func (s *RealizedPnlStore) Append(ctx context.Context, e *domain.RealizedPnlEvent) error {
	if e == nil || e.WalletAddress == "" || e.TokenMint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO realized_pnl_events (
			wallet_address, token_mint, tx_signature, quantity_sold, sale_value_usd,
			cost_basis_usd, realized_pnl_usd, roi_percentage, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		e.WalletAddress,
		e.TokenMint,
		e.TxSignature,
		e.QuantitySold,
		e.SaleValueUsd,
		e.CostBasisUsd,
		e.RealizedPnlUsd,
		e.RoiPercentage,
		e.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("append realized pnl event: %w", err)
	}
	return nil
}

// GetByWalletSince retrieves events closed at or after since, ordered by
// closed_at ASC.
func (s *RealizedPnlStore) GetByWalletSince(ctx context.Context, wallet string, since int64) ([]*domain.RealizedPnlEvent, error) {
	query := `
		SELECT wallet_address, token_mint, tx_signature, quantity_sold, sale_value_usd,
		       cost_basis_usd, realized_pnl_usd, roi_percentage, closed_at
		FROM realized_pnl_events
		WHERE wallet_address = $1 AND closed_at >= $2
		ORDER BY closed_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet, since)
	if err != nil {
		return nil, fmt.Errorf("get realized pnl events: %w", err)
	}
	defer rows.Close()

	return scanRealizedPnlEvents(rows)
}

func scanRealizedPnlEvents(rows pgx.Rows) ([]*domain.RealizedPnlEvent, error) {
	var events []*domain.RealizedPnlEvent

	for rows.Next() {
		var e domain.RealizedPnlEvent
		err := rows.Scan(
			&e.WalletAddress,
			&e.TokenMint,
			&e.TxSignature,
			&e.QuantitySold,
			&e.SaleValueUsd,
			&e.CostBasisUsd,
			&e.RealizedPnlUsd,
			&e.RoiPercentage,
			&e.ClosedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan realized pnl row: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate realized pnl rows: %w", err)
	}

	return events, nil
}
