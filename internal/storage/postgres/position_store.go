package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Get retrieves a position. Returns ErrNotFound if not exists.
func (s *PositionStore) Get(ctx context.Context, wallet, mint string) (*domain.Position, error) {
	query := `
		SELECT wallet_address, token_mint, current_balance, total_cost_basis_usd,
		       weighted_avg_cost_usd, unrealized_pnl_usd, version, last_updated_at
		FROM positions
		WHERE wallet_address = $1 AND token_mint = $2
	`

	row := s.pool.QueryRow(ctx, query, wallet, mint)
	pos, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return pos, nil
}

// GetByWallet retrieves all open positions for a wallet.
func (s *PositionStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.Position, error) {
	query := `
		SELECT wallet_address, token_mint, current_balance, total_cost_basis_usd,
		       weighted_avg_cost_usd, unrealized_pnl_usd, version, last_updated_at
		FROM positions
		WHERE wallet_address = $1
		ORDER BY token_mint ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("get positions by wallet: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// GetAll retrieves every open position.
func (s *PositionStore) GetAll(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT wallet_address, token_mint, current_balance, total_cost_basis_usd,
		       weighted_avg_cost_usd, unrealized_pnl_usd, version, last_updated_at
		FROM positions
		ORDER BY wallet_address ASC, token_mint ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// Upsert writes a position with compare-and-write on version. A Version of 0
// inserts a fresh row at version 1; otherwise the update succeeds only if the
// stored version matches. The caller's Version is bumped on success.
func (s *PositionStore) Upsert(ctx context.Context, p *domain.Position) error {
	if p == nil || p.WalletAddress == "" || p.TokenMint == "" {
		return storage.ErrInvalidInput
	}

	if p.Version == 0 {
		query := `
			INSERT INTO positions (
				wallet_address, token_mint, current_balance, total_cost_basis_usd,
				weighted_avg_cost_usd, unrealized_pnl_usd, version, last_updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, 1, $7)
		`
		_, err := s.pool.Exec(ctx, query,
			p.WalletAddress, p.TokenMint, p.CurrentBalance, p.TotalCostBasisUsd,
			p.WeightedAvgCostUsd, p.UnrealizedPnlUsd, p.LastUpdatedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				// A concurrent writer created the row first.
				return storage.ErrVersionConflict
			}
			return fmt.Errorf("insert position: %w", err)
		}
		p.Version = 1
		return nil
	}

	query := `
		UPDATE positions
		SET current_balance = $3, total_cost_basis_usd = $4,
		    weighted_avg_cost_usd = $5, unrealized_pnl_usd = $6,
		    version = version + 1, last_updated_at = $7
		WHERE wallet_address = $1 AND token_mint = $2 AND version = $8
	`
	tag, err := s.pool.Exec(ctx, query,
		p.WalletAddress, p.TokenMint, p.CurrentBalance, p.TotalCostBasisUsd,
		p.WeightedAvgCostUsd, p.UnrealizedPnlUsd, p.LastUpdatedAt, p.Version,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrVersionConflict
	}
	p.Version++
	return nil
}

// Delete removes a position. Returns ErrNotFound if absent.
func (s *PositionStore) Delete(ctx context.Context, wallet, mint string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM positions WHERE wallet_address = $1 AND token_mint = $2`,
		wallet, mint,
	)
	if err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var pos domain.Position
	err := row.Scan(
		&pos.WalletAddress,
		&pos.TokenMint,
		&pos.CurrentBalance,
		&pos.TotalCostBasisUsd,
		&pos.WeightedAvgCostUsd,
		&pos.UnrealizedPnlUsd,
		&pos.Version,
		&pos.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

func scanPositions(rows pgx.Rows) ([]*domain.Position, error) {
	var positions []*domain.Position

	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions = append(positions, pos)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}

	return positions, nil
}
