package postgres

import (
	"context"
	"fmt"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/storage"
)

// GemStore implements storage.GemStore using PostgreSQL.
type GemStore struct {
	pool *Pool
}

// NewGemStore creates a new GemStore.
func NewGemStore(pool *Pool) *GemStore {
	return &GemStore{pool: pool}
}

// Compile-time interface check.
var _ storage.GemStore = (*GemStore)(nil)

// Insert adds a discovery.
func (s *GemStore) Insert(ctx context.Context, g *domain.GemCandidate) error {
	if g == nil || g.TokenMint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO gem_candidates (
			token_mint, discovery_timestamp, buyer_addresses, total_volume_usd, confidence_score
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		g.TokenMint,
		g.DiscoveryTimestamp,
		g.BuyerAddresses,
		g.TotalVolumeUsd,
		g.ConfidenceScore,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert gem candidate: %w", err)
	}
	return nil
}

// LastDiscovery returns the most recent discovery timestamp for a mint.
func (s *GemStore) LastDiscovery(ctx context.Context, mint string) (int64, error) {
	query := `
		SELECT discovery_timestamp
		FROM gem_candidates
		WHERE token_mint = $1
		ORDER BY discovery_timestamp DESC
		LIMIT 1
	`

	var ts int64
	err := s.pool.QueryRow(ctx, query, mint).Scan(&ts)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("get last discovery: %w", err)
	}
	return ts, nil
}
