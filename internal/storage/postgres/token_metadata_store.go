package postgres

import (
	"context"
	"fmt"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/storage"
)

// TokenMetadataStore implements storage.TokenMetadataStore using PostgreSQL.
type TokenMetadataStore struct {
	pool *Pool
}

// NewTokenMetadataStore creates a new TokenMetadataStore.
func NewTokenMetadataStore(pool *Pool) *TokenMetadataStore {
	return &TokenMetadataStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)

// Upsert writes metadata for a mint.
func (s *TokenMetadataStore) Upsert(ctx context.Context, m *domain.TokenMetadata) error {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_metadata (mint, name, symbol, decimals, logo_uri, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (mint) DO UPDATE SET
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			decimals = EXCLUDED.decimals,
			logo_uri = EXCLUDED.logo_uri,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		m.Mint, m.Name, m.Symbol, m.Decimals, m.LogoURI, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert token metadata: %w", err)
	}
	return nil
}

// GetByMint retrieves metadata. Returns ErrNotFound if not exists.
func (s *TokenMetadataStore) GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	query := `
		SELECT mint, name, symbol, decimals, logo_uri, updated_at
		FROM token_metadata
		WHERE mint = $1
	`

	var m domain.TokenMetadata
	err := s.pool.QueryRow(ctx, query, mint).Scan(
		&m.Mint, &m.Name, &m.Symbol, &m.Decimals, &m.LogoURI, &m.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token metadata: %w", err)
	}
	return &m, nil
}
