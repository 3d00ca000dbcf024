package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/storage"
)

// TransferStore implements storage.TransferStore using PostgreSQL.
type TransferStore struct {
	pool *Pool
}

// NewTransferStore creates a new TransferStore.
func NewTransferStore(pool *Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransferStore = (*TransferStore)(nil)

// InsertBulk adds transfer rows in one transaction. Duplicates on
// (tx_signature, wallet_address, token_mint, side) are skipped, so queue
// redelivery does not double-count legs.
func (s *TransferStore) InsertBulk(ctx context.Context, transfers []*domain.WalletTransfer) error {
	if len(transfers) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO wallet_transfers (
			wallet_address, token_mint, tx_signature, side, amount, price_usd,
			value_usd, slot, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tx_signature, wallet_address, token_mint, side) DO NOTHING
	`

	for _, t := range transfers {
		if t == nil || t.WalletAddress == "" || t.TokenMint == "" || t.TxSignature == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			t.WalletAddress,
			t.TokenMint,
			t.TxSignature,
			t.Side,
			t.Amount,
			t.PriceUsd,
			t.ValueUsd,
			t.Slot,
			t.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert transfer in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBuysSince retrieves buy-side transfers at or after since, ordered by
// timestamp ASC.
func (s *TransferStore) GetBuysSince(ctx context.Context, since int64) ([]*domain.WalletTransfer, error) {
	query := `
		SELECT id, wallet_address, token_mint, tx_signature, side, amount, price_usd,
		       value_usd, slot, timestamp
		FROM wallet_transfers
		WHERE side = $1 AND timestamp >= $2
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, domain.TransferSideBuy, since)
	if err != nil {
		return nil, fmt.Errorf("get buys since: %w", err)
	}
	defer rows.Close()

	return scanTransfers(rows)
}

// GetByWalletSince retrieves a wallet's transfers at or after since, ordered
// by timestamp ASC.
func (s *TransferStore) GetByWalletSince(ctx context.Context, wallet string, since int64) ([]*domain.WalletTransfer, error) {
	query := `
		SELECT id, wallet_address, token_mint, tx_signature, side, amount, price_usd,
		       value_usd, slot, timestamp
		FROM wallet_transfers
		WHERE wallet_address = $1 AND timestamp >= $2
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet, since)
	if err != nil {
		return nil, fmt.Errorf("get transfers by wallet: %w", err)
	}
	defer rows.Close()

	return scanTransfers(rows)
}

func scanTransfers(rows pgx.Rows) ([]*domain.WalletTransfer, error) {
	var transfers []*domain.WalletTransfer

	for rows.Next() {
		var t domain.WalletTransfer
		err := rows.Scan(
			&t.ID,
			&t.WalletAddress,
			&t.TokenMint,
			&t.TxSignature,
			&t.Side,
			&t.Amount,
			&t.PriceUsd,
			&t.ValueUsd,
			&t.Slot,
			&t.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transfer row: %w", err)
		}
		transfers = append(transfers, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer rows: %w", err)
	}

	return transfers, nil
}
