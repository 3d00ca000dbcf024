package domain

// Position represents one wallet's holding of one token.
// Corresponds to positions table in PostgreSQL.
// Invariant: WeightedAvgCostUsd == TotalCostBasisUsd / CurrentBalance while
// CurrentBalance > 0. The row is deleted, not zeroed, on full liquidation.
type Position struct {
	WalletAddress      string  // tracked wallet
	TokenMint          string  // token mint address
	CurrentBalance     float64 // held amount in UI units, never negative
	TotalCostBasisUsd  float64 // cumulative USD cost of held units
	WeightedAvgCostUsd float64 // TotalCostBasisUsd / CurrentBalance
	UnrealizedPnlUsd   float64 // balance * price - cost basis, refreshed periodically
	Version            int64   // optimistic concurrency token for upserts
	LastUpdatedAt      int64   // Unix timestamp in milliseconds
}

// RealizedPnlEvent is an immutable record of a closed portion of a position.
// Append-only; never mutated after creation.
type RealizedPnlEvent struct {
	WalletAddress  string
	TokenMint      string
	TxSignature    string  // sale transaction signature
	QuantitySold   float64 // clamped to held balance at sale time
	SaleValueUsd   float64
	CostBasisUsd   float64 // QuantitySold * avg cost at time of sale
	RealizedPnlUsd float64 // SaleValueUsd - CostBasisUsd
	RoiPercentage  float64 // RealizedPnlUsd / CostBasisUsd * 100
	ClosedAt       int64   // Unix timestamp in milliseconds
}
