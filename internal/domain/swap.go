package domain

// SwapEvent is a normalized DEX swap extracted from token balance deltas.
type SwapEvent struct {
	TxSignature   string
	WalletAddress string
	InputMint     string  // token whose balance strictly decreased
	OutputMint    string  // token whose balance strictly increased
	InputAmount   float64 // pre - post, UI units
	OutputAmount  float64 // post - pre, UI units
	DexProgram    string  // matched DEX program ID, empty if unknown
	Slot          int64
	Timestamp     int64 // Unix timestamp in milliseconds
}

// Transfer side constants.
const (
	TransferSideBuy  = "buy"
	TransferSideSell = "sell"
)

// WalletTransfer is one leg of a swap from the tracked wallet's point of view.
// Corresponds to wallet_transfers table in PostgreSQL; the gem finder scans
// recent buy-side rows.
type WalletTransfer struct {
	ID            int64 // BIGSERIAL primary key
	WalletAddress string
	TokenMint     string
	TxSignature   string
	Side          string  // "buy" | "sell"
	Amount        float64 // UI units
	PriceUsd      float64 // unit price at execution, 0 if unknown
	ValueUsd      float64 // Amount * PriceUsd
	Slot          int64
	Timestamp     int64 // Unix timestamp in milliseconds
}
