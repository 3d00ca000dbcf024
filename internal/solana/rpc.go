package solana

import (
	"context"
	"errors"
)

// ErrTransactionNotFound is returned when the node has no record of a signature.
var ErrTransactionNotFound = errors.New("transaction not found")

// RPCClient defines the Solana RPC HTTP interface used by the processor.
type RPCClient interface {
	// GetParsedTransaction retrieves a transaction with token balance metadata.
	// Returns ErrTransactionNotFound if the node does not know the signature.
	GetParsedTransaction(ctx context.Context, signature string) (*ParsedTransaction, error)
}

// ParsedTransaction is a transaction with the metadata needed for
// balance-delta swap analysis.
type ParsedTransaction struct {
	Signature string
	Slot      int64
	BlockTime int64 // Unix timestamp (seconds), 0 if unavailable
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains execution metadata.
type TransactionMeta struct {
	Err               interface{}
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	LogMessages       []string
}

// TransactionMessage contains the parsed message.
type TransactionMessage struct {
	AccountKeys []string
}

// TokenBalance is one SPL token account balance at a transaction boundary.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       UITokenAmount
}

// UITokenAmount mirrors the RPC uiTokenAmount shape.
type UITokenAmount struct {
	Amount   string  // raw integer amount as string
	Decimals int     // mint decimals
	UIAmount float64 // human units
}
