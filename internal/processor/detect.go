package processor

import (
	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/solana"
)

// DetectSwap analyzes token balance deltas for the matched wallet. The first
// wallet-owned balance that strictly decreased identifies the input side, the
// first that strictly increased identifies the output side, in original list
// order. Multi-leg swaps are not decomposed beyond this first match. Returns
// false when no valid (input, output) pair with positive deltas exists.
func DetectSwap(tx *solana.ParsedTransaction, wallet, dexProgram string) (*domain.SwapEvent, bool) {
	if tx == nil || tx.Meta == nil || tx.Meta.Err != nil {
		return nil, false
	}

	pre := indexBalances(tx.Meta.PreTokenBalances, wallet)

	var (
		inputMint, outputMint     string
		inputAmount, outputAmount float64
	)

	for _, post := range tx.Meta.PostTokenBalances {
		if post.Owner != wallet {
			continue
		}
		before := pre[post.AccountIndex]
		after := post.Amount.UIAmount
		switch {
		case inputMint == "" && after < before:
			inputMint = post.Mint
			inputAmount = before - after
		case outputMint == "" && after > before:
			outputMint = post.Mint
			outputAmount = after - before
		}
		if inputMint != "" && outputMint != "" {
			break
		}
	}

	// A token the wallet held before but not after leaves no post entry.
	if inputMint == "" {
		for _, b := range tx.Meta.PreTokenBalances {
			if b.Owner != wallet || b.Amount.UIAmount <= 0 {
				continue
			}
			if !hasPostBalance(tx.Meta.PostTokenBalances, b.AccountIndex) {
				inputMint = b.Mint
				inputAmount = b.Amount.UIAmount
				break
			}
		}
	}

	if inputMint == "" || outputMint == "" || inputAmount <= 0 || outputAmount <= 0 {
		return nil, false
	}

	blockTimeMs := tx.BlockTime * 1000

	return &domain.SwapEvent{
		TxSignature:   tx.Signature,
		WalletAddress: wallet,
		InputMint:     inputMint,
		OutputMint:    outputMint,
		InputAmount:   inputAmount,
		OutputAmount:  outputAmount,
		DexProgram:    dexProgram,
		Slot:          tx.Slot,
		Timestamp:     blockTimeMs,
	}, true
}

// indexBalances maps accountIndex to pre-transaction UI amount for the wallet.
func indexBalances(balances []solana.TokenBalance, wallet string) map[int]float64 {
	out := make(map[int]float64, len(balances))
	for _, b := range balances {
		if b.Owner == wallet {
			out[b.AccountIndex] = b.Amount.UIAmount
		}
	}
	return out
}

func hasPostBalance(balances []solana.TokenBalance, accountIndex int) bool {
	for _, b := range balances {
		if b.AccountIndex == accountIndex {
			return true
		}
	}
	return false
}
