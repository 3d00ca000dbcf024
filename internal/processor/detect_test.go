package processor

import (
	"testing"

	"solana-wallet-pulse/internal/solana"
)

const (
	walletA = "walletA"
	walletB = "walletB"
	mintIn  = "mintIn"
	mintOut = "mintOut"
)

func balance(index int, mint, owner string, amount float64) solana.TokenBalance {
	return solana.TokenBalance{
		AccountIndex: index,
		Mint:         mint,
		Owner:        owner,
		Amount:       solana.UITokenAmount{UIAmount: amount},
	}
}

func swapTx(pre, post []solana.TokenBalance) *solana.ParsedTransaction {
	return &solana.ParsedTransaction{
		Signature: "sig1",
		Slot:      100,
		BlockTime: 1_700_000_000,
		Meta: &solana.TransactionMeta{
			PreTokenBalances:  pre,
			PostTokenBalances: post,
		},
	}
}

func TestDetectSwap_BasicSwap(t *testing.T) {
	tx := swapTx(
		[]solana.TokenBalance{
			balance(0, mintIn, walletA, 1000),
			balance(1, mintOut, walletA, 0),
		},
		[]solana.TokenBalance{
			balance(0, mintIn, walletA, 400),
			balance(1, mintOut, walletA, 250),
		},
	)

	swap, ok := DetectSwap(tx, walletA, "dex1")
	if !ok {
		t.Fatal("expected swap detection")
	}
	if swap.InputMint != mintIn || swap.InputAmount != 600 {
		t.Errorf("input: got %s/%f, want %s/600", swap.InputMint, swap.InputAmount, mintIn)
	}
	if swap.OutputMint != mintOut || swap.OutputAmount != 250 {
		t.Errorf("output: got %s/%f, want %s/250", swap.OutputMint, swap.OutputAmount, mintOut)
	}
	if swap.DexProgram != "dex1" {
		t.Errorf("dex: got %s, want dex1", swap.DexProgram)
	}
	if swap.Timestamp != 1_700_000_000_000 {
		t.Errorf("timestamp: got %d, want block time in ms", swap.Timestamp)
	}
}

func TestDetectSwap_IgnoresOtherOwners(t *testing.T) {
	tx := swapTx(
		[]solana.TokenBalance{
			balance(0, mintIn, walletB, 1000),
			balance(1, mintIn, walletA, 500),
			balance(2, mintOut, walletA, 0),
		},
		[]solana.TokenBalance{
			balance(0, mintIn, walletB, 100),
			balance(1, mintIn, walletA, 300),
			balance(2, mintOut, walletA, 50),
		},
	)

	swap, ok := DetectSwap(tx, walletA, "")
	if !ok {
		t.Fatal("expected swap detection")
	}
	if swap.InputAmount != 200 {
		t.Errorf("input amount: got %f, want 200 (walletA delta only)", swap.InputAmount)
	}
}

func TestDetectSwap_FirstDecreaseWins(t *testing.T) {
	// Two decreasing balances: the first in list order is the input.
	tx := swapTx(
		[]solana.TokenBalance{
			balance(0, "mintX", walletA, 100),
			balance(1, "mintY", walletA, 100),
			balance(2, mintOut, walletA, 0),
		},
		[]solana.TokenBalance{
			balance(0, "mintX", walletA, 90),
			balance(1, "mintY", walletA, 80),
			balance(2, mintOut, walletA, 5),
		},
	)

	swap, ok := DetectSwap(tx, walletA, "")
	if !ok {
		t.Fatal("expected swap detection")
	}
	if swap.InputMint != "mintX" {
		t.Errorf("input mint: got %s, want mintX", swap.InputMint)
	}
}

func TestDetectSwap_EmptiedAccountFallback(t *testing.T) {
	// The input account is closed by the swap and has no post entry.
	tx := swapTx(
		[]solana.TokenBalance{
			balance(0, mintIn, walletA, 750),
		},
		[]solana.TokenBalance{
			balance(1, mintOut, walletA, 30),
		},
	)

	swap, ok := DetectSwap(tx, walletA, "")
	if !ok {
		t.Fatal("expected swap detection via emptied-account fallback")
	}
	if swap.InputMint != mintIn || swap.InputAmount != 750 {
		t.Errorf("input: got %s/%f, want %s/750", swap.InputMint, swap.InputAmount, mintIn)
	}
}

func TestDetectSwap_NoSwapWhenOnlyOneSide(t *testing.T) {
	// Pure receive: balance only increases.
	tx := swapTx(
		[]solana.TokenBalance{
			balance(0, mintOut, walletA, 10),
		},
		[]solana.TokenBalance{
			balance(0, mintOut, walletA, 60),
		},
	)

	if _, ok := DetectSwap(tx, walletA, ""); ok {
		t.Error("pure receive must not register as a swap")
	}
}

func TestDetectSwap_FailedTransactionSkipped(t *testing.T) {
	tx := swapTx(
		[]solana.TokenBalance{balance(0, mintIn, walletA, 100)},
		[]solana.TokenBalance{
			balance(0, mintIn, walletA, 50),
			balance(1, mintOut, walletA, 10),
		},
	)
	tx.Meta.Err = map[string]interface{}{"InstructionError": []interface{}{}}

	if _, ok := DetectSwap(tx, walletA, ""); ok {
		t.Error("failed transaction must not register as a swap")
	}
}

func TestDetectSwap_NilMeta(t *testing.T) {
	tx := &solana.ParsedTransaction{Signature: "sig1"}
	if _, ok := DetectSwap(tx, walletA, ""); ok {
		t.Error("transaction without meta must not register as a swap")
	}
	if _, ok := DetectSwap(nil, walletA, ""); ok {
		t.Error("nil transaction must not register as a swap")
	}
}
