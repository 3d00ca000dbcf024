package stream

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"solana-wallet-pulse/internal/domain"
)

// Known DEX program IDs monitored by the dedicated program stream.
const (
	RaydiumAMMV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	PumpFun      = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	JupiterV6    = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
)

// DefaultDexPrograms lists the programs the DEX stream subscribes to.
var DefaultDexPrograms = []string{RaydiumAMMV4, PumpFun, JupiterV6}

// DexStreamID names the dedicated DEX program allocation.
const DexStreamID = "dex-programs"

// AllocationResult reports the outcome of wallet allocation. Callers are told
// the effective tracked count; excess wallets are dropped, never queued.
type AllocationResult struct {
	Allocations    []*domain.StreamAllocation
	Requested      int
	Allocated      int
	DroppedExcess  []string // wallets beyond total capacity
	DroppedInvalid []string // addresses that failed validation
}

// AllocateWallets partitions wallets into disjoint batches of at most
// maxAccountsPerStream, producing at most maxConcurrentStreams batches, plus
// one allocation for the DEX program subscription. Order is preserved;
// duplicates and invalid addresses are dropped up front.
func AllocateWallets(wallets []string, maxAccountsPerStream, maxConcurrentStreams int) (*AllocationResult, error) {
	if maxAccountsPerStream <= 0 || maxConcurrentStreams <= 0 {
		return nil, fmt.Errorf("invalid capacity: maxAccountsPerStream=%d maxConcurrentStreams=%d",
			maxAccountsPerStream, maxConcurrentStreams)
	}

	result := &AllocationResult{Requested: len(wallets)}

	seen := make(map[string]struct{}, len(wallets))
	valid := make([]string, 0, len(wallets))
	for _, w := range wallets {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if !IsWalletAddress(w) {
			result.DroppedInvalid = append(result.DroppedInvalid, w)
			continue
		}
		valid = append(valid, w)
	}

	capacity := maxAccountsPerStream * maxConcurrentStreams
	if len(valid) > capacity {
		result.DroppedExcess = valid[capacity:]
		valid = valid[:capacity]
	}
	result.Allocated = len(valid)

	for i := 0; i < len(valid); i += maxAccountsPerStream {
		end := i + maxAccountsPerStream
		if end > len(valid) {
			end = len(valid)
		}
		chunk := valid[i:end]
		result.Allocations = append(result.Allocations, &domain.StreamAllocation{
			StreamID:        fmt.Sprintf("wallets-%d", len(result.Allocations)),
			WalletAddresses: chunk,
			AccountCount:    len(chunk),
			State:           domain.StreamStateIdle,
		})
	}

	result.Allocations = append(result.Allocations, &domain.StreamAllocation{
		StreamID:         DexStreamID,
		ProgramAddresses: DefaultDexPrograms,
		AccountCount:     len(DefaultDexPrograms),
		State:            domain.StreamStateIdle,
	})

	return result, nil
}

// IsWalletAddress reports whether s is a plausible wallet address: base58,
// 32 bytes, and on the ed25519 curve (program-derived addresses are not).
func IsWalletAddress(s string) bool {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}
