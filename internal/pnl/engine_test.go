package pnl

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/pricing"
	"solana-wallet-pulse/internal/storage"
	"solana-wallet-pulse/internal/storage/memory"
)

const (
	testWallet = "wallet1"
	testMint   = "mintA"
	usdcMint   = "usdc"
)

func newTestEngine(t *testing.T, prices map[string]float64) (*Engine, *memory.PositionStore, *memory.RealizedPnlStore, *memory.SnapshotStore) {
	t.Helper()

	positions := memory.NewPositionStore()
	realized := memory.NewRealizedPnlStore()
	snapshots := memory.NewSnapshotStore()

	engine := NewEngine(Options{
		Positions: positions,
		Realized:  realized,
		Snapshots: snapshots,
		Prices:    pricing.NewStaticOracle(prices),
	})
	engine.clock = func() time.Time { return time.UnixMilli(1_700_000_000_000) }

	return engine, positions, realized, snapshots
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEngine_BuyCreatesPosition(t *testing.T) {
	engine, positions, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if err := engine.Buy(ctx, testWallet, testMint, 1000, 0.5, 1000); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	pos, err := positions.Get(ctx, testWallet, testMint)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !almostEqual(pos.CurrentBalance, 1000) {
		t.Errorf("balance: got %f, want 1000", pos.CurrentBalance)
	}
	if !almostEqual(pos.TotalCostBasisUsd, 500) {
		t.Errorf("cost basis: got %f, want 500", pos.TotalCostBasisUsd)
	}
	if !almostEqual(pos.WeightedAvgCostUsd, 0.5) {
		t.Errorf("avg cost: got %f, want 0.5", pos.WeightedAvgCostUsd)
	}
}

func TestEngine_BuyAveragesCost(t *testing.T) {
	engine, positions, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if err := engine.Buy(ctx, testWallet, testMint, 100, 1.0, 1000); err != nil {
		t.Fatalf("first Buy failed: %v", err)
	}
	if err := engine.Buy(ctx, testWallet, testMint, 300, 2.0, 2000); err != nil {
		t.Fatalf("second Buy failed: %v", err)
	}

	pos, err := positions.Get(ctx, testWallet, testMint)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	// 100*1 + 300*2 = 700 over 400 units
	if !almostEqual(pos.WeightedAvgCostUsd, 1.75) {
		t.Errorf("avg cost: got %f, want 1.75", pos.WeightedAvgCostUsd)
	}
	if !almostEqual(pos.CurrentBalance, 400) {
		t.Errorf("balance: got %f, want 400", pos.CurrentBalance)
	}
}

func TestEngine_SellRealizesAgainstAvgCost(t *testing.T) {
	engine, positions, realized, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if err := engine.Buy(ctx, testWallet, testMint, 1000, 0.5, 1000); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	// Sell half at $1: realized = 500 - 500*0.5 = 250
	if err := engine.Sell(ctx, testWallet, testMint, 500, 500, "sig1", 2000); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	pos, err := positions.Get(ctx, testWallet, testMint)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !almostEqual(pos.CurrentBalance, 500) {
		t.Errorf("balance: got %f, want 500", pos.CurrentBalance)
	}
	// Average cost never moves on a sell.
	if !almostEqual(pos.WeightedAvgCostUsd, 0.5) {
		t.Errorf("avg cost: got %f, want 0.5", pos.WeightedAvgCostUsd)
	}
	if !almostEqual(pos.TotalCostBasisUsd, 250) {
		t.Errorf("cost basis: got %f, want 250", pos.TotalCostBasisUsd)
	}

	events, err := realized.GetByWalletSince(ctx, testWallet, 0)
	if err != nil {
		t.Fatalf("GetByWalletSince failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events: got %d, want 1", len(events))
	}
	if !almostEqual(events[0].RealizedPnlUsd, 250) {
		t.Errorf("realized pnl: got %f, want 250", events[0].RealizedPnlUsd)
	}
	if !almostEqual(events[0].RoiPercentage, 100) {
		t.Errorf("roi: got %f, want 100", events[0].RoiPercentage)
	}
}

func TestEngine_SellClampsToBalance(t *testing.T) {
	engine, positions, realized, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if err := engine.Buy(ctx, testWallet, testMint, 100, 1.0, 1000); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	// Request 200 at $2/unit; only 100 held, so realize on 100.
	if err := engine.Sell(ctx, testWallet, testMint, 200, 400, "sig1", 2000); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	events, err := realized.GetByWalletSince(ctx, testWallet, 0)
	if err != nil {
		t.Fatalf("GetByWalletSince failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events: got %d, want 1", len(events))
	}
	if !almostEqual(events[0].QuantitySold, 100) {
		t.Errorf("quantity sold: got %f, want 100", events[0].QuantitySold)
	}
	// Sale value prorated: 400 * (100/200) = 200, realized = 200 - 100 = 100
	if !almostEqual(events[0].SaleValueUsd, 200) {
		t.Errorf("sale value: got %f, want 200", events[0].SaleValueUsd)
	}
	if !almostEqual(events[0].RealizedPnlUsd, 100) {
		t.Errorf("realized pnl: got %f, want 100", events[0].RealizedPnlUsd)
	}

	// Full liquidation removes the row.
	if _, err := positions.Get(ctx, testWallet, testMint); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected position deleted, got %v", err)
	}
}

func TestEngine_SellWithoutPositionIsNoop(t *testing.T) {
	engine, _, realized, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if err := engine.Sell(ctx, testWallet, testMint, 100, 100, "sig1", 1000); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	events, err := realized.GetByWalletSince(ctx, testWallet, 0)
	if err != nil {
		t.Fatalf("GetByWalletSince failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events: got %d, want 0", len(events))
	}
}

func TestEngine_FullSellDeletesPosition(t *testing.T) {
	engine, positions, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if err := engine.Buy(ctx, testWallet, testMint, 100, 1.0, 1000); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if err := engine.Sell(ctx, testWallet, testMint, 100, 150, "sig1", 2000); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	if _, err := positions.Get(ctx, testWallet, testMint); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after full sell, got %v", err)
	}
}

func TestEngine_ApplySwapBothLegs(t *testing.T) {
	// Wallet swaps 500 USDC for 1000 mintA; USDC at $1, mintA unquoted so the
	// sale value anchors the buy cost.
	engine, positions, realized, _ := newTestEngine(t, map[string]float64{usdcMint: 1.0})
	ctx := context.Background()

	if err := engine.Buy(ctx, testWallet, usdcMint, 500, 1.0, 500); err != nil {
		t.Fatalf("seed Buy failed: %v", err)
	}

	swap := &domain.SwapEvent{
		TxSignature:   "sig1",
		WalletAddress: testWallet,
		InputMint:     usdcMint,
		OutputMint:    testMint,
		InputAmount:   500,
		OutputAmount:  1000,
		Timestamp:     2000,
	}
	if err := engine.ApplySwap(ctx, swap); err != nil {
		t.Fatalf("ApplySwap failed: %v", err)
	}

	// USDC fully sold at cost: zero realized PNL, position gone.
	events, err := realized.GetByWalletSince(ctx, testWallet, 0)
	if err != nil {
		t.Fatalf("GetByWalletSince failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events: got %d, want 1", len(events))
	}
	if !almostEqual(events[0].RealizedPnlUsd, 0) {
		t.Errorf("realized pnl: got %f, want 0", events[0].RealizedPnlUsd)
	}

	pos, err := positions.Get(ctx, testWallet, testMint)
	if err != nil {
		t.Fatalf("Get output position failed: %v", err)
	}
	if !almostEqual(pos.CurrentBalance, 1000) {
		t.Errorf("output balance: got %f, want 1000", pos.CurrentBalance)
	}
	if !almostEqual(pos.TotalCostBasisUsd, 500) {
		t.Errorf("output cost basis: got %f, want 500", pos.TotalCostBasisUsd)
	}
}

func TestEngine_RecomputeUnrealized(t *testing.T) {
	engine, positions, _, _ := newTestEngine(t, map[string]float64{testMint: 2.0})
	ctx := context.Background()

	if err := engine.Buy(ctx, testWallet, testMint, 100, 1.0, 1000); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	engine.RecomputeUnrealized(ctx)

	pos, err := positions.Get(ctx, testWallet, testMint)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	// 100 * $2 - $100 basis = $100 unrealized
	if !almostEqual(pos.UnrealizedPnlUsd, 100) {
		t.Errorf("unrealized pnl: got %f, want 100", pos.UnrealizedPnlUsd)
	}
}

func TestEngine_RecomputeSkipsMissingPrice(t *testing.T) {
	engine, positions, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if err := engine.Buy(ctx, testWallet, testMint, 100, 1.0, 1000); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	engine.RecomputeUnrealized(ctx)

	pos, err := positions.Get(ctx, testWallet, testMint)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !almostEqual(pos.UnrealizedPnlUsd, 0) {
		t.Errorf("unrealized pnl should stay 0 on price miss, got %f", pos.UnrealizedPnlUsd)
	}
}

func TestEngine_ComputeSnapshot(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, map[string]float64{testMint: 2.0})
	ctx := context.Background()
	now := engine.clock().UnixMilli()

	// Two wins, one loss inside the 1H window.
	if err := engine.Buy(ctx, testWallet, testMint, 300, 1.0, now-3000); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if err := engine.Sell(ctx, testWallet, testMint, 100, 150, "sig1", now-2000); err != nil {
		t.Fatalf("Sell 1 failed: %v", err)
	}
	if err := engine.Sell(ctx, testWallet, testMint, 100, 120, "sig2", now-1500); err != nil {
		t.Fatalf("Sell 2 failed: %v", err)
	}
	if err := engine.Sell(ctx, testWallet, testMint, 50, 40, "sig3", now-1000); err != nil {
		t.Fatalf("Sell 3 failed: %v", err)
	}

	engine.RecomputeUnrealized(ctx)

	snap, err := engine.ComputeSnapshot(ctx, testWallet, domain.Timeframe1H)
	if err != nil {
		t.Fatalf("ComputeSnapshot failed: %v", err)
	}

	// Realized: (150-100) + (120-100) + (40-50) = 60
	if !almostEqual(snap.RealizedPnlUsd, 60) {
		t.Errorf("realized: got %f, want 60", snap.RealizedPnlUsd)
	}
	if snap.TotalTrades != 3 {
		t.Errorf("trades: got %d, want 3", snap.TotalTrades)
	}
	if !almostEqual(snap.WinRate, 2.0/3.0) {
		t.Errorf("win rate: got %f, want %f", snap.WinRate, 2.0/3.0)
	}
	if !almostEqual(snap.TotalVolumeUsd, 310) {
		t.Errorf("volume: got %f, want 310", snap.TotalVolumeUsd)
	}
	// 50 units left at $1 basis, priced $2: unrealized 50.
	if !almostEqual(snap.UnrealizedPnlUsd, 50) {
		t.Errorf("unrealized: got %f, want 50", snap.UnrealizedPnlUsd)
	}
	if !almostEqual(snap.TotalPnlUsd, 110) {
		t.Errorf("total: got %f, want 110", snap.TotalPnlUsd)
	}
	// ROI = 110 / 50 open basis * 100
	if !almostEqual(snap.RoiPercentage, 220) {
		t.Errorf("roi: got %f, want 220", snap.RoiPercentage)
	}
}

func TestEngine_SnapshotZeroRoiWithNothingOpen(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, nil)
	ctx := context.Background()
	now := engine.clock().UnixMilli()

	if err := engine.Buy(ctx, testWallet, testMint, 100, 1.0, now-2000); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if err := engine.Sell(ctx, testWallet, testMint, 100, 150, "sig1", now-1000); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	snap, err := engine.ComputeSnapshot(ctx, testWallet, domain.Timeframe1H)
	if err != nil {
		t.Fatalf("ComputeSnapshot failed: %v", err)
	}
	if !almostEqual(snap.RoiPercentage, 0) {
		t.Errorf("roi with nothing open: got %f, want 0", snap.RoiPercentage)
	}
	if !almostEqual(snap.RealizedPnlUsd, 50) {
		t.Errorf("realized: got %f, want 50", snap.RealizedPnlUsd)
	}
}

func TestEngine_SnapshotWindowExcludesOldEvents(t *testing.T) {
	engine, _, realized, _ := newTestEngine(t, nil)
	ctx := context.Background()
	now := engine.clock().UnixMilli()

	old := &domain.RealizedPnlEvent{
		WalletAddress:  testWallet,
		TokenMint:      testMint,
		TxSignature:    "old",
		QuantitySold:   10,
		SaleValueUsd:   100,
		CostBasisUsd:   50,
		RealizedPnlUsd: 50,
		ClosedAt:       now - 2*domain.Timeframe1H.DurationMs(),
	}
	if err := realized.Append(ctx, old); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	snap, err := engine.ComputeSnapshot(ctx, testWallet, domain.Timeframe1H)
	if err != nil {
		t.Fatalf("ComputeSnapshot failed: %v", err)
	}
	if snap.TotalTrades != 0 {
		t.Errorf("1H trades: got %d, want 0", snap.TotalTrades)
	}

	snap, err = engine.ComputeSnapshot(ctx, testWallet, domain.Timeframe1D)
	if err != nil {
		t.Fatalf("ComputeSnapshot 1D failed: %v", err)
	}
	if snap.TotalTrades != 1 {
		t.Errorf("1D trades: got %d, want 1", snap.TotalTrades)
	}
}
