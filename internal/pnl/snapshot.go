package pnl

import (
	"context"
	"log"

	"solana-wallet-pulse/internal/domain"
)

// recomputeSnapshots rebuilds every timeframe rollup for a wallet and emits
// the refreshed snapshots downstream.
func (e *Engine) recomputeSnapshots(ctx context.Context, wallet string) {
	for _, tf := range domain.AllTimeframes {
		snapshot, err := e.ComputeSnapshot(ctx, wallet, tf)
		if err != nil {
			log.Printf("[pnl] snapshot %s %s: %v", wallet, tf, err)
			continue
		}

		if err := e.snapshots.Upsert(ctx, snapshot); err != nil {
			log.Printf("[pnl] persist snapshot %s %s: %v", wallet, tf, err)
			continue
		}
		if err := e.history.AppendSnapshot(ctx, snapshot); err != nil {
			log.Printf("[pnl] history snapshot %s %s: %v", wallet, tf, err)
		}
		if e.metrics != nil {
			e.metrics.SnapshotRecomputes.Inc()
		}

		if err := e.emitter.EmitSnapshot(ctx, snapshot); err != nil {
			log.Printf("[pnl] emit snapshot %s %s: %v", wallet, tf, err)
		}
	}
}

// ComputeSnapshot rolls up realized events inside the timeframe window plus
// the wallet's current unrealized PNL. ROI is measured against the open cost
// basis; with nothing open it reports zero rather than dividing by zero.
func (e *Engine) ComputeSnapshot(ctx context.Context, wallet string, tf domain.Timeframe) (*domain.PnlSnapshot, error) {
	now := e.clock().UnixMilli()
	since := now - tf.DurationMs()

	events, err := e.realized.GetByWalletSince(ctx, wallet, since)
	if err != nil {
		return nil, err
	}

	var realizedPnl, volume float64
	wins := 0
	for _, ev := range events {
		realizedPnl += ev.RealizedPnlUsd
		volume += ev.SaleValueUsd
		if ev.RealizedPnlUsd > 0 {
			wins++
		}
	}

	positions, err := e.positions.GetByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}

	var unrealizedPnl, openCostBasis float64
	for _, pos := range positions {
		unrealizedPnl += pos.UnrealizedPnlUsd
		openCostBasis += pos.TotalCostBasisUsd
	}

	snapshot := &domain.PnlSnapshot{
		WalletAddress:     wallet,
		Timeframe:         tf,
		RealizedPnlUsd:    realizedPnl,
		UnrealizedPnlUsd:  unrealizedPnl,
		TotalPnlUsd:       realizedPnl + unrealizedPnl,
		TotalTrades:       len(events),
		TotalVolumeUsd:    volume,
		SnapshotTimestamp: now,
	}
	if len(events) > 0 {
		snapshot.WinRate = float64(wins) / float64(len(events))
	}
	if openCostBasis > 0 {
		snapshot.RoiPercentage = snapshot.TotalPnlUsd / openCostBasis * 100
	}
	return snapshot, nil
}

// Leaderboard returns the top wallets by total PNL for a timeframe.
func (e *Engine) Leaderboard(ctx context.Context, tf domain.Timeframe, limit int) ([]*domain.PnlSnapshot, error) {
	return e.snapshots.TopByTimeframe(ctx, tf, limit)
}
