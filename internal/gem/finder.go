// Package gem discovers early token buy signals from aggregate tracked-wallet
// activity.
package gem

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/notify"
	"solana-wallet-pulse/internal/observability"
	"solana-wallet-pulse/internal/storage"
)

// Base mints are the quote side of most swaps and never gems themselves.
var baseMints = map[string]struct{}{
	"So11111111111111111111111111111111111111112":  {}, // WSOL
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": {}, // USDC
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": {}, // USDT
}

// Config holds discovery thresholds and timing.
type Config struct {
	// ScanInterval is the discovery sweep period.
	ScanInterval time.Duration
	// LookbackWindow bounds how far back buy activity is considered.
	LookbackWindow time.Duration
	// MinDistinctBuyers is the minimum tracked wallets buying a token.
	MinDistinctBuyers int
	// MinVolumeUsd is the minimum aggregate buy volume.
	MinVolumeUsd float64
	// EmitThreshold is the minimum confidence score for a discovery.
	EmitThreshold float64
	// DedupWindow suppresses re-discovery of a recently flagged token.
	DedupWindow time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ScanInterval:      30 * time.Second,
		LookbackWindow:    24 * time.Hour,
		MinDistinctBuyers: 2,
		MinVolumeUsd:      5_000,
		EmitThreshold:     0.6,
		DedupWindow:       24 * time.Hour,
	}
}

// Finder scans recent buy-side transfers for tokens that several tracked
// wallets are accumulating.
type Finder struct {
	transfers storage.TransferStore
	gems      storage.GemStore
	tokens    storage.TokenMetadataStore
	snapshots storage.SnapshotStore
	emitter   notify.Emitter
	metrics   *observability.Metrics
	config    Config

	clock func() time.Time
}

// Options wires a Finder.
type Options struct {
	Transfers storage.TransferStore
	Gems      storage.GemStore
	Tokens    storage.TokenMetadataStore
	Snapshots storage.SnapshotStore
	Emitter   notify.Emitter
	Metrics   *observability.Metrics
	Config    Config
}

// NewFinder creates a gem finder.
func NewFinder(opts Options) *Finder {
	cfg := opts.Config
	def := DefaultConfig()
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = def.ScanInterval
	}
	if cfg.LookbackWindow <= 0 {
		cfg.LookbackWindow = def.LookbackWindow
	}
	if cfg.MinDistinctBuyers <= 0 {
		cfg.MinDistinctBuyers = def.MinDistinctBuyers
	}
	if cfg.MinVolumeUsd <= 0 {
		cfg.MinVolumeUsd = def.MinVolumeUsd
	}
	if cfg.EmitThreshold <= 0 {
		cfg.EmitThreshold = def.EmitThreshold
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = def.DedupWindow
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = notify.NopEmitter{}
	}
	return &Finder{
		transfers: opts.Transfers,
		gems:      opts.Gems,
		tokens:    opts.Tokens,
		snapshots: opts.Snapshots,
		emitter:   emitter,
		metrics:   opts.Metrics,
		config:    cfg,
		clock:     time.Now,
	}
}

// Run scans on a fixed interval until the context is cancelled.
func (f *Finder) Run(ctx context.Context) {
	ticker := time.NewTicker(f.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.Scan(ctx); err != nil {
				log.Printf("[gem] scan: %v", err)
			}
		}
	}
}

// tokenActivity aggregates one token's buy-side activity in the window.
type tokenActivity struct {
	mint      string
	buyers    map[string]struct{}
	volumeUsd float64
	firstBuy  int64
	lastBuy   int64
}

// Scan aggregates the lookback window's buys per token, applies thresholds
// and dedup, scores survivors, and emits qualifying discoveries.
func (f *Finder) Scan(ctx context.Context) error {
	start := f.clock()
	now := start.UnixMilli()
	since := now - f.config.LookbackWindow.Milliseconds()

	buys, err := f.transfers.GetBuysSince(ctx, since)
	if err != nil {
		return err
	}

	byMint := make(map[string]*tokenActivity)
	for _, t := range buys {
		if _, base := baseMints[t.TokenMint]; base {
			continue
		}
		act, ok := byMint[t.TokenMint]
		if !ok {
			act = &tokenActivity{
				mint:     t.TokenMint,
				buyers:   make(map[string]struct{}),
				firstBuy: t.Timestamp,
				lastBuy:  t.Timestamp,
			}
			byMint[t.TokenMint] = act
		}
		act.buyers[t.WalletAddress] = struct{}{}
		act.volumeUsd += t.ValueUsd
		if t.Timestamp < act.firstBuy {
			act.firstBuy = t.Timestamp
		}
		if t.Timestamp > act.lastBuy {
			act.lastBuy = t.Timestamp
		}
	}

	for _, act := range byMint {
		if len(act.buyers) < f.config.MinDistinctBuyers || act.volumeUsd < f.config.MinVolumeUsd {
			continue
		}
		if f.recentlyDiscovered(ctx, act.mint, now) {
			if f.metrics != nil {
				f.metrics.GemDedupSuppressed.Inc()
			}
			continue
		}
		f.evaluate(ctx, act, now)
	}

	if f.metrics != nil {
		f.metrics.GemScanLatency.Observe(time.Since(start).Seconds())
	}
	return nil
}

// evaluate scores a threshold-passing token and emits it if confident enough.
func (f *Finder) evaluate(ctx context.Context, act *tokenActivity, now int64) {
	meta := f.lookupMetadata(ctx, act.mint)
	if meta != nil && (suspiciousText(meta.Name) || suspiciousText(meta.Symbol)) {
		return
	}

	score := ConfidenceScore(
		len(act.buyers),
		act.volumeUsd,
		f.buyerReputation(ctx, act.buyers),
		timingConcentration(act, f.config.LookbackWindow),
		metadataQuality(meta),
	)
	if score < f.config.EmitThreshold {
		return
	}

	buyers := make([]string, 0, len(act.buyers))
	for w := range act.buyers {
		buyers = append(buyers, w)
	}
	sort.Strings(buyers)

	candidate := &domain.GemCandidate{
		TokenMint:          act.mint,
		DiscoveryTimestamp: now,
		BuyerAddresses:     buyers,
		TotalVolumeUsd:     act.volumeUsd,
		ConfidenceScore:    score,
		Metadata:           meta,
	}

	if err := f.gems.Insert(ctx, candidate); err != nil {
		log.Printf("[gem] persist discovery %s: %v", act.mint, err)
		return
	}
	if err := f.emitter.EmitGem(ctx, candidate); err != nil {
		log.Printf("[gem] emit discovery %s: %v", act.mint, err)
	}
	if f.metrics != nil {
		f.metrics.GemsDiscovered.Inc()
	}
	log.Printf("[gem] discovered %s: %d buyers, $%.0f volume, confidence %.2f",
		act.mint, len(buyers), act.volumeUsd, score)
}

// recentlyDiscovered reports whether the mint was flagged inside the dedup
// window. A store error counts as discovered so a flaky store cannot cause a
// duplicate flood.
func (f *Finder) recentlyDiscovered(ctx context.Context, mint string, now int64) bool {
	last, err := f.gems.LastDiscovery(ctx, mint)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		log.Printf("[gem] dedup lookup %s: %v", mint, err)
		return true
	}
	return now-last < f.config.DedupWindow.Milliseconds()
}

// buyerReputation is the fraction of buyers with a positive 7D PNL snapshot.
// Wallets without a snapshot yet count as neutral, not negative.
func (f *Finder) buyerReputation(ctx context.Context, buyers map[string]struct{}) float64 {
	if len(buyers) == 0 {
		return 0
	}
	profitable := 0
	known := 0
	for wallet := range buyers {
		snap, err := f.snapshots.Get(ctx, wallet, domain.Timeframe7D)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			log.Printf("[gem] reputation lookup %s: %v", wallet, err)
			continue
		}
		known++
		if snap.TotalPnlUsd > 0 {
			profitable++
		}
	}
	if known == 0 {
		return 0.5
	}
	return float64(profitable) / float64(known)
}

func (f *Finder) lookupMetadata(ctx context.Context, mint string) *domain.TokenMetadata {
	meta, err := f.tokens.GetByMint(ctx, mint)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("[gem] metadata lookup %s: %v", mint, err)
		}
		return nil
	}
	return meta
}

// timingConcentration scores how tightly the buys cluster in time: all buys
// in one burst score 1, buys spread across the whole window score near 0.
func timingConcentration(act *tokenActivity, window time.Duration) float64 {
	windowMs := window.Milliseconds()
	if windowMs <= 0 {
		return 0
	}
	spread := act.lastBuy - act.firstBuy
	return clamp01(1 - float64(spread)/float64(windowMs))
}
