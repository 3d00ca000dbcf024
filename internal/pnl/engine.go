// Package pnl maintains cost-basis-weighted positions and realized/unrealized
// profit accounting for tracked wallets.
package pnl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"solana-wallet-pulse/internal/bus"
	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/notify"
	"solana-wallet-pulse/internal/observability"
	"solana-wallet-pulse/internal/pricing"
	"solana-wallet-pulse/internal/storage"
)

// Config holds PNL engine timing parameters.
type Config struct {
	// RecomputeInterval is the full unrealized-PNL sweep period.
	RecomputeInterval time.Duration
	// ConsumeBatchSize bounds each drain of the pnl-updates queue.
	ConsumeBatchSize int
	// UpsertRetries bounds compare-and-write retry on version conflicts.
	UpsertRetries int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		RecomputeInterval: 60 * time.Second,
		ConsumeBatchSize:  50,
		UpsertRetries:     3,
	}
}

// HistoryLog receives append-only copies of realized events and snapshots.
// The primary stores stay latest-only; history is a separate concern.
type HistoryLog interface {
	AppendRealized(ctx context.Context, e *domain.RealizedPnlEvent) error
	AppendSnapshot(ctx context.Context, s *domain.PnlSnapshot) error
}

// NopHistory discards history writes.
type NopHistory struct{}

func (NopHistory) AppendRealized(context.Context, *domain.RealizedPnlEvent) error { return nil }
func (NopHistory) AppendSnapshot(context.Context, *domain.PnlSnapshot) error      { return nil }

// Engine applies swap events to positions and recomputes snapshots.
type Engine struct {
	positions storage.PositionStore
	realized  storage.RealizedPnlStore
	snapshots storage.SnapshotStore
	history   HistoryLog
	prices    pricing.PriceOracle
	bus       *bus.Bus
	emitter   notify.Emitter
	metrics   *observability.Metrics
	config    Config

	locks *keyedMutex
	clock func() time.Time
}

// Options wires an Engine.
type Options struct {
	Positions storage.PositionStore
	Realized  storage.RealizedPnlStore
	Snapshots storage.SnapshotStore
	History   HistoryLog
	Prices    pricing.PriceOracle
	Bus       *bus.Bus
	Emitter   notify.Emitter
	Metrics   *observability.Metrics
	Config    Config
}

// NewEngine creates a PNL engine.
func NewEngine(opts Options) *Engine {
	cfg := opts.Config
	if cfg.RecomputeInterval <= 0 {
		cfg.RecomputeInterval = DefaultConfig().RecomputeInterval
	}
	if cfg.ConsumeBatchSize <= 0 {
		cfg.ConsumeBatchSize = DefaultConfig().ConsumeBatchSize
	}
	if cfg.UpsertRetries <= 0 {
		cfg.UpsertRetries = DefaultConfig().UpsertRetries
	}
	history := opts.History
	if history == nil {
		history = NopHistory{}
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = notify.NopEmitter{}
	}
	return &Engine{
		positions: opts.Positions,
		realized:  opts.Realized,
		snapshots: opts.Snapshots,
		history:   history,
		prices:    opts.Prices,
		bus:       opts.Bus,
		emitter:   emitter,
		metrics:   opts.Metrics,
		config:    cfg,
		locks:     newKeyedMutex(),
		clock:     time.Now,
	}
}

// Run consumes swap events from the pnl-updates queue and sweeps unrealized
// PNL on a fixed timer until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	recompute := time.NewTicker(e.config.RecomputeInterval)
	defer recompute.Stop()

	drain := time.NewTicker(500 * time.Millisecond)
	defer drain.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-drain.C:
			e.consume(ctx)
		case <-recompute.C:
			e.RecomputeUnrealized(ctx)
		}
	}
}

// consume drains one batch of swap events. A failed message is handed back to
// the bus for bounded redelivery; position upserts are idempotent enough for
// at-least-once (replayed sells clamp, replayed buys are the accepted skew).
func (e *Engine) consume(ctx context.Context) {
	msgs, err := e.bus.PopBatch(ctx, domain.QueuePnlUpdates, e.config.ConsumeBatchSize)
	if err != nil {
		log.Printf("[pnl] pop batch: %v", err)
		return
	}

	for _, msg := range msgs {
		var swap domain.SwapEvent
		if err := json.Unmarshal(msg.Payload, &swap); err != nil || swap.WalletAddress == "" {
			log.Printf("[pnl] dropping malformed message %s: %v", msg.ID, err)
			continue
		}

		if err := e.ApplySwap(ctx, &swap); err != nil {
			log.Printf("[pnl] apply swap %s: %v", swap.TxSignature, err)
			if failErr := e.bus.Fail(ctx, domain.QueuePnlUpdates, msg); failErr != nil {
				log.Printf("[pnl] requeue %s: %v", msg.ID, failErr)
			}
			continue
		}

		// Opportunistic refresh for the affected wallet only.
		e.refreshWallet(ctx, swap.WalletAddress)
	}
}

// ApplySwap applies both legs of a swap: a sell of the input token and a buy
// of the output token, in that order so same-transaction rotation through a
// token realizes against the pre-swap average cost.
func (e *Engine) ApplySwap(ctx context.Context, swap *domain.SwapEvent) error {
	inPrice := e.lookupPrice(ctx, swap.InputMint)
	outPrice := e.lookupPrice(ctx, swap.OutputMint)

	saleValue := swap.InputAmount * inPrice
	buyCost := swap.OutputAmount * outPrice
	if saleValue == 0 && buyCost > 0 {
		saleValue = buyCost
		inPrice = saleValue / swap.InputAmount
	}
	if buyCost == 0 && saleValue > 0 {
		buyCost = saleValue
		outPrice = buyCost / swap.OutputAmount
	}

	ts := swap.Timestamp
	if ts == 0 {
		ts = e.clock().UnixMilli()
	}

	if err := e.Sell(ctx, swap.WalletAddress, swap.InputMint, swap.InputAmount, saleValue, swap.TxSignature, ts); err != nil {
		return fmt.Errorf("sell leg: %w", err)
	}
	if err := e.Buy(ctx, swap.WalletAddress, swap.OutputMint, swap.OutputAmount, outPrice, ts); err != nil {
		return fmt.Errorf("buy leg: %w", err)
	}
	return nil
}

// Buy applies a purchase using weighted average cost basis, creating the
// position on first buy.
func (e *Engine) Buy(ctx context.Context, wallet, mint string, amount, price float64, ts int64) error {
	if amount <= 0 {
		return nil
	}
	unlock := e.locks.Lock(wallet + "|" + mint)
	defer unlock()

	for attempt := 0; attempt < e.config.UpsertRetries; attempt++ {
		pos, err := e.positions.Get(ctx, wallet, mint)
		if errors.Is(err, storage.ErrNotFound) {
			pos = &domain.Position{WalletAddress: wallet, TokenMint: mint}
		} else if err != nil {
			return err
		}

		pos.CurrentBalance += amount
		pos.TotalCostBasisUsd += amount * price
		pos.WeightedAvgCostUsd = pos.TotalCostBasisUsd / pos.CurrentBalance
		pos.LastUpdatedAt = ts

		err = e.positions.Upsert(ctx, pos)
		if errors.Is(err, storage.ErrVersionConflict) {
			continue
		}
		return err
	}
	return storage.ErrVersionConflict
}

// Sell realizes PNL against the current average cost. The sold amount is
// clamped to the held balance; average cost never moves on a sell. The
// position row is deleted when the balance reaches exactly zero.
func (e *Engine) Sell(ctx context.Context, wallet, mint string, amount, saleValue float64, signature string, ts int64) error {
	if amount <= 0 {
		return nil
	}
	unlock := e.locks.Lock(wallet + "|" + mint)
	defer unlock()

	for attempt := 0; attempt < e.config.UpsertRetries; attempt++ {
		pos, err := e.positions.Get(ctx, wallet, mint)
		if errors.Is(err, storage.ErrNotFound) {
			// Nothing held: clamp to zero, nothing to realize. Usually a swap
			// funded outside the tracked window, or double-counted upstream.
			e.warnClamp(wallet, mint, amount, 0)
			return nil
		}
		if err != nil {
			return err
		}

		sold := amount
		value := saleValue
		if sold > pos.CurrentBalance {
			e.warnClamp(wallet, mint, amount, pos.CurrentBalance)
			if amount > 0 {
				value = saleValue * (pos.CurrentBalance / amount)
			}
			sold = pos.CurrentBalance
		}
		if sold <= 0 {
			return nil
		}

		costBasisSold := sold * pos.WeightedAvgCostUsd
		realizedPnl := value - costBasisSold

		event := &domain.RealizedPnlEvent{
			WalletAddress:  wallet,
			TokenMint:      mint,
			TxSignature:    signature,
			QuantitySold:   sold,
			SaleValueUsd:   value,
			CostBasisUsd:   costBasisSold,
			RealizedPnlUsd: realizedPnl,
			ClosedAt:       ts,
		}
		if costBasisSold > 0 {
			event.RoiPercentage = realizedPnl / costBasisSold * 100
		}

		pos.CurrentBalance -= sold
		pos.TotalCostBasisUsd -= costBasisSold
		pos.LastUpdatedAt = ts

		if pos.CurrentBalance <= 0 {
			err = e.positions.Delete(ctx, wallet, mint)
		} else {
			err = e.positions.Upsert(ctx, pos)
		}
		if errors.Is(err, storage.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return err
		}

		if err := e.realized.Append(ctx, event); err != nil {
			return fmt.Errorf("append realized event: %w", err)
		}
		if err := e.history.AppendRealized(ctx, event); err != nil {
			log.Printf("[pnl] history append %s: %v", signature, err)
		}
		if e.metrics != nil {
			e.metrics.RealizedEvents.Inc()
		}
		return nil
	}
	return storage.ErrVersionConflict
}

func (e *Engine) warnClamp(wallet, mint string, requested, held float64) {
	log.Printf("[pnl] WARNING: sell of %f %s by %s clamped to held %f", requested, mint, wallet, held)
	if e.metrics != nil {
		e.metrics.SellClampWarnings.Inc()
	}
}

// RecomputeUnrealized refreshes unrealized PNL for every open position. A
// missing price skips just that position for this cycle.
func (e *Engine) RecomputeUnrealized(ctx context.Context) {
	start := e.clock()

	positions, err := e.positions.GetAll(ctx)
	if err != nil {
		log.Printf("[pnl] load positions: %v", err)
		return
	}
	if e.metrics != nil {
		e.metrics.PositionsOpen.Set(float64(len(positions)))
	}

	wallets := make(map[string]struct{})
	for _, pos := range positions {
		if err := e.recomputePosition(ctx, pos); err != nil {
			if errors.Is(err, pricing.ErrPriceUnavailable) {
				if e.metrics != nil {
					e.metrics.PriceLookupMisses.Inc()
				}
				continue
			}
			log.Printf("[pnl] recompute %s/%s: %v", pos.WalletAddress, pos.TokenMint, err)
			continue
		}
		wallets[pos.WalletAddress] = struct{}{}
	}

	for wallet := range wallets {
		e.recomputeSnapshots(ctx, wallet)
	}

	if e.metrics != nil {
		e.metrics.RecomputeLatency.Observe(time.Since(start).Seconds())
	}
}

// recomputePosition refreshes one position's unrealized PNL at current price.
func (e *Engine) recomputePosition(ctx context.Context, pos *domain.Position) error {
	price, err := e.prices.GetPrice(ctx, pos.TokenMint)
	if err != nil {
		return err
	}

	unlock := e.locks.Lock(pos.WalletAddress + "|" + pos.TokenMint)
	defer unlock()

	current, err := e.positions.Get(ctx, pos.WalletAddress, pos.TokenMint)
	if errors.Is(err, storage.ErrNotFound) {
		return nil // liquidated since listing
	}
	if err != nil {
		return err
	}

	current.UnrealizedPnlUsd = current.CurrentBalance*price - current.TotalCostBasisUsd
	current.LastUpdatedAt = e.clock().UnixMilli()
	err = e.positions.Upsert(ctx, current)
	if errors.Is(err, storage.ErrVersionConflict) {
		return nil // a swap won the race; its own refresh follows
	}
	return err
}

// refreshWallet recomputes unrealized PNL and snapshots for one wallet after
// a processed swap.
func (e *Engine) refreshWallet(ctx context.Context, wallet string) {
	positions, err := e.positions.GetByWallet(ctx, wallet)
	if err != nil {
		log.Printf("[pnl] load wallet %s: %v", wallet, err)
		return
	}
	for _, pos := range positions {
		if err := e.recomputePosition(ctx, pos); err != nil && !errors.Is(err, pricing.ErrPriceUnavailable) {
			log.Printf("[pnl] refresh %s/%s: %v", pos.WalletAddress, pos.TokenMint, err)
		}
	}
	e.recomputeSnapshots(ctx, wallet)
}

func (e *Engine) lookupPrice(ctx context.Context, mint string) float64 {
	price, err := e.prices.GetPrice(ctx, mint)
	if err != nil {
		return 0
	}
	return price
}
