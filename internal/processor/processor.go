// Package processor turns raw feed transactions into normalized swap events
// using token-balance-delta analysis.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/alitto/pond/v2"

	"solana-wallet-pulse/internal/bus"
	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/observability"
	"solana-wallet-pulse/internal/pricing"
	"solana-wallet-pulse/internal/solana"
	"solana-wallet-pulse/internal/storage"
)

// Config holds processor batching and concurrency parameters.
type Config struct {
	// BatchSize triggers a flush when this many messages accumulate.
	BatchSize int
	// FlushInterval triggers a flush on a timer regardless of batch size.
	FlushInterval time.Duration
	// Workers bounds concurrent per-item processing within a batch.
	Workers int
	// RPCTimeout bounds each transaction detail lookup.
	RPCTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     25,
		FlushInterval: 2 * time.Second,
		Workers:       8,
		RPCTimeout:    5 * time.Second,
	}
}

// Processor consumes raw-transaction messages, filters them against the
// tracked wallet set, hydrates matches via RPC, and emits swap events.
type Processor struct {
	bus       *bus.Bus
	rpc       solana.RPCClient
	filter    *AccountFilter
	prices    pricing.PriceOracle
	transfers storage.TransferStore
	metrics   *observability.Metrics
	config    Config

	pool pond.Pool
}

// New creates a processor.
func New(b *bus.Bus, rpc solana.RPCClient, filter *AccountFilter, prices pricing.PriceOracle,
	transfers storage.TransferStore, metrics *observability.Metrics, config Config) *Processor {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultConfig().FlushInterval
	}
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	if config.RPCTimeout <= 0 {
		config.RPCTimeout = DefaultConfig().RPCTimeout
	}
	return &Processor{
		bus:       b,
		rpc:       rpc,
		filter:    filter,
		prices:    prices,
		transfers: transfers,
		metrics:   metrics,
		config:    config,
		pool:      pond.NewPool(config.Workers),
	}
}

// Run drains the raw-transactions queue until the context is cancelled:
// a batch flushes when BatchSize messages accumulate or on the flush tick,
// whichever comes first. A live tap on the queue counts arrivals so a full
// batch drains immediately; the ticker backstops anything the tap misses.
func (p *Processor) Run(ctx context.Context) {
	defer p.pool.StopAndWait()

	arrivals, cancelTap := p.bus.Subscribe(domain.QueueRawTransactions)
	defer cancelTap()

	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	pending := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case _, ok := <-arrivals:
			if !ok {
				arrivals = nil
				continue
			}
			pending++
			if pending < p.config.BatchSize {
				continue
			}
		}
		pending = 0

		p.drain(ctx)
	}
}

// drain pops full batches until the queue runs short.
func (p *Processor) drain(ctx context.Context) {
	for {
		msgs, err := p.bus.PopBatch(ctx, domain.QueueRawTransactions, p.config.BatchSize)
		if err != nil {
			log.Printf("[processor] pop batch: %v", err)
			return
		}
		if len(msgs) == 0 {
			return
		}

		trigger := "timer"
		if len(msgs) == p.config.BatchSize {
			trigger = "size"
		}
		if p.metrics != nil {
			p.metrics.BatchFlushes.WithLabelValues(trigger).Inc()
		}

		p.processBatch(ctx, msgs)

		// A short batch means the queue is drained.
		if len(msgs) < p.config.BatchSize {
			return
		}
	}
}

// processBatch fans items out to the worker pool, then persists all derived
// transfers as one batched write. Per-item failures never abort the batch.
func (p *Processor) processBatch(ctx context.Context, msgs []*domain.QueueMessage) {
	start := time.Now()

	var mu sync.Mutex
	var transfers []*domain.WalletTransfer

	group := p.pool.NewGroup()
	for _, msg := range msgs {
		msg := msg
		group.Submit(func() {
			items := p.processMessage(ctx, msg)
			if len(items) > 0 {
				mu.Lock()
				transfers = append(transfers, items...)
				mu.Unlock()
			}
		})
	}
	if err := group.Wait(); err != nil {
		log.Printf("[processor] batch worker failure: %v", err)
	}

	if len(transfers) > 0 {
		if err := p.transfers.InsertBulk(ctx, transfers); err != nil {
			log.Printf("[processor] persist %d transfers: %v", len(transfers), err)
			if p.metrics != nil {
				p.metrics.DBQueryErrors.WithLabelValues("transfers", "insert_bulk").Inc()
			}
		}
	}

	if p.metrics != nil {
		p.metrics.BatchLatency.Observe(time.Since(start).Seconds())
	}
}

// processMessage handles one raw-transaction message end to end. Malformed
// payloads are dropped; RPC failures abandon the single transaction. Both are
// final at this layer: redelivery, when it happens, comes from the queue.
func (p *Processor) processMessage(ctx context.Context, msg *domain.QueueMessage) []*domain.WalletTransfer {
	var update domain.TransactionUpdate
	if err := json.Unmarshal(msg.Payload, &update); err != nil || update.Signature == "" {
		log.Printf("[processor] dropping malformed message %s: %v", msg.ID, err)
		return nil
	}

	wallet, dexProgram, ok := p.filter.Match(update.Accounts)
	if !ok {
		if p.metrics != nil {
			p.metrics.TransactionsFiltered.Inc()
		}
		return nil
	}
	if p.metrics != nil {
		p.metrics.TransactionsMatched.Inc()
	}

	rpcCtx, cancel := context.WithTimeout(ctx, p.config.RPCTimeout)
	tx, err := p.rpc.GetParsedTransaction(rpcCtx, update.Signature)
	cancel()
	if err != nil {
		if !errors.Is(err, solana.ErrTransactionNotFound) {
			log.Printf("[processor] abandoning %s: rpc lookup failed: %v", update.Signature, err)
		}
		if p.metrics != nil {
			p.metrics.RPCLookupErrors.Inc()
		}
		return nil
	}

	swap, ok := DetectSwap(tx, wallet, dexProgram)
	if !ok {
		return nil
	}
	if swap.Timestamp == 0 {
		swap.Timestamp = msg.Timestamp
	}
	if p.metrics != nil {
		p.metrics.SwapsDetected.Inc()
	}

	p.publishSwap(ctx, swap)
	return p.buildTransfers(ctx, swap)
}

// publishSwap emits the normalized swap to the PNL queue and a trimmed feed
// update for live consumers.
func (p *Processor) publishSwap(ctx context.Context, swap *domain.SwapEvent) {
	payload, err := json.Marshal(swap)
	if err != nil {
		log.Printf("[processor] marshal swap %s: %v", swap.TxSignature, err)
		return
	}

	if err := p.bus.Publish(ctx, domain.QueuePnlUpdates, &domain.QueueMessage{
		Type:     domain.MessageTypePnlUpdate,
		Payload:  payload,
		Priority: 1,
	}); err != nil {
		log.Printf("[processor] publish pnl update %s: %v", swap.TxSignature, err)
	}

	if err := p.bus.Publish(ctx, domain.QueueFeedUpdates, &domain.QueueMessage{
		Type:    domain.MessageTypeFeedUpdate,
		Payload: payload,
	}); err != nil {
		log.Printf("[processor] publish feed update %s: %v", swap.TxSignature, err)
	}
}

// buildTransfers derives the buy and sell legs of a swap, pricing each side
// when a quote is available.
func (p *Processor) buildTransfers(ctx context.Context, swap *domain.SwapEvent) []*domain.WalletTransfer {
	inPrice := p.lookupPrice(ctx, swap.InputMint)
	outPrice := p.lookupPrice(ctx, swap.OutputMint)

	// When only one side has a quote, the swap's USD value anchors the other.
	inValue := swap.InputAmount * inPrice
	outValue := swap.OutputAmount * outPrice
	if inValue == 0 && outValue > 0 {
		inValue = outValue
	}
	if outValue == 0 && inValue > 0 {
		outValue = inValue
		if swap.OutputAmount > 0 {
			outPrice = outValue / swap.OutputAmount
		}
	}

	return []*domain.WalletTransfer{
		{
			WalletAddress: swap.WalletAddress,
			TokenMint:     swap.OutputMint,
			TxSignature:   swap.TxSignature,
			Side:          domain.TransferSideBuy,
			Amount:        swap.OutputAmount,
			PriceUsd:      outPrice,
			ValueUsd:      outValue,
			Slot:          swap.Slot,
			Timestamp:     swap.Timestamp,
		},
		{
			WalletAddress: swap.WalletAddress,
			TokenMint:     swap.InputMint,
			TxSignature:   swap.TxSignature,
			Side:          domain.TransferSideSell,
			Amount:        swap.InputAmount,
			PriceUsd:      inPrice,
			ValueUsd:      inValue,
			Slot:          swap.Slot,
			Timestamp:     swap.Timestamp,
		},
	}
}

func (p *Processor) lookupPrice(ctx context.Context, mint string) float64 {
	price, err := p.prices.GetPrice(ctx, mint)
	if err != nil {
		return 0
	}
	return price
}
