package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"solana-wallet-pulse/internal/bus"
	"solana-wallet-pulse/internal/gem"
	"solana-wallet-pulse/internal/notify"
	"solana-wallet-pulse/internal/observability"
	"solana-wallet-pulse/internal/pnl"
	"solana-wallet-pulse/internal/pricing"
	"solana-wallet-pulse/internal/processor"
	"solana-wallet-pulse/internal/solana"
	"solana-wallet-pulse/internal/storage"
	chstore "solana-wallet-pulse/internal/storage/clickhouse"
	"solana-wallet-pulse/internal/storage/memory"
	"solana-wallet-pulse/internal/storage/migrations"
	pgstore "solana-wallet-pulse/internal/storage/postgres"
	"solana-wallet-pulse/internal/stream"
)

// stores bundles every persistence interface the services need.
type stores struct {
	positions storage.PositionStore
	realized  storage.RealizedPnlStore
	snapshots storage.SnapshotStore
	transfers storage.TransferStore
	gems      storage.GemStore
	tokens    storage.TokenMetadataStore
	queue     storage.QueueStore
}

func main() {
	wsEndpoint := flag.String("ws-endpoint", "", "Solana WebSocket endpoint")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Solana RPC HTTP endpoint")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for PNL history (empty to disable)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	wallets := flag.String("wallets", "", "Comma-separated tracked wallet addresses")
	walletsFile := flag.String("wallets-file", "", "File with one tracked wallet address per line")
	pricesFile := flag.String("prices-file", "", "JSON file mapping token mints to USD prices")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[tracker] ", log.LstdFlags|log.Lshortfile)

	if *wsEndpoint == "" {
		logger.Fatal("--ws-endpoint is required")
	}
	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	walletList, err := loadWallets(*wallets, *walletsFile)
	if err != nil {
		logger.Fatalf("Load wallets: %v", err)
	}
	if len(walletList) == 0 {
		logger.Fatal("No wallets specified. Use --wallets or --wallets-file")
	}
	logger.Printf("Tracking %d wallets", len(walletList))

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, logger, options{
		wsEndpoint:    *wsEndpoint,
		rpcEndpoint:   *rpcEndpoint,
		postgresDSN:   *postgresDSN,
		clickhouseDSN: *clickhouseDSN,
		useMemory:     *useMemory,
		wallets:       walletList,
		pricesFile:    *pricesFile,
		metricsAddr:   *metricsAddr,
	})

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

type options struct {
	wsEndpoint    string
	rpcEndpoint   string
	postgresDSN   string
	clickhouseDSN string
	useMemory     bool
	wallets       []string
	pricesFile    string
	metricsAddr   string
}

func run(ctx context.Context, logger *log.Logger, opts options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics := observability.NewMetrics("")

	if opts.metricsAddr != "" {
		go serveMetrics(logger, opts.metricsAddr, metrics)
	}

	st, history, cleanup, err := buildStores(ctx, logger, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	eventBus := bus.New(st.queue, metrics)
	defer eventBus.Close()

	oracle, err := buildOracle(opts.pricesFile)
	if err != nil {
		return err
	}
	prices := pricing.NewCache(oracle, pricing.CacheConfig{})

	rpc := solana.NewHTTPClient(opts.rpcEndpoint)
	dialer := solana.NewWSDialer(opts.wsEndpoint, nil)

	streamCfg := stream.DefaultConfig()
	manager := stream.NewManager(dialer, eventBus, streamCfg, metrics)
	result, err := manager.Start(ctx, opts.wallets)
	if err != nil {
		return fmt.Errorf("start stream manager: %w", err)
	}
	defer manager.Stop()
	logger.Printf("Streams started: %d wallets across %d allocations", result.Allocated, len(result.Allocations))

	// The processor filters against the effective tracked set, not the
	// requested one: dropped wallets never match.
	var tracked []string
	for _, alloc := range result.Allocations {
		tracked = append(tracked, alloc.WalletAddresses...)
	}
	filter := processor.NewAccountFilter(tracked, stream.DefaultDexPrograms)

	proc := processor.New(eventBus, rpc, filter, prices, st.transfers, metrics, processor.DefaultConfig())

	emitter := notify.NewBusEmitter(eventBus)

	engine := pnl.NewEngine(pnl.Options{
		Positions: st.positions,
		Realized:  st.realized,
		Snapshots: st.snapshots,
		History:   history,
		Prices:    prices,
		Bus:       eventBus,
		Emitter:   emitter,
		Metrics:   metrics,
		Config:    pnl.DefaultConfig(),
	})

	finder := gem.NewFinder(gem.Options{
		Transfers: st.transfers,
		Gems:      st.gems,
		Tokens:    st.tokens,
		Snapshots: st.snapshots,
		Emitter:   emitter,
		Metrics:   metrics,
		Config:    gem.DefaultConfig(),
	})

	monitor := bus.NewDepthMonitor(eventBus, nil, 30*time.Second, metrics)

	var wg sync.WaitGroup
	for _, service := range []func(context.Context){
		proc.Run,
		engine.Run,
		finder.Run,
		monitor.Run,
	} {
		wg.Add(1)
		service := service
		go func() {
			defer wg.Done()
			service(ctx)
		}()
	}

	return awaitShutdown(ctx, cancel, manager.Fatal(), &wg)
}

// awaitShutdown blocks until cancellation or a fatal stream error. A fatal
// error must bring the whole service down, not just the stream manager, so
// every service goroutine is stopped and drained before returning.
func awaitShutdown(ctx context.Context, cancel context.CancelFunc, fatal <-chan error, wg *sync.WaitGroup) error {
	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case err := <-fatal:
		runErr = fmt.Errorf("stream connection exhausted: %w", err)
	}

	cancel()
	wg.Wait()
	return runErr
}

// buildStores wires either the in-memory or the PostgreSQL store set, plus
// the optional ClickHouse history log. The returned cleanup closes whatever
// was opened.
func buildStores(ctx context.Context, logger *log.Logger, opts options) (*stores, pnl.HistoryLog, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	st := &stores{
		positions: memory.NewPositionStore(),
		realized:  memory.NewRealizedPnlStore(),
		snapshots: memory.NewSnapshotStore(),
		transfers: memory.NewTransferStore(),
		gems:      memory.NewGemStore(),
		tokens:    memory.NewTokenMetadataStore(),
		queue:     memory.NewQueueStore(),
	}

	if !opts.useMemory {
		pool, err := pgstore.NewPool(ctx, opts.postgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
		}

		st.positions = pgstore.NewPositionStore(pool)
		st.realized = pgstore.NewRealizedPnlStore(pool)
		st.snapshots = pgstore.NewSnapshotStore(pool)
		st.transfers = pgstore.NewTransferStore(pool)
		st.gems = pgstore.NewGemStore(pool)
		st.tokens = pgstore.NewTokenMetadataStore(pool)
		st.queue = pgstore.NewQueueStore(pool)
	}

	var history pnl.HistoryLog = pnl.NopHistory{}
	if opts.clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, opts.clickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		history = chstore.NewHistoryStore(conn)
		logger.Println("ClickHouse PNL history enabled")
	}

	return st, history, cleanup, nil
}

// buildOracle loads fixed prices from the given JSON file. Stablecoins quote
// at one dollar even without a file.
func buildOracle(pricesFile string) (pricing.PriceOracle, error) {
	prices := map[string]float64{
		"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": 1.0, // USDC
		"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": 1.0, // USDT
	}

	if pricesFile != "" {
		data, err := os.ReadFile(pricesFile)
		if err != nil {
			return nil, fmt.Errorf("read prices file: %w", err)
		}
		var fromFile map[string]float64
		if err := json.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("parse prices file: %w", err)
		}
		for mint, price := range fromFile {
			prices[mint] = price
		}
	}

	return pricing.NewStaticOracle(prices), nil
}

// loadWallets merges the --wallets list with the --wallets-file contents,
// preserving order and dropping blanks. Validation happens at allocation.
func loadWallets(inline, file string) ([]string, error) {
	var wallets []string
	seen := make(map[string]struct{})

	add := func(w string) {
		w = strings.TrimSpace(w)
		if w == "" {
			return
		}
		if _, dup := seen[w]; dup {
			return
		}
		seen[w] = struct{}{}
		wallets = append(wallets, w)
	}

	if inline != "" {
		for _, w := range strings.Split(inline, ",") {
			add(w)
		}
	}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read wallets file: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "#") {
				continue
			}
			add(line)
		}
	}

	return wallets, nil
}

func serveMetrics(logger *log.Logger, addr string, metrics *observability.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
}
