package gem

import (
	"context"
	"testing"
	"time"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/notify"
	"solana-wallet-pulse/internal/storage/memory"
)

const gemMint = "GemMint1111111111111111111111111111111111111"

// captureEmitter records emitted discoveries.
type captureEmitter struct {
	gems      []*domain.GemCandidate
	snapshots []*domain.PnlSnapshot
}

func (e *captureEmitter) EmitSnapshot(_ context.Context, s *domain.PnlSnapshot) error {
	e.snapshots = append(e.snapshots, s)
	return nil
}

func (e *captureEmitter) EmitGem(_ context.Context, g *domain.GemCandidate) error {
	e.gems = append(e.gems, g)
	return nil
}

var _ notify.Emitter = (*captureEmitter)(nil)

// tenWallets yields enough distinct profitable buyers to clear the default
// confidence threshold.
func tenWallets(prefix string) []string {
	return []string{
		prefix + "1", prefix + "2", prefix + "3", prefix + "4", prefix + "5",
		prefix + "6", prefix + "7", prefix + "8", prefix + "9", prefix + "10",
	}
}

type finderFixture struct {
	finder    *Finder
	transfers *memory.TransferStore
	gems      *memory.GemStore
	tokens    *memory.TokenMetadataStore
	snapshots *memory.SnapshotStore
	emitter   *captureEmitter
	now       time.Time
}

func newFinderFixture(t *testing.T, cfg Config) *finderFixture {
	t.Helper()

	f := &finderFixture{
		transfers: memory.NewTransferStore(),
		gems:      memory.NewGemStore(),
		tokens:    memory.NewTokenMetadataStore(),
		snapshots: memory.NewSnapshotStore(),
		emitter:   &captureEmitter{},
		now:       time.UnixMilli(1_700_000_000_000),
	}
	f.finder = NewFinder(Options{
		Transfers: f.transfers,
		Gems:      f.gems,
		Tokens:    f.tokens,
		Snapshots: f.snapshots,
		Emitter:   f.emitter,
		Config:    cfg,
	})
	f.finder.clock = func() time.Time { return f.now }
	return f
}

// seedBuys inserts one buy per wallet for the mint, clustered near now.
func (f *finderFixture) seedBuys(t *testing.T, mint string, valueEach float64, wallets ...string) {
	t.Helper()
	var rows []*domain.WalletTransfer
	for i, w := range wallets {
		rows = append(rows, &domain.WalletTransfer{
			WalletAddress: w,
			TokenMint:     mint,
			TxSignature:   "sig-" + mint + "-" + w,
			Side:          domain.TransferSideBuy,
			Amount:        100,
			ValueUsd:      valueEach,
			Timestamp:     f.now.UnixMilli() - int64(i+1)*1000,
		})
	}
	if err := f.transfers.InsertBulk(context.Background(), rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
}

// seedReputation gives each wallet a profitable 7D snapshot.
func (f *finderFixture) seedReputation(t *testing.T, wallets ...string) {
	t.Helper()
	for _, w := range wallets {
		err := f.snapshots.Upsert(context.Background(), &domain.PnlSnapshot{
			WalletAddress: w,
			Timeframe:     domain.Timeframe7D,
			TotalPnlUsd:   1000,
		})
		if err != nil {
			t.Fatalf("Upsert snapshot failed: %v", err)
		}
	}
}

func TestFinder_DiscoversQualifyingToken(t *testing.T) {
	f := newFinderFixture(t, Config{})
	buyers := tenWallets("w")
	f.seedBuys(t, gemMint, 10000, buyers...)
	f.seedReputation(t, buyers...)

	if err := f.finder.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(f.emitter.gems) != 1 {
		t.Fatalf("discoveries: got %d, want 1", len(f.emitter.gems))
	}
	g := f.emitter.gems[0]
	if g.TokenMint != gemMint {
		t.Errorf("mint: got %s, want %s", g.TokenMint, gemMint)
	}
	if len(g.BuyerAddresses) != 10 {
		t.Errorf("buyers: got %d, want 10", len(g.BuyerAddresses))
	}
	if g.TotalVolumeUsd != 100000 {
		t.Errorf("volume: got %f, want 100000", g.TotalVolumeUsd)
	}
	if g.ConfidenceScore < 0.6 || g.ConfidenceScore > 1 {
		t.Errorf("confidence out of range: %f", g.ConfidenceScore)
	}
}

func TestFinder_LowConfidenceNotEmitted(t *testing.T) {
	// Three buyers and modest volume clear the hard thresholds but not the
	// confidence bar.
	f := newFinderFixture(t, Config{})
	f.seedBuys(t, gemMint, 3000, "w1", "w2", "w3")
	f.seedReputation(t, "w1", "w2", "w3")

	if err := f.finder.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(f.emitter.gems) != 0 {
		t.Errorf("discoveries: got %d, want 0", len(f.emitter.gems))
	}
}

func TestFinder_BelowBuyerThreshold(t *testing.T) {
	f := newFinderFixture(t, Config{})
	f.seedBuys(t, gemMint, 10000, "w1")

	if err := f.finder.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(f.emitter.gems) != 0 {
		t.Errorf("discoveries: got %d, want 0", len(f.emitter.gems))
	}
}

func TestFinder_BelowVolumeThreshold(t *testing.T) {
	f := newFinderFixture(t, Config{})
	f.seedBuys(t, gemMint, 1000, "w1", "w2", "w3")

	if err := f.finder.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(f.emitter.gems) != 0 {
		t.Errorf("discoveries: got %d, want 0", len(f.emitter.gems))
	}
}

func TestFinder_ExcludesBaseMints(t *testing.T) {
	f := newFinderFixture(t, Config{})
	buyers := tenWallets("w")
	f.seedBuys(t, "So11111111111111111111111111111111111111112", 10000, buyers...)
	f.seedReputation(t, buyers...)

	if err := f.finder.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(f.emitter.gems) != 0 {
		t.Errorf("base mint should never be discovered, got %d", len(f.emitter.gems))
	}
}

func TestFinder_DedupWindowSuppressesRediscovery(t *testing.T) {
	f := newFinderFixture(t, Config{})
	buyers := tenWallets("w")
	f.seedBuys(t, gemMint, 10000, buyers...)
	f.seedReputation(t, buyers...)

	ctx := context.Background()
	if err := f.finder.Scan(ctx); err != nil {
		t.Fatalf("first Scan failed: %v", err)
	}
	if err := f.finder.Scan(ctx); err != nil {
		t.Fatalf("second Scan failed: %v", err)
	}
	if len(f.emitter.gems) != 1 {
		t.Errorf("discoveries after rescan: got %d, want 1", len(f.emitter.gems))
	}

	// Past the dedup window the token can qualify again.
	f.now = f.now.Add(25 * time.Hour)
	fresh := tenWallets("x")
	f.seedBuys(t, gemMint, 10000, fresh...)
	f.seedReputation(t, fresh...)
	if err := f.finder.Scan(ctx); err != nil {
		t.Fatalf("third Scan failed: %v", err)
	}
	if len(f.emitter.gems) != 2 {
		t.Errorf("discoveries after window: got %d, want 2", len(f.emitter.gems))
	}
}

func TestFinder_SuspiciousMetadataRejected(t *testing.T) {
	f := newFinderFixture(t, Config{})
	buyers := tenWallets("w")
	f.seedBuys(t, gemMint, 10000, buyers...)
	f.seedReputation(t, buyers...)

	err := f.tokens.Upsert(context.Background(), &domain.TokenMetadata{
		Mint: gemMint,
		Name: "Definitely Not A Rug",
	})
	if err != nil {
		t.Fatalf("Upsert metadata failed: %v", err)
	}

	if err := f.finder.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(f.emitter.gems) != 0 {
		t.Errorf("suspicious token should be rejected, got %d discoveries", len(f.emitter.gems))
	}
}

func TestFinder_PersistsDiscovery(t *testing.T) {
	f := newFinderFixture(t, Config{})
	buyers := tenWallets("w")
	f.seedBuys(t, gemMint, 10000, buyers...)
	f.seedReputation(t, buyers...)

	ctx := context.Background()
	if err := f.finder.Scan(ctx); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	ts, err := f.gems.LastDiscovery(ctx, gemMint)
	if err != nil {
		t.Fatalf("LastDiscovery failed: %v", err)
	}
	if ts != f.now.UnixMilli() {
		t.Errorf("discovery timestamp: got %d, want %d", ts, f.now.UnixMilli())
	}
}
