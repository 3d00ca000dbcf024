package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"solana-wallet-pulse/internal/bus"
	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/observability"
	"solana-wallet-pulse/internal/solana"
)

// Config holds stream manager capacity and supervision parameters.
type Config struct {
	// MaxAccountsPerStream caps wallet batch size per subscription.
	MaxAccountsPerStream int
	// MaxConcurrentStreams caps the number of wallet subscriptions.
	MaxConcurrentStreams int
	// MaxStreamRetries caps per-allocation reconnect attempts before the
	// allocation is marked terminal-failed.
	MaxStreamRetries int
	// StreamRetryDelay is the base delay between per-stream reconnects;
	// actual delay grows linearly with the attempt number.
	StreamRetryDelay time.Duration
	// ProbeInterval is the connection liveness probe period.
	ProbeInterval time.Duration
	// MaxConnectionRetries caps full reconnect-all attempts before the
	// manager stops with a fatal status.
	MaxConnectionRetries int
	// Commitment level for subscriptions.
	Commitment string
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxAccountsPerStream: 50,
		MaxConcurrentStreams: 5,
		MaxStreamRetries:     3,
		StreamRetryDelay:     2 * time.Second,
		ProbeInterval:        30 * time.Second,
		MaxConnectionRetries: 5,
		Commitment:           "confirmed",
	}
}

// Manager supervises the full set of upstream subscriptions: wallet batches
// plus the DEX program stream. Each allocation has an independent supervisor;
// one batch failing never interrupts the others.
type Manager struct {
	dialer  solana.StreamDialer
	bus     *bus.Bus
	config  Config
	metrics *observability.Metrics

	mu      sync.Mutex
	streams []*supervisedStream
	started bool
	stopped bool

	// genCtx spans one connection generation; reconnect-all cancels it and
	// starts the next generation.
	genCtx    context.Context
	genCancel context.CancelFunc
	genWG     sync.WaitGroup

	stopCh chan struct{}
	fatal  chan error
}

// supervisedStream pairs an allocation with its live connection state.
type supervisedStream struct {
	alloc *domain.StreamAllocation

	mu        sync.Mutex
	conn      solana.StreamConn
	forwarded atomic.Int64
}

func (s *supervisedStream) setConn(c solana.StreamConn) {
	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()
}

func (s *supervisedStream) getConn() solana.StreamConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// NewManager creates a stream manager.
func NewManager(dialer solana.StreamDialer, b *bus.Bus, config Config, metrics *observability.Metrics) *Manager {
	return &Manager{
		dialer:  dialer,
		bus:     b,
		config:  config,
		metrics: metrics,
		stopCh:  make(chan struct{}),
		fatal:   make(chan error, 1),
	}
}

// Start allocates wallets to streams and launches all supervisors plus the
// connection liveness loop. The returned result tells the caller the
// effective tracked count.
func (m *Manager) Start(ctx context.Context, wallets []string) (*AllocationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil, fmt.Errorf("stream manager already started")
	}

	result, err := AllocateWallets(wallets, m.config.MaxAccountsPerStream, m.config.MaxConcurrentStreams)
	if err != nil {
		return nil, err
	}
	if len(result.DroppedInvalid) > 0 {
		log.Printf("[stream] dropped %d invalid wallet addresses", len(result.DroppedInvalid))
	}
	if len(result.DroppedExcess) > 0 {
		log.Printf("[stream] capacity exceeded: tracking %d of %d requested wallets, %d dropped",
			result.Allocated, result.Requested, len(result.DroppedExcess))
	}

	for _, alloc := range result.Allocations {
		m.streams = append(m.streams, &supervisedStream{alloc: alloc})
	}

	m.started = true
	m.startGeneration(ctx)

	m.genWG.Add(1)
	go m.livenessLoop(ctx)

	return result, nil
}

// startGeneration launches one supervisor per allocation under a fresh
// generation context. Caller holds m.mu.
func (m *Manager) startGeneration(parent context.Context) {
	m.genCtx, m.genCancel = context.WithCancel(parent)
	for _, s := range m.streams {
		s.mu.Lock()
		s.alloc.State = domain.StreamStateIdle
		s.alloc.ReconnectAttempts = 0
		s.mu.Unlock()
		m.genWG.Add(1)
		go m.supervise(m.genCtx, s)
	}
}

// supervise drives one allocation's lifecycle:
// idle -> connecting -> active -> (error -> reconnecting -> active | failed).
// The reconnect counter resets only once the stream delivers an update, so a
// connection that dies immediately after dialing still burns an attempt.
func (m *Manager) supervise(ctx context.Context, s *supervisedStream) {
	defer m.genWG.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		m.setState(s, domain.StreamStateConnecting)
		conn, err := m.dialer.Dial(ctx, m.filterFor(s.alloc))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !m.scheduleRetry(ctx, s, err) {
				return
			}
			continue
		}

		s.setConn(conn)
		m.setState(s, domain.StreamStateActive)
		log.Printf("[stream] %s active (%d accounts)", s.alloc.StreamID, s.alloc.AccountCount)

		delivered := m.pump(ctx, s, conn)

		s.setConn(nil)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		if delivered {
			s.mu.Lock()
			s.alloc.ReconnectAttempts = 0
			s.mu.Unlock()
		}
		if !m.scheduleRetry(ctx, s, conn.Err()) {
			return
		}
	}
}

// pump forwards updates until the stream ends. Reports whether at least one
// update was delivered.
func (m *Manager) pump(ctx context.Context, s *supervisedStream, conn solana.StreamConn) bool {
	delivered := false
	for {
		select {
		case <-ctx.Done():
			return delivered
		case notif, ok := <-conn.Updates():
			if !ok {
				return delivered
			}
			delivered = true
			m.forward(ctx, s, notif)
		}
	}
}

// scheduleRetry increments the reconnect counter and waits out the backoff
// delay. Returns false when the allocation is terminal-failed.
func (m *Manager) scheduleRetry(ctx context.Context, s *supervisedStream, cause error) bool {
	s.mu.Lock()
	s.alloc.ReconnectAttempts++
	attempts := s.alloc.ReconnectAttempts
	if cause != nil {
		s.alloc.LastError = cause.Error()
	}
	lastErr := s.alloc.LastError
	s.mu.Unlock()
	if m.metrics != nil {
		m.metrics.StreamReconnects.Inc()
	}

	if attempts > m.config.MaxStreamRetries {
		m.setState(s, domain.StreamStateFailed)
		log.Printf("[stream] %s terminal-failed after %d attempts: %s",
			s.alloc.StreamID, attempts-1, lastErr)
		return false
	}

	m.setState(s, domain.StreamStateReconnecting)
	delay := m.config.StreamRetryDelay * time.Duration(attempts)
	log.Printf("[stream] %s reconnect %d/%d in %v: %v",
		s.alloc.StreamID, attempts, m.config.MaxStreamRetries, delay, cause)

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

// forward classifies an inbound item and publishes transaction updates to the
// raw-transactions queue. A bus publish failure is fatal to that update only.
func (m *Manager) forward(ctx context.Context, s *supervisedStream, notif solana.FeedNotification) {
	switch notif.Kind {
	case solana.NotificationKindTransaction:
		tx := notif.Transaction
		if tx == nil || tx.Signature == "" {
			log.Printf("[stream] %s dropping malformed update: missing signature", s.alloc.StreamID)
			if m.metrics != nil {
				m.metrics.UpdatesDropped.WithLabelValues("malformed").Inc()
			}
			return
		}

		envelope := domain.TransactionUpdate{
			Signature: tx.Signature,
			Slot:      tx.Slot,
			BlockTime: tx.BlockTime,
			Accounts:  tx.Accounts,
			Raw:       tx.Raw,
		}
		payload, err := json.Marshal(&envelope)
		if err != nil {
			log.Printf("[stream] %s marshal update %s: %v", s.alloc.StreamID, tx.Signature, err)
			return
		}

		msg := &domain.QueueMessage{
			Type:    domain.MessageTypeTransaction,
			Payload: payload,
		}
		if err := m.bus.Publish(ctx, domain.QueueRawTransactions, msg); err != nil {
			log.Printf("[stream] %s publish %s failed, update lost: %v", s.alloc.StreamID, tx.Signature, err)
			if m.metrics != nil {
				m.metrics.UpdatesDropped.WithLabelValues("publish").Inc()
			}
			return
		}

		s.forwarded.Add(1)
		if m.metrics != nil {
			m.metrics.UpdatesForwarded.Inc()
		}

	case solana.NotificationKindAccount:
		// Account updates carry no swap information; counted and ignored.
		if m.metrics != nil {
			m.metrics.UpdatesDropped.WithLabelValues("account").Inc()
		}
	}
}

// filterFor builds the subscription filter for one allocation.
func (m *Manager) filterFor(alloc *domain.StreamAllocation) solana.SubscriptionFilter {
	return solana.SubscriptionFilter{
		Accounts:   alloc.WalletAddresses,
		Programs:   alloc.ProgramAddresses,
		Commitment: m.config.Commitment,
	}
}

// livenessLoop probes connection health on a fixed interval, independent of
// per-stream state. When every non-failed stream flunks its probe the whole
// connection is presumed dead and a reconnect-all cycle begins.
func (m *Manager) livenessLoop(ctx context.Context) {
	defer m.genWG.Done()

	ticker := time.NewTicker(m.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			if m.probeAll(ctx) {
				if m.metrics != nil {
					m.metrics.ConnectionProbes.WithLabelValues("ok").Inc()
				}
				continue
			}
			if m.metrics != nil {
				m.metrics.ConnectionProbes.WithLabelValues("failed").Inc()
			}
			if err := m.reconnectAll(ctx); err != nil {
				log.Printf("[stream] FATAL: %v", err)
				select {
				case m.fatal <- err:
				default:
				}
				return
			}
		}
	}
}

// probeAll pings every live connection. Healthy while at least one active
// stream answers, or nothing has connected yet.
func (m *Manager) probeAll(ctx context.Context) bool {
	probed := false
	for _, s := range m.snapshot() {
		conn := s.getConn()
		if conn == nil {
			continue
		}
		probed = true
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := conn.Ping(probeCtx)
		cancel()
		if err == nil {
			return true
		}
	}
	return !probed
}

// reconnectAll tears down the current generation and restarts every
// supervisor, backing off exponentially between attempts. Exhausting the
// attempt cap is fatal to the manager.
func (m *Manager) reconnectAll(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = time.Minute
	policy.Multiplier = 2.0

	for attempt := 1; attempt <= m.config.MaxConnectionRetries; attempt++ {
		log.Printf("[stream] connection lost, reconnect-all attempt %d/%d", attempt, m.config.MaxConnectionRetries)

		m.mu.Lock()
		m.genCancel()
		m.mu.Unlock()
		m.waitSupervisors()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.NextBackOff()):
		}

		m.mu.Lock()
		m.startGeneration(ctx)
		m.mu.Unlock()

		// Give supervisors a moment to dial before judging the attempt.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.config.ProbeInterval / 2):
		}
		if m.probeAll(ctx) {
			log.Printf("[stream] reconnect-all succeeded on attempt %d", attempt)
			return nil
		}
	}

	return fmt.Errorf("connection exhausted after %d reconnect-all attempts", m.config.MaxConnectionRetries)
}

// waitSupervisors blocks until all supervisor goroutines of the cancelled
// generation exit. The liveness loop itself is not part of the wait.
func (m *Manager) waitSupervisors() {
	deadline := time.After(10 * time.Second)
	done := make(chan struct{})
	go func() {
		for _, s := range m.snapshot() {
			if conn := s.getConn(); conn != nil {
				conn.Close()
			}
		}
		close(done)
	}()
	select {
	case <-done:
	case <-deadline:
	}
}

// setState updates allocation state and the state gauges.
func (m *Manager) setState(s *supervisedStream, state domain.StreamState) {
	s.mu.Lock()
	prev := s.alloc.State
	s.alloc.State = state
	s.mu.Unlock()
	if m.metrics == nil || prev == state {
		return
	}
	adjust := func(st domain.StreamState, delta float64) {
		switch st {
		case domain.StreamStateActive:
			m.metrics.StreamsActive.Add(delta)
		case domain.StreamStateReconnecting:
			m.metrics.StreamsReconnecting.Add(delta)
		case domain.StreamStateFailed:
			m.metrics.StreamsFailed.Add(delta)
		}
	}
	adjust(prev, -1)
	adjust(state, 1)
}

func (m *Manager) snapshot() []*supervisedStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*supervisedStream, len(m.streams))
	copy(out, m.streams)
	return out
}

// Health reports per-stream status for operators. Terminal-failed streams are
// listed but excluded from the healthy count.
func (m *Manager) Health() []domain.StreamHealth {
	streams := m.snapshot()
	out := make([]domain.StreamHealth, 0, len(streams))
	for _, s := range streams {
		s.mu.Lock()
		out = append(out, domain.StreamHealth{
			StreamID:          s.alloc.StreamID,
			State:             s.alloc.State,
			AccountCount:      s.alloc.AccountCount,
			ReconnectAttempts: s.alloc.ReconnectAttempts,
			LastError:         s.alloc.LastError,
			UpdatesForwarded:  s.forwarded.Load(),
		})
		s.mu.Unlock()
	}
	return out
}

// Fatal yields the terminal error after connection exhaustion.
func (m *Manager) Fatal() <-chan error {
	return m.fatal
}

// Stop cancels all supervisors and closes live connections. Safe to call
// more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.genCancel()
	m.mu.Unlock()
	close(m.stopCh)

	for _, s := range m.snapshot() {
		if conn := s.getConn(); conn != nil {
			conn.Close()
		}
	}
	m.genWG.Wait()
}
