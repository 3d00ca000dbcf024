package bus

import (
	"context"
	"log"
	"time"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/observability"
)

// DefaultDepthThresholds maps queue names to depths that trigger warnings.
// Crossing a threshold is an operational alert, never load shedding.
var DefaultDepthThresholds = map[string]int{
	domain.QueueRawTransactions: 100,
	domain.QueueFeedUpdates:     50,
	domain.QueuePnlUpdates:      25,
}

// DepthMonitor samples queue depths on a fixed interval.
type DepthMonitor struct {
	bus        *Bus
	thresholds map[string]int
	interval   time.Duration
	metrics    *observability.Metrics
}

// NewDepthMonitor creates a monitor over the given queues.
func NewDepthMonitor(b *Bus, thresholds map[string]int, interval time.Duration, metrics *observability.Metrics) *DepthMonitor {
	if thresholds == nil {
		thresholds = DefaultDepthThresholds
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &DepthMonitor{bus: b, thresholds: thresholds, interval: interval, metrics: metrics}
}

// Run samples depths until the context is cancelled.
func (m *DepthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

func (m *DepthMonitor) sample(ctx context.Context) {
	for queue, threshold := range m.thresholds {
		depth, err := m.bus.Depth(ctx, queue)
		if err != nil {
			log.Printf("[bus-monitor] depth query failed for %s: %v", queue, err)
			continue
		}
		if m.metrics != nil {
			m.metrics.QueueDepth.WithLabelValues(queue).Set(float64(depth))
		}
		if depth > threshold {
			log.Printf("[bus-monitor] WARNING: queue %s depth %d exceeds threshold %d", queue, depth, threshold)
		}
	}
}
