// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. One instance is
// constructed at process start and passed to the services that record into it.
type Metrics struct {
	registry *prometheus.Registry

	// Stream manager metrics
	StreamsActive       prometheus.Gauge
	StreamsReconnecting prometheus.Gauge
	StreamsFailed       prometheus.Gauge
	UpdatesForwarded    prometheus.Counter
	UpdatesDropped      *prometheus.CounterVec
	StreamReconnects    prometheus.Counter
	ConnectionProbes    *prometheus.CounterVec

	// Bus metrics
	QueueDepth           *prometheus.GaugeVec
	MessagesPublished    *prometheus.CounterVec
	MessagesDeadLettered *prometheus.CounterVec

	// Processor metrics
	TransactionsFiltered prometheus.Counter
	TransactionsMatched  prometheus.Counter
	SwapsDetected        prometheus.Counter
	RPCLookupErrors      prometheus.Counter
	BatchFlushes         *prometheus.CounterVec
	BatchLatency         prometheus.Histogram

	// PNL metrics
	PositionsOpen       prometheus.Gauge
	RealizedEvents      prometheus.Counter
	SellClampWarnings   prometheus.Counter
	SnapshotRecomputes  prometheus.Counter
	PriceLookupMisses   prometheus.Counter
	RecomputeLatency    prometheus.Histogram

	// Gem finder metrics
	GemsDiscovered     prometheus.Counter
	GemDedupSuppressed prometheus.Counter
	GemScanLatency     prometheus.Histogram

	// Database metrics
	DBQueryErrors *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all metrics registered on a
// private registry, so multiple instances can coexist in tests.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "wallet_pulse"
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		StreamsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "streams_active",
			Help:      "Number of stream allocations currently active",
		}),
		StreamsReconnecting: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "streams_reconnecting",
			Help:      "Number of stream allocations currently reconnecting",
		}),
		StreamsFailed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "streams_failed",
			Help:      "Number of stream allocations in terminal failure",
		}),
		UpdatesForwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "updates_forwarded_total",
			Help:      "Total feed updates published to the bus",
		}),
		UpdatesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "updates_dropped_total",
			Help:      "Total feed updates dropped by reason",
		}, []string{"reason"}),
		StreamReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total per-stream reconnect attempts",
		}),
		ConnectionProbes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connection_probes_total",
			Help:      "Total connection liveness probes by outcome",
		}, []string{"outcome"}),

		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "queue_depth",
			Help:      "Pending messages per queue",
		}, []string{"queue"}),
		MessagesPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "messages_published_total",
			Help:      "Messages published per queue",
		}, []string{"queue"}),
		MessagesDeadLettered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "messages_dead_lettered_total",
			Help:      "Messages moved to dead-letter areas per queue",
		}, []string{"queue"}),

		TransactionsFiltered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "transactions_filtered_total",
			Help:      "Raw transactions skipped by the tracked-wallet pre-filter",
		}),
		TransactionsMatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "transactions_matched_total",
			Help:      "Raw transactions that passed the pre-filter",
		}),
		SwapsDetected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "swaps_detected_total",
			Help:      "Normalized swap events emitted",
		}),
		RPCLookupErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "rpc_lookup_errors_total",
			Help:      "Transaction detail lookups abandoned after RPC failure",
		}),
		BatchFlushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "batch_flushes_total",
			Help:      "Batch flushes by trigger (size or timer)",
		}, []string{"trigger"}),
		BatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "batch_latency_seconds",
			Help:      "Wall time to process one batch",
			Buckets:   prometheus.DefBuckets,
		}),

		PositionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pnl",
			Name:      "positions_open",
			Help:      "Open positions across all wallets",
		}),
		RealizedEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pnl",
			Name:      "realized_events_total",
			Help:      "Realized PNL events appended",
		}),
		SellClampWarnings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pnl",
			Name:      "sell_clamp_warnings_total",
			Help:      "Sells clamped to held balance, a data-quality signal",
		}),
		SnapshotRecomputes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pnl",
			Name:      "snapshot_recomputes_total",
			Help:      "Snapshot rollup recomputations",
		}),
		PriceLookupMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pnl",
			Name:      "price_lookup_misses_total",
			Help:      "Positions skipped for one cycle due to missing price",
		}),
		RecomputeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pnl",
			Name:      "recompute_latency_seconds",
			Help:      "Wall time of unrealized PNL recompute cycles",
			Buckets:   prometheus.DefBuckets,
		}),

		GemsDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gem",
			Name:      "discoveries_total",
			Help:      "Gem candidates emitted",
		}),
		GemDedupSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gem",
			Name:      "dedup_suppressed_total",
			Help:      "Re-qualifying tokens suppressed by the 24h dedup window",
		}),
		GemScanLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gem",
			Name:      "scan_latency_seconds",
			Help:      "Wall time of gem discovery scans",
			Buckets:   prometheus.DefBuckets,
		}),

		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Database query errors by store and operation",
		}, []string{"store", "operation"}),
	}
}

// Handler returns an HTTP handler serving this instance's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
