// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Monitor metrics
	TradeEventsClassified *prometheus.CounterVec
	SignaturesSkipped     prometheus.Counter
	ActiveSubscriptions   prometheus.Gauge
	RateLimitWaits        prometheus.Counter

	// Mirror metrics
	MirrorsExecuted     *prometheus.CounterVec
	MirrorProceeds      prometheus.Histogram
	ConfirmationPolls   prometheus.Histogram
	ConfirmationTimeout prometheus.Counter

	// Escrow metrics
	LocksCreated    prometheus.Counter
	LocksReleased   prometheus.Counter
	DegradedLocks   prometheus.Counter
	ReleasesRefused prometheus.Counter

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_copytrade"
	}

	return &Metrics{
		TradeEventsClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "trade_events_classified_total",
			Help:      "Total number of trade events classified by type",
		}, []string{"type"}),
		SignaturesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "signatures_skipped_total",
			Help:      "Total number of already-seen signatures skipped",
		}),
		ActiveSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "active_subscriptions",
			Help:      "Current number of (client, trader) subscriptions",
		}),
		RateLimitWaits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "rate_limit_waits_total",
			Help:      "Total number of classification calls delayed by the rate limiter",
		}),

		MirrorsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "executions_total",
			Help:      "Total number of mirror executions by outcome",
		}, []string{"outcome"}),
		MirrorProceeds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "proceeds_raw_units",
			Help:      "Measured proceeds per mirror in raw token units",
			Buckets:   prometheus.ExponentialBuckets(1e3, 10, 8),
		}),
		ConfirmationPolls: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "confirmation_polls",
			Help:      "Number of polls before a mirror confirmed",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		ConfirmationTimeout: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "confirmation_timeouts_total",
			Help:      "Total number of mirrors not confirmed within the poll budget",
		}),

		LocksCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "locks_created_total",
			Help:      "Total number of escrow locks created",
		}),
		LocksReleased: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "locks_released_total",
			Help:      "Total number of escrow locks released",
		}),
		DegradedLocks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "degraded_locks_total",
			Help:      "Total number of mirrors whose escrow lock failed",
		}),
		ReleasesRefused: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "releases_refused_total",
			Help:      "Total number of releases refused while still locked",
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTradeEvent increments the classified events counter.
func RecordTradeEvent(tradeType string) {
	DefaultMetrics.TradeEventsClassified.WithLabelValues(tradeType).Inc()
}

// RecordMirror records a mirror execution outcome.
func RecordMirror(outcome string) {
	DefaultMetrics.MirrorsExecuted.WithLabelValues(outcome).Inc()
}

// RecordProceeds records measured proceeds for a confirmed mirror.
func RecordProceeds(rawUnits uint64) {
	DefaultMetrics.MirrorProceeds.Observe(float64(rawUnits))
}

// RecordLockCreated increments the locks created counter.
func RecordLockCreated() {
	DefaultMetrics.LocksCreated.Inc()
}

// RecordLockReleased increments the locks released counter.
func RecordLockReleased() {
	DefaultMetrics.LocksReleased.Inc()
}

// RecordDegradedLock increments the degraded locks counter.
func RecordDegradedLock() {
	DefaultMetrics.DegradedLocks.Inc()
}

// RecordReleaseRefused increments the refused releases counter.
func RecordReleaseRefused() {
	DefaultMetrics.ReleasesRefused.Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
