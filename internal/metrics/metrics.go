// Package metrics exposes Prometheus metrics for the trading bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Order book metrics.
var (
	DepthUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_depth_updates_total",
		Help: "Depth stream events applied per symbol.",
	}, []string{"symbol"})

	BookResyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_book_resyncs_total",
		Help: "Order book resynchronizations per symbol and cause.",
	}, []string{"symbol", "cause"})

	BookSynced = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bot_book_synced",
		Help: "1 when the symbol's order book is synced, 0 otherwise.",
	}, []string{"symbol"})
)

// Order and position metrics.
var (
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_orders_total",
		Help: "Orders submitted per symbol, side and outcome.",
	}, []string{"symbol", "side", "status"})

	BracketRollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_bracket_rollbacks_total",
		Help: "Positions flattened after partial bracket placement failures.",
	}, []string{"symbol"})

	PositionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bot_positions_open",
		Help: "Number of open positions tracked locally.",
	})

	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_trades_total",
		Help: "Completed trades per symbol and exit reason.",
	}, []string{"symbol", "reason"})
)

// Signal metrics.
var (
	SignalsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_signals_generated_total",
		Help: "Entry signals generated per strategy and side.",
	}, []string{"strategy", "side"})

	SignalsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_signals_rejected_total",
		Help: "Entry signals rejected before submission, by reason.",
	}, []string{"reason"})
)

// Reconciliation metrics.
var (
	ReconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_reconcile_runs_total",
		Help: "Reconciliation passes executed.",
	})

	ReconcileCorrectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_reconcile_corrections_total",
		Help: "Local state corrections applied by reconciliation, by kind.",
	}, []string{"kind"})
)

// Connectivity and health metrics.
var (
	StreamConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bot_stream_connected",
		Help: "1 when the named stream is connected, 0 otherwise.",
	}, []string{"stream"})

	OrderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bot_order_latency_seconds",
		Help:    "Round-trip latency of order submissions.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	HeartbeatTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bot_heartbeat_timestamp_seconds",
		Help: "Unix time of the last processed event.",
	})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_errors_total",
		Help: "Errors by type.",
	}, []string{"type"})

	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bot_build_info",
		Help: "Build information.",
	}, []string{"version", "commit", "build_time"})
)

// SetBuildInfo records build metadata.
func SetBuildInfo(version, commit, buildTime string) {
	BuildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
