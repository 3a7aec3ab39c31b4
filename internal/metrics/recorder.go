package metrics

import (
	"time"
)

// Recorder provides methods for recording metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordDepthUpdate records an applied depth stream event.
func (r *Recorder) RecordDepthUpdate(symbol string) {
	DepthUpdatesTotal.WithLabelValues(symbol).Inc()
}

// RecordBookResync records an order book resynchronization.
func (r *Recorder) RecordBookResync(symbol, cause string) {
	BookResyncsTotal.WithLabelValues(symbol, cause).Inc()
}

// RecordBookSynced records a book's synchronization state.
func (r *Recorder) RecordBookSynced(symbol string, synced bool) {
	if synced {
		BookSynced.WithLabelValues(symbol).Set(1)
	} else {
		BookSynced.WithLabelValues(symbol).Set(0)
	}
}

// RecordOrder records an order submission outcome.
func (r *Recorder) RecordOrder(symbol, side, status string) {
	OrdersTotal.WithLabelValues(symbol, side, status).Inc()
}

// RecordBracketRollback records a rollback-by-flattening.
func (r *Recorder) RecordBracketRollback(symbol string) {
	BracketRollbacksTotal.WithLabelValues(symbol).Inc()
}

// RecordPositionsOpen records the number of tracked open positions.
func (r *Recorder) RecordPositionsOpen(n int) {
	PositionsOpen.Set(float64(n))
}

// RecordTrade records a completed trade.
func (r *Recorder) RecordTrade(symbol, reason string) {
	TradesTotal.WithLabelValues(symbol, reason).Inc()
}

// RecordSignal records a generated entry signal.
func (r *Recorder) RecordSignal(strategy, side string) {
	SignalsGenerated.WithLabelValues(strategy, side).Inc()
}

// RecordSignalRejected records a rejected entry signal.
func (r *Recorder) RecordSignalRejected(reason string) {
	SignalsRejected.WithLabelValues(reason).Inc()
}

// RecordReconcileRun records a reconciliation pass.
func (r *Recorder) RecordReconcileRun() {
	ReconcileRunsTotal.Inc()
}

// RecordReconcileCorrection records a local state correction.
func (r *Recorder) RecordReconcileCorrection(kind string) {
	ReconcileCorrectionsTotal.WithLabelValues(kind).Inc()
}

// RecordStreamStatus records a stream's connection status.
func (r *Recorder) RecordStreamStatus(stream string, connected bool) {
	if connected {
		StreamConnected.WithLabelValues(stream).Set(1)
	} else {
		StreamConnected.WithLabelValues(stream).Set(0)
	}
}

// RecordHeartbeat records a heartbeat.
func (r *Recorder) RecordHeartbeat() {
	HeartbeatTimestamp.Set(float64(time.Now().Unix()))
}

// RecordError records an error.
func (r *Recorder) RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}

// Timer is a helper for measuring latency.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed duration.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ObserveOrder observes the elapsed time as order latency.
func (t *Timer) ObserveOrder() {
	OrderLatency.Observe(t.Elapsed().Seconds())
}
