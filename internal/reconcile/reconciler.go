// Package reconcile periodically squares local position state against the
// exchange, the safety net under the event-driven lifecycle.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/andriipushkar/scalpbot/internal/alerting"
	"github.com/andriipushkar/scalpbot/internal/exchange"
	"github.com/andriipushkar/scalpbot/internal/metrics"
	"github.com/andriipushkar/scalpbot/internal/position"
)

// DefaultInterval is how often the loop runs when the config leaves it unset.
const DefaultInterval = 60 * time.Second

// Reconciler drives the periodic reconciliation loop.
type Reconciler struct {
	gw       exchange.Gateway
	store    *position.Store
	alerter  alerting.Alerter
	recorder *metrics.Recorder
	interval time.Duration
	logger   *slog.Logger
}

// New creates a reconciler. A non-positive interval falls back to
// DefaultInterval.
func New(gw exchange.Gateway, store *position.Store, interval time.Duration, alerter alerting.Alerter, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{
		gw:       gw,
		store:    store,
		alerter:  alerter,
		recorder: metrics.NewRecorder(),
		interval: interval,
		logger:   logger,
	}
}

// Run executes one reconciliation immediately, then repeats on the interval
// until ctx is cancelled. The startup pass clears out positions that closed
// while the bot was down before any trading decision is made.
func (r *Reconciler) Run(ctx context.Context) error {
	if err := r.Reconcile(ctx); err != nil {
		r.logger.Error("startup reconciliation failed", "err", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Reconcile(ctx); err != nil {
				r.logger.Error("reconciliation failed", "err", err)
				r.recorder.RecordError("reconcile")
			}
		}
	}
}

// Reconcile runs a single pass. When the exchange cannot be reached the
// local store is cleared: trading decisions must not be made against
// position state that cannot be verified.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	r.recorder.RecordReconcileRun()
	r.recorder.RecordHeartbeat()

	exchangePositions, err := r.gw.GetOpenPositions(ctx)
	if err != nil {
		dropped := r.store.Count()
		r.store.Clear()
		if dropped > 0 {
			r.logger.Error("exchange unreachable, cleared unverifiable local positions",
				"dropped", dropped,
				"err", err,
			)
			r.alert(ctx, alerting.SeverityHigh, "Reconciliation lost exchange contact, local positions cleared",
				"dropped", dropped,
			)
			r.recorder.RecordPositionsOpen(0)
		}
		return fmt.Errorf("get open positions: %w", err)
	}

	res := r.store.Reconcile(exchangePositions)

	for _, symbol := range res.Dropped {
		r.recorder.RecordReconcileCorrection("dropped")
		r.alert(ctx, alerting.SeverityWarning, "Stale local position dropped", "symbol", symbol)
	}
	for _, symbol := range res.Corrected {
		r.recorder.RecordReconcileCorrection("corrected")
		r.alert(ctx, alerting.SeverityWarning, "Position quantity corrected from exchange", "symbol", symbol)
	}
	for _, symbol := range res.Untracked {
		r.recorder.RecordReconcileCorrection("untracked")
		r.alert(ctx, alerting.SeverityHigh, "Untracked position open on exchange", "symbol", symbol)
	}
	r.recorder.RecordPositionsOpen(r.store.Count())

	if len(res.Dropped)+len(res.Corrected)+len(res.Untracked) > 0 {
		r.logger.Warn("reconciliation applied corrections",
			"dropped", res.Dropped,
			"corrected", res.Corrected,
			"untracked", res.Untracked,
		)
	}
	return nil
}

func (r *Reconciler) alert(ctx context.Context, severity alerting.Severity, message string, fields ...any) {
	if r.alerter == nil {
		return
	}
	if err := r.alerter.Alert(ctx, severity, message, fields...); err != nil {
		r.logger.Warn("failed to send alert", "err", err)
	}
}
