package alerting

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// MultiAlerter fans one alert out to every configured channel. Channels are
// independent: a failing telegram send never suppresses the console line.
type MultiAlerter struct {
	mu       sync.RWMutex
	channels []Alerter
	logger   *slog.Logger
}

// NewMultiAlerter creates a fan-out alerter over the given channels.
func NewMultiAlerter(logger *slog.Logger, channels ...Alerter) *MultiAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiAlerter{
		channels: channels,
		logger:   logger,
	}
}

// Name implements Alerter.
func (m *MultiAlerter) Name() string { return "multi" }

// AddAlerter registers another channel.
func (m *MultiAlerter) AddAlerter(a Alerter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, a)
}

// Alert delivers the alert to every channel concurrently and returns the
// joined errors of the channels that failed.
func (m *MultiAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	m.mu.RLock()
	channels := append([]Alerter(nil), m.channels...)
	m.mu.RUnlock()

	if len(channels) == 0 {
		return nil
	}

	errCh := make(chan error, len(channels))
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(a Alerter) {
			defer wg.Done()
			if err := a.Alert(ctx, severity, message, fields...); err != nil {
				m.logger.Error("alert channel failed",
					"channel", a.Name(),
					"severity", severity.String(),
					"err", err,
				)
				errCh <- err
			}
		}(ch)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// AlertEvent sends an alert at the event's default severity.
func (m *MultiAlerter) AlertEvent(ctx context.Context, event AlertEvent, message string, fields ...any) error {
	return m.Alert(ctx, EventSeverity(event), message, fields...)
}
