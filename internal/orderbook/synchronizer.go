package orderbook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/andriipushkar/scalpbot/internal/exchange"
	"github.com/andriipushkar/scalpbot/internal/metrics"
	"github.com/andriipushkar/scalpbot/internal/types"
)

// Config holds synchronizer configuration.
type Config struct {
	SnapshotDepth  int
	BufferCapacity int
}

// DefaultConfig returns default synchronizer config.
func DefaultConfig() Config {
	return Config{
		SnapshotDepth:  100,
		BufferCapacity: DefaultBufferCapacity,
	}
}

// Synchronizer keeps the local books of a set of symbols in sync with the
// exchange. It consumes the multiplexed depth stream, applies diffs, and
// forces a fresh snapshot whenever a sequence gap or buffer overflow is
// detected.
//
// Every successfully applied diff raises the symbol's update notification
// with latest-wins semantics: a slow consumer sees one pending wakeup, never
// a growing queue.
type Synchronizer struct {
	cfg      Config
	gw       exchange.Gateway
	logger   *slog.Logger
	recorder *metrics.Recorder

	books  map[string]*Book
	notify map[string]chan struct{}

	mu      sync.Mutex
	syncing map[string]bool

	wg sync.WaitGroup
}

// NewSynchronizer creates a synchronizer for the given symbols.
func NewSynchronizer(cfg Config, gw exchange.Gateway, symbols []string, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SnapshotDepth <= 0 {
		cfg.SnapshotDepth = DefaultConfig().SnapshotDepth
	}

	s := &Synchronizer{
		cfg:      cfg,
		gw:       gw,
		logger:   logger,
		recorder: metrics.NewRecorder(),
		books:    make(map[string]*Book, len(symbols)),
		notify:   make(map[string]chan struct{}, len(symbols)),
		syncing:  make(map[string]bool, len(symbols)),
	}
	for _, sym := range symbols {
		s.books[sym] = NewBook(sym, cfg.BufferCapacity)
		s.notify[sym] = make(chan struct{}, 1)
	}
	return s
}

// Book returns the book for a symbol, or nil if the symbol is not tracked.
func (s *Synchronizer) Book(symbol string) *Book {
	return s.books[symbol]
}

// Updates returns the symbol's book-update notification channel. The channel
// carries at most one pending wakeup.
func (s *Synchronizer) Updates(symbol string) <-chan struct{} {
	return s.notify[symbol]
}

// Synced reports whether every tracked book is synced.
func (s *Synchronizer) Synced() bool {
	for _, b := range s.books {
		if b.State() != StateSynced {
			return false
		}
	}
	return true
}

// Run subscribes to the depth stream and processes diffs until ctx is
// cancelled. It blocks; run it in its own goroutine.
func (s *Synchronizer) Run(ctx context.Context) error {
	symbols := make([]string, 0, len(s.books))
	for sym := range s.books {
		symbols = append(symbols, sym)
	}

	updates, err := s.gw.SubscribeDepth(ctx, symbols)
	if err != nil {
		return fmt.Errorf("subscribe depth: %w", err)
	}

	for _, sym := range symbols {
		s.triggerResync(ctx, sym, "startup")
	}

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case ev, ok := <-updates:
			if !ok {
				s.wg.Wait()
				return types.ErrNotConnected
			}
			s.handleDiff(ctx, ev)
		}
	}
}

func (s *Synchronizer) handleDiff(ctx context.Context, ev exchange.DepthUpdate) {
	book, ok := s.books[ev.Symbol]
	if !ok {
		return
	}

	err := book.ApplyDiff(ev)
	switch {
	case err == nil:
		if book.State() == StateSynced {
			s.recorder.RecordDepthUpdate(ev.Symbol)
			s.recorder.RecordHeartbeat()
			s.notifyUpdate(ev.Symbol)
		}
	case errors.Is(err, types.ErrSequenceGap):
		s.logger.Warn("sequence gap, resyncing book",
			"symbol", ev.Symbol,
			"last_id", book.LastUpdateID(),
			"first_id", ev.FirstID,
		)
		book.Reset()
		s.triggerResync(ctx, ev.Symbol, "gap")
	case errors.Is(err, types.ErrBufferOverflow):
		s.logger.Warn("pre-sync buffer overflow, resyncing book", "symbol", ev.Symbol)
		book.Reset()
		s.triggerResync(ctx, ev.Symbol, "buffer_overflow")
	}
}

// notifyUpdate raises the symbol's wakeup without blocking. A wakeup already
// pending is enough; the consumer reads the live book, not the event.
func (s *Synchronizer) notifyUpdate(symbol string) {
	select {
	case s.notify[symbol] <- struct{}{}:
	default:
	}
}

// triggerResync fetches a fresh snapshot in the background. Diffs arriving
// while the fetch is in flight are buffered by the book and replayed on
// arrival. At most one fetch per symbol runs at a time.
func (s *Synchronizer) triggerResync(ctx context.Context, symbol, cause string) {
	s.mu.Lock()
	if s.syncing[symbol] {
		s.mu.Unlock()
		return
	}
	s.syncing[symbol] = true
	s.mu.Unlock()

	s.recorder.RecordBookResync(symbol, cause)
	s.recorder.RecordBookSynced(symbol, false)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.syncing[symbol] = false
			s.mu.Unlock()
		}()

		for retry := 0; ; retry++ {
			snap, err := s.gw.GetOrderBookSnapshot(ctx, symbol, s.cfg.SnapshotDepth)
			if err == nil {
				book := s.books[symbol]
				book.ApplySnapshot(snap)
				s.recorder.RecordBookSynced(symbol, true)
				s.logger.Info("order book synced",
					"symbol", symbol,
					"last_update_id", book.LastUpdateID(),
					"cause", cause,
				)
				s.notifyUpdate(symbol)
				return
			}

			if ctx.Err() != nil {
				return
			}
			delay := exchange.Backoff(retry)
			s.logger.Warn("snapshot fetch failed",
				"symbol", symbol,
				"err", err,
				"retry_in", delay,
			)
			s.recorder.RecordError("snapshot_fetch")

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()
}
