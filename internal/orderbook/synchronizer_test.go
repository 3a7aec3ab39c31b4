package orderbook

import (
	"context"
	"testing"
	"time"

	"github.com/andriipushkar/scalpbot/internal/exchange"
	"github.com/andriipushkar/scalpbot/internal/exchange/paper"
	"github.com/andriipushkar/scalpbot/internal/types"
)

func startSynchronizer(t *testing.T, gw *paper.Gateway, symbols []string) (*Synchronizer, context.CancelFunc) {
	t.Helper()
	s := NewSynchronizer(Config{SnapshotDepth: 10, BufferCapacity: 100}, gw, symbols, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	return s, cancel
}

func waitSynced(t *testing.T, s *Synchronizer) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Synced() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("synchronizer did not sync in time")
}

func TestSynchronizer_StartupSync(t *testing.T) {
	gw := paper.NewGateway(paper.Config{}, nil)
	gw.SetSnapshot(snapshot(100))

	s, cancel := startSynchronizer(t, gw, []string{"BTCUSDT"})
	defer cancel()
	waitSynced(t, s)

	book := s.Book("BTCUSDT")
	if book.LastUpdateID() != 100 {
		t.Errorf("LastUpdateID = %d, want 100", book.LastUpdateID())
	}
}

func TestSynchronizer_AppliesDiffsAndNotifies(t *testing.T) {
	gw := paper.NewGateway(paper.Config{}, nil)
	gw.SetSnapshot(snapshot(100))

	s, cancel := startSynchronizer(t, gw, []string{"BTCUSDT"})
	defer cancel()
	waitSynced(t, s)

	drainNotify(s.Updates("BTCUSDT"))

	gw.PushDepth(exchange.DepthUpdate{
		Symbol:  "BTCUSDT",
		FirstID: 101,
		LastID:  102,
		Bids:    []types.PriceLevel{level("100.5", "4")},
	})

	select {
	case <-s.Updates("BTCUSDT"):
	case <-time.After(2 * time.Second):
		t.Fatal("no update notification")
	}

	bid, _ := s.Book("BTCUSDT").BestBid()
	if !bid.Price.Equal(level("100.5", "4").Price) {
		t.Errorf("best bid = %s, want 100.5", bid.Price)
	}
}

func TestSynchronizer_ResyncOnGap(t *testing.T) {
	gw := paper.NewGateway(paper.Config{}, nil)
	gw.SetSnapshot(snapshot(100))

	s, cancel := startSynchronizer(t, gw, []string{"BTCUSDT"})
	defer cancel()
	waitSynced(t, s)

	// Serve a newer snapshot for the resync, then open a sequence gap.
	gw.SetSnapshot(snapshot(200))
	gw.PushDepth(exchange.DepthUpdate{
		Symbol:  "BTCUSDT",
		FirstID: 150,
		LastID:  151,
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Synced() && s.Book("BTCUSDT").LastUpdateID() >= 200 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("book not resynced, last id %d", s.Book("BTCUSDT").LastUpdateID())
}

func TestSynchronizer_UntrackedSymbolIgnored(t *testing.T) {
	gw := paper.NewGateway(paper.Config{}, nil)
	gw.SetSnapshot(snapshot(100))

	s, cancel := startSynchronizer(t, gw, []string{"BTCUSDT"})
	defer cancel()
	waitSynced(t, s)

	gw.PushDepth(exchange.DepthUpdate{
		Symbol:  "ETHUSDT",
		FirstID: 101,
		LastID:  101,
	})

	select {
	case <-s.Updates("BTCUSDT"):
		t.Error("notification raised for untracked symbol's event")
	case <-time.After(50 * time.Millisecond):
	}
}

// drainNotify clears a possibly pending wakeup.
func drainNotify(ch <-chan struct{}) {
	select {
	case <-ch:
	default:
	}
}
