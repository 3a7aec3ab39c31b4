package binance

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andriipushkar/scalpbot/internal/exchange"
)

// wsServer accepts websocket upgrades and immediately drops each connection,
// so the client's read loop fails fast.
func wsServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestReadDepthStream_ReleasesWatcherOnDisconnect(t *testing.T) {
	wsURL := wsServer(t)
	c := NewClient(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan exchange.DepthUpdate, 1)
	before := runtime.NumGoroutine()

	// Reconnect cycles: each call opens a connection that the server drops.
	const cycles = 10
	for i := 0; i < cycles; i++ {
		if err := c.readDepthStream(ctx, wsURL, out); err == nil {
			t.Fatal("expected a transport error after server-side close")
		}
	}

	// The per-connection watcher goroutines must exit with their
	// connections, not accumulate until ctx is cancelled.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if runtime.NumGoroutine() < before+cycles {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("goroutines grew from %d to %d across %d reconnects",
				before, runtime.NumGoroutine(), cycles)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
