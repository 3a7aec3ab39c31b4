package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/andriipushkar/scalpbot/internal/exchange"
	"github.com/andriipushkar/scalpbot/internal/types"
)

const (
	// listenKeyKeepAlive is well inside the 60 minute session validity.
	listenKeyKeepAlive = 30 * time.Minute

	readTimeout  = 90 * time.Second
	writeTimeout = 10 * time.Second

	depthChanBuffer = 256
	eventChanBuffer = 64
)

// SubscribeDepth opens one multiplexed connection carrying the depth diff
// streams of all symbols. The returned channel closes when ctx is
// cancelled; transport failures reconnect internally with backoff.
func (c *Client) SubscribeDepth(ctx context.Context, symbols []string) (<-chan exchange.DepthUpdate, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: no symbols", types.ErrInvalidSymbol)
	}

	streams := make([]string, len(symbols))
	for i, s := range symbols {
		streams[i] = strings.ToLower(s) + "@depth@100ms"
	}
	wsURL := c.streamURL + "/stream?streams=" + strings.Join(streams, "/")

	out := make(chan exchange.DepthUpdate, depthChanBuffer)
	go func() {
		defer close(out)
		c.runStream(ctx, "depth", func(ctx context.Context) error {
			return c.readDepthStream(ctx, wsURL, out)
		})
	}()
	return out, nil
}

// SubscribeUserEvents opens the user-data stream. Each (re)connection
// creates a fresh listen key; a keepalive refresh runs for the connection's
// lifetime.
func (c *Client) SubscribeUserEvents(ctx context.Context) (<-chan exchange.OrderEvent, error) {
	out := make(chan exchange.OrderEvent, eventChanBuffer)
	go func() {
		defer close(out)
		c.runStream(ctx, "user", func(ctx context.Context) error {
			return c.readUserStream(ctx, out)
		})
	}()
	return out, nil
}

// runStream drives one stream's reconnect loop until ctx is cancelled.
func (c *Client) runStream(ctx context.Context, name string, connect func(context.Context) error) {
	retry := 0
	for {
		c.logger.Info("stream connecting", "stream", name)
		err := connect(ctx)
		if ctx.Err() != nil {
			return
		}

		backoff := exchange.Backoff(retry)
		c.logger.Warn("stream disconnected, reconnecting",
			"stream", name,
			"retry", retry,
			"backoff", backoff,
			"err", err,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		retry++
	}
}

// combinedDepthMessage is the envelope of the multiplexed market stream.
type combinedDepthMessage struct {
	Stream string          `json:"stream"`
	Data   depthStreamData `json:"data"`
}

type depthStreamData struct {
	EventType string      `json:"e"`
	Symbol    string      `json:"s"`
	FirstID   int64       `json:"U"`
	LastID    int64       `json:"u"`
	Bids      [][2]string `json:"b"`
	Asks      [][2]string `json:"a"`
}

// readDepthStream holds one depth connection open, forwarding parsed diffs
// until the transport fails or ctx is cancelled.
func (c *Client) readDepthStream(ctx context.Context, wsURL string, out chan<- exchange.DepthUpdate) error {
	conn, err := dial(ctx, wsURL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go closeOnDone(connCtx, conn)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read depth message: %w", err)
		}

		var msg combinedDepthMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("malformed depth message dropped", "err", err)
			continue
		}
		if msg.Data.EventType != "depthUpdate" {
			continue
		}

		update, err := parseDepthUpdate(msg.Data)
		if err != nil {
			c.logger.Warn("unparseable depth update dropped", "symbol", msg.Data.Symbol, "err", err)
			continue
		}

		select {
		case out <- update:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func parseDepthUpdate(d depthStreamData) (exchange.DepthUpdate, error) {
	bids, err := parseLevels(d.Bids)
	if err != nil {
		return exchange.DepthUpdate{}, fmt.Errorf("parse bids: %w", err)
	}
	asks, err := parseLevels(d.Asks)
	if err != nil {
		return exchange.DepthUpdate{}, fmt.Errorf("parse asks: %w", err)
	}
	return exchange.DepthUpdate{
		Symbol:  d.Symbol,
		FirstID: d.FirstID,
		LastID:  d.LastID,
		Bids:    bids,
		Asks:    asks,
	}, nil
}

// userStreamEnvelope discriminates user-data event types.
type userStreamEnvelope struct {
	EventType string          `json:"e"`
	Order     orderUpdateData `json:"o"`
}

type orderUpdateData struct {
	Symbol        string `json:"s"`
	ClientOrderID string `json:"c"`
	Side          string `json:"S"`
	Type          string `json:"o"`
	Status        string `json:"X"`
	OrderID       int64  `json:"i"`
	AvgPrice      string `json:"ap"`
	CumFilledQty  string `json:"z"`
	ReduceOnly    bool   `json:"R"`
	TradeTime     int64  `json:"T"`
}

// readUserStream holds one user-data connection open, running the listen key
// keepalive alongside the read loop.
func (c *Client) readUserStream(ctx context.Context, out chan<- exchange.OrderEvent) error {
	listenKey, err := c.createListenKey(ctx)
	if err != nil {
		return err
	}

	conn, err := dial(ctx, c.streamURL+"/ws/"+listenKey)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go closeOnDone(connCtx, conn)
	go c.keepAliveLoop(connCtx, listenKey)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read user message: %w", err)
		}

		var env userStreamEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.Warn("malformed user message dropped", "err", err)
			continue
		}

		switch env.EventType {
		case "ORDER_TRADE_UPDATE":
			ev, err := parseOrderEvent(env.Order)
			if err != nil {
				c.logger.Warn("unparseable order update dropped", "symbol", env.Order.Symbol, "err", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		case "listenKeyExpired":
			return fmt.Errorf("listen key expired")
		}
	}
}

func parseOrderEvent(o orderUpdateData) (exchange.OrderEvent, error) {
	avg, err := decimal.NewFromString(o.AvgPrice)
	if err != nil {
		return exchange.OrderEvent{}, fmt.Errorf("parse avg price %q: %w", o.AvgPrice, err)
	}
	filled, err := decimal.NewFromString(o.CumFilledQty)
	if err != nil {
		return exchange.OrderEvent{}, fmt.Errorf("parse filled qty %q: %w", o.CumFilledQty, err)
	}
	return exchange.OrderEvent{
		Symbol:        o.Symbol,
		OrderID:       strconv.FormatInt(o.OrderID, 10),
		ClientOrderID: o.ClientOrderID,
		Status:        exchange.OrderStatus(o.Status),
		Type:          exchange.OrderType(o.Type),
		Side:          exchange.OrderSide(o.Side),
		AvgFillPrice:  avg,
		FilledQty:     filled,
		ReduceOnly:    o.ReduceOnly,
		Time:          time.UnixMilli(o.TradeTime),
	}, nil
}

// keepAliveLoop refreshes the listen key until the connection context ends.
func (c *Client) keepAliveLoop(ctx context.Context, listenKey string) {
	ticker := time.NewTicker(listenKeyKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.keepAliveListenKey(ctx, listenKey); err != nil {
				c.logger.Error("listen key keepalive failed", "err", err)
			}
		}
	}
}

// dial opens a websocket connection with ping/pong handling installed.
func dial(ctx context.Context, wsURL string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", types.ErrNotConnected, wsURL, err)
	}
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})
	return conn, nil
}

// closeOnDone force-closes the connection when ctx ends so a blocked read
// returns promptly.
func closeOnDone(ctx context.Context, conn *websocket.Conn) {
	<-ctx.Done()
	_ = conn.Close()
}
