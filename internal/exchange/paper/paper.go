// Package paper provides a simulated exchange gateway for dry runs and
// tests. Orders rest until filled explicitly or, for market orders with
// auto-fill enabled, fill immediately at the mark price.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andriipushkar/scalpbot/internal/exchange"
	"github.com/andriipushkar/scalpbot/internal/types"
)

// Config holds paper trading configuration.
type Config struct {
	InitialBalance decimal.Decimal
	AutoFillMarket bool
}

// DefaultConfig returns default paper trading config.
func DefaultConfig() Config {
	return Config{
		InitialBalance: decimal.NewFromInt(10000),
		AutoFillMarket: true,
	}
}

// Gateway implements exchange.Gateway against in-memory state.
type Gateway struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	balance   decimal.Decimal
	rules     map[string]exchange.SymbolRules
	snapshots map[string]*exchange.DepthSnapshot
	marks     map[string]decimal.Decimal
	orders    map[string]*restingOrder
	positions map[string]exchange.Position

	depthCh chan exchange.DepthUpdate
	eventCh chan exchange.OrderEvent

	nextID atomic.Int64

	// Test hooks. When set, a non-nil return rejects the call.
	CreateOrderHook func(exchange.OrderRequest) error
	CancelOrderHook func(symbol, orderID string) error
	PositionsErr    error
}

type restingOrder struct {
	req exchange.OrderRequest
	ack exchange.OrderAck
}

// NewGateway creates a paper gateway.
func NewGateway(cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		cfg:       cfg,
		logger:    logger,
		balance:   cfg.InitialBalance,
		rules:     make(map[string]exchange.SymbolRules),
		snapshots: make(map[string]*exchange.DepthSnapshot),
		marks:     make(map[string]decimal.Decimal),
		orders:    make(map[string]*restingOrder),
		positions: make(map[string]exchange.Position),
		depthCh:   make(chan exchange.DepthUpdate, 256),
		eventCh:   make(chan exchange.OrderEvent, 64),
	}
}

// SetSymbolRules registers the precision rules served by GetSymbolRules.
func (g *Gateway) SetSymbolRules(rules exchange.SymbolRules) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules[rules.Symbol] = rules
}

// SetSnapshot sets the depth snapshot served for a symbol and derives the
// mark price from its best bid.
func (g *Gateway) SetSnapshot(snap *exchange.DepthSnapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshots[snap.Symbol] = snap
	if len(snap.Bids) > 0 {
		g.marks[snap.Symbol] = snap.Bids[0].Price
	}
}

// SetMarkPrice sets the price market orders auto-fill at.
func (g *Gateway) SetMarkPrice(symbol string, price decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.marks[symbol] = price
}

// SetBalance overrides the available balance.
func (g *Gateway) SetBalance(balance decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balance = balance
}

// SetPosition installs an exchange-side position directly, for
// reconciliation scenarios.
func (g *Gateway) SetPosition(pos exchange.Position) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if pos.Quantity.IsZero() {
		delete(g.positions, pos.Symbol)
		return
	}
	g.positions[pos.Symbol] = pos
}

// PushDepth injects one depth diff into the market stream.
func (g *Gateway) PushDepth(update exchange.DepthUpdate) {
	g.depthCh <- update
}

// EmitOrderEvent injects a raw event into the user stream.
func (g *Gateway) EmitOrderEvent(ev exchange.OrderEvent) {
	g.eventCh <- ev
}

// Fill fills a resting order at the given price, applying the position
// change and emitting the FILLED event.
func (g *Gateway) Fill(orderID string, price decimal.Decimal) error {
	g.mu.Lock()
	ro, ok := g.orders[orderID]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrUnknownOrder, orderID)
	}
	delete(g.orders, orderID)
	g.applyFillLocked(ro.req, price)
	g.mu.Unlock()

	g.eventCh <- exchange.OrderEvent{
		Symbol:        ro.req.Symbol,
		OrderID:       orderID,
		ClientOrderID: ro.req.ClientOrderID,
		Status:        exchange.StatusFilled,
		Type:          ro.req.Type,
		Side:          ro.req.Side,
		AvgFillPrice:  price,
		FilledQty:     ro.req.Quantity,
		ReduceOnly:    ro.req.ReduceOnly,
		Time:          time.Now(),
	}
	return nil
}

// Expire cancels a resting order with EXPIRED status, as an unfilled limit
// entry would.
func (g *Gateway) Expire(orderID string) error {
	return g.retire(orderID, exchange.StatusExpired)
}

func (g *Gateway) retire(orderID string, status exchange.OrderStatus) error {
	g.mu.Lock()
	ro, ok := g.orders[orderID]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrUnknownOrder, orderID)
	}
	delete(g.orders, orderID)
	g.mu.Unlock()

	g.eventCh <- exchange.OrderEvent{
		Symbol:        ro.req.Symbol,
		OrderID:       orderID,
		ClientOrderID: ro.req.ClientOrderID,
		Status:        status,
		Type:          ro.req.Type,
		Side:          ro.req.Side,
		ReduceOnly:    ro.req.ReduceOnly,
		Time:          time.Now(),
	}
	return nil
}

// OpenOrders returns the ids of all resting orders for a symbol.
func (g *Gateway) OpenOrders(symbol string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []string
	for id, ro := range g.orders {
		if ro.req.Symbol == symbol {
			ids = append(ids, id)
		}
	}
	return ids
}

// Position returns the exchange-side position for a symbol.
func (g *Gateway) Position(symbol string) (exchange.Position, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pos, ok := g.positions[symbol]
	return pos, ok
}

// applyFillLocked mutates the position map for one fill. Callers hold g.mu.
func (g *Gateway) applyFillLocked(req exchange.OrderRequest, price decimal.Decimal) {
	side := types.SideLong
	if req.Side == exchange.Sell {
		side = types.SideShort
	}

	pos, open := g.positions[req.Symbol]
	if !open {
		g.positions[req.Symbol] = exchange.Position{
			Symbol:     req.Symbol,
			Side:       side,
			Quantity:   req.Quantity,
			EntryPrice: price,
		}
		return
	}

	if side == pos.Side {
		pos.Quantity = pos.Quantity.Add(req.Quantity)
		g.positions[req.Symbol] = pos
		return
	}

	remaining := pos.Quantity.Sub(req.Quantity)
	if remaining.IsPositive() {
		pos.Quantity = remaining
		g.positions[req.Symbol] = pos
		return
	}
	delete(g.positions, req.Symbol)
}

// GetOrderBookSnapshot serves the configured snapshot.
func (g *Gateway) GetOrderBookSnapshot(_ context.Context, symbol string, _ int) (*exchange.DepthSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap, ok := g.snapshots[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no snapshot for %s", types.ErrInvalidSymbol, symbol)
	}
	return snap, nil
}

// CreateOrder accepts and rests an order, or fills it immediately for
// market orders when auto-fill is on.
func (g *Gateway) CreateOrder(_ context.Context, req exchange.OrderRequest) (*exchange.OrderAck, error) {
	if hook := g.CreateOrderHook; hook != nil {
		if err := hook(req); err != nil {
			return nil, err
		}
	}
	if !req.Quantity.IsPositive() {
		return nil, types.ErrZeroQuantity
	}

	g.mu.Lock()
	if req.ReduceOnly {
		pos, open := g.positions[req.Symbol]
		wantSide := types.SideShort
		if req.Side == exchange.Sell {
			wantSide = types.SideLong
		}
		if !open || pos.Side != wantSide {
			g.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", types.ErrReduceOnlyRejected, req.Symbol)
		}
	}

	id := "paper-" + strconv.FormatInt(g.nextID.Add(1), 10)
	ack := exchange.OrderAck{
		OrderID:       id,
		ClientOrderID: req.ClientOrderID,
		Status:        exchange.StatusNew,
	}
	g.orders[id] = &restingOrder{req: req, ack: ack}
	autoFill := g.cfg.AutoFillMarket && req.Type == exchange.TypeMarket
	mark := g.marks[req.Symbol]
	g.mu.Unlock()

	g.logger.Debug("paper order accepted",
		"symbol", req.Symbol,
		"type", req.Type,
		"side", req.Side,
		"quantity", req.Quantity,
		"order_id", id,
	)

	if autoFill {
		if err := g.Fill(id, mark); err != nil {
			return nil, err
		}
	}
	return &ack, nil
}

// CancelOrder removes a resting order.
func (g *Gateway) CancelOrder(_ context.Context, symbol, orderID string) error {
	if hook := g.CancelOrderHook; hook != nil {
		if err := hook(symbol, orderID); err != nil {
			return err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.orders[orderID]; !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownOrder, orderID)
	}
	delete(g.orders, orderID)
	return nil
}

// CancelAllOpenOrders removes every resting order for the symbol.
func (g *Gateway) CancelAllOpenOrders(_ context.Context, symbol string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, ro := range g.orders {
		if ro.req.Symbol == symbol {
			delete(g.orders, id)
		}
	}
	return nil
}

// GetAccountBalance returns the simulated balance.
func (g *Gateway) GetAccountBalance(_ context.Context, _ string) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balance, nil
}

// GetOpenPositions returns all simulated positions.
func (g *Gateway) GetOpenPositions(_ context.Context) ([]exchange.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.PositionsErr != nil {
		return nil, g.PositionsErr
	}
	out := make([]exchange.Position, 0, len(g.positions))
	for _, pos := range g.positions {
		out = append(out, pos)
	}
	return out, nil
}

// GetSymbolRules returns the registered rules for a symbol, or a default
// rule set when none was registered.
func (g *Gateway) GetSymbolRules(_ context.Context, symbol string) (*exchange.SymbolRules, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rules, ok := g.rules[symbol]
	if !ok {
		rules = exchange.SymbolRules{
			Symbol:            symbol,
			PriceTick:         decimal.RequireFromString("0.01"),
			QuantityStep:      decimal.RequireFromString("0.001"),
			PricePrecision:    2,
			QuantityPrecision: 3,
		}
		g.rules[symbol] = rules
	}
	return &rules, nil
}

// SetLeverage is a no-op in paper mode.
func (g *Gateway) SetLeverage(_ context.Context, symbol string, leverage int) error {
	g.logger.Debug("paper leverage set", "symbol", symbol, "leverage", leverage)
	return nil
}

// SetMarginType is a no-op in paper mode.
func (g *Gateway) SetMarginType(_ context.Context, symbol, marginType string) error {
	g.logger.Debug("paper margin type set", "symbol", symbol, "margin_type", marginType)
	return nil
}

// SubscribeDepth returns the injectable market stream.
func (g *Gateway) SubscribeDepth(ctx context.Context, _ []string) (<-chan exchange.DepthUpdate, error) {
	return g.depthCh, nil
}

// SubscribeUserEvents returns the injectable user stream.
func (g *Gateway) SubscribeUserEvents(ctx context.Context) (<-chan exchange.OrderEvent, error) {
	return g.eventCh, nil
}

var _ exchange.Gateway = (*Gateway)(nil)
