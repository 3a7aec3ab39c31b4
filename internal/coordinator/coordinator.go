// Package coordinator drives the order and position lifecycle: entry
// submission, bracket protection on fill, adjustment, safe close, and
// rollback on partial failure.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/andriipushkar/scalpbot/internal/alerting"
	"github.com/andriipushkar/scalpbot/internal/exchange"
	"github.com/andriipushkar/scalpbot/internal/metrics"
	"github.com/andriipushkar/scalpbot/internal/orderbook"
	"github.com/andriipushkar/scalpbot/internal/position"
	"github.com/andriipushkar/scalpbot/internal/risk"
	"github.com/andriipushkar/scalpbot/internal/strategy"
	"github.com/andriipushkar/scalpbot/internal/types"
)

// errorPause throttles a monitor loop after a failed iteration.
const errorPause = 5 * time.Second

// Journal records completed trades and raw order events for audit.
// Implemented by the SQLite journal; nil-safe at the call sites.
type Journal interface {
	SaveTrade(ctx context.Context, trade types.Trade) error
	SaveOrderEvent(ctx context.Context, ev exchange.OrderEvent) error
}

// Instrument binds one traded symbol to its strategy and exchange rules.
type Instrument struct {
	Symbol           string
	Strategy         strategy.Strategy
	Rules            exchange.SymbolRules
	EntryOrderType   exchange.OrderType // LIMIT or MARKET
	EntryOffsetTicks int64              // limit entries only: offset past the reference price
}

// Config holds coordinator configuration.
type Config struct {
	QuoteAsset         string
	MaxActivePositions int
}

// DefaultConfig returns default coordinator config.
func DefaultConfig() Config {
	return Config{
		QuoteAsset:         "USDT",
		MaxActivePositions: 3,
	}
}

// Coordinator is the per-symbol lifecycle state machine. One Coordinator
// serves all instruments; symbols progress independently, serialized by the
// PendingSymbolSet and the exchange's per-symbol event ordering.
type Coordinator struct {
	cfg      Config
	logger   *slog.Logger
	gw       exchange.Gateway
	books    *orderbook.Synchronizer
	store    *position.Store
	sizer    *risk.Sizer
	alerter  alerting.Alerter
	journal  Journal
	recorder *metrics.Recorder

	pending     *PendingSymbolSet
	entries     *entryTable
	instruments map[string]*Instrument

	wg sync.WaitGroup
}

// New creates a coordinator for the given instruments.
func New(
	cfg Config,
	gw exchange.Gateway,
	books *orderbook.Synchronizer,
	store *position.Store,
	sizer *risk.Sizer,
	instruments []*Instrument,
	alerter alerting.Alerter,
	journal Journal,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	bySymbol := make(map[string]*Instrument, len(instruments))
	for _, inst := range instruments {
		bySymbol[inst.Symbol] = inst
	}

	return &Coordinator{
		cfg:         cfg,
		logger:      logger,
		gw:          gw,
		books:       books,
		store:       store,
		sizer:       sizer,
		alerter:     alerter,
		journal:     journal,
		recorder:    metrics.NewRecorder(),
		pending:     NewPendingSymbolSet(),
		entries:     newEntryTable(),
		instruments: bySymbol,
	}
}

// Run subscribes to user order events and starts one monitor loop per
// instrument. It blocks until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	events, err := c.gw.SubscribeUserEvents(ctx)
	if err != nil {
		return fmt.Errorf("subscribe user events: %w", err)
	}

	for _, inst := range c.instruments {
		c.wg.Add(1)
		go c.monitorLoop(ctx, inst)
	}

	c.logger.Info("coordinator started",
		"instruments", len(c.instruments),
		"max_positions", c.cfg.MaxActivePositions,
	)

	for {
		select {
		case <-ctx.Done():
			c.wg.Wait()
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				c.wg.Wait()
				return types.ErrNotConnected
			}
			if err := c.handleOrderEvent(ctx, ev); err != nil {
				c.logger.Error("order event handling failed",
					"symbol", ev.Symbol,
					"order_id", ev.OrderID,
					"status", ev.Status,
					"err", err,
				)
				c.recorder.RecordError("order_event")
			}
		}
	}
}

// monitorLoop wakes on every book update for its symbol and either looks for
// an entry signal or evaluates adjustment of the open position. Errors are
// logged and the loop continues; nothing may terminate it except ctx.
func (c *Coordinator) monitorLoop(ctx context.Context, inst *Instrument) {
	defer c.wg.Done()

	c.logger.Info("monitor loop started", "symbol", inst.Symbol, "strategy", inst.Strategy.Name())

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.books.Updates(inst.Symbol):
		}

		var err error
		if pos, open := c.store.Get(inst.Symbol); open {
			err = c.handleAdjustment(ctx, inst, pos)
		} else {
			err = c.checkEntry(ctx, inst)
		}

		if err != nil {
			c.logger.Error("monitor iteration failed", "symbol", inst.Symbol, "err", err)
			c.recorder.RecordError("monitor")
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorPause):
			}
		}
	}
}

// checkEntry implements the Idle -> PendingEntry transition.
func (c *Coordinator) checkEntry(ctx context.Context, inst *Instrument) error {
	book := c.books.Book(inst.Symbol)
	if book == nil || book.State() != orderbook.StateSynced {
		return nil
	}
	if c.pending.Contains(inst.Symbol) {
		return nil
	}
	if c.store.Count() >= c.cfg.MaxActivePositions {
		return nil
	}

	sig := inst.Strategy.CheckSignal(book)
	if sig == nil {
		return nil
	}
	c.recorder.RecordSignal(inst.Strategy.Name(), sig.Side.String())

	if !c.pending.TryAcquire(inst.Symbol) {
		return nil // lost the race to a concurrent operation
	}

	if err := c.submitEntry(ctx, inst, sig); err != nil {
		c.pending.Release(inst.Symbol)
		return err
	}
	return nil
}

// submitEntry sizes and submits the entry order. The pending-symbol marker
// is held by the caller; on error the caller releases it.
func (c *Coordinator) submitEntry(ctx context.Context, inst *Instrument, sig *strategy.Signal) error {
	book := c.books.Book(inst.Symbol)

	entryPrice, err := c.entryPrice(inst, sig, book)
	if err != nil {
		c.recorder.RecordSignalRejected("no_price")
		return err
	}

	balance, err := c.gw.GetAccountBalance(ctx, c.cfg.QuoteAsset)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}

	qty := c.sizer.Quantity(balance, entryPrice, inst.Rules)
	if qty.IsZero() {
		c.logger.Warn("calculated quantity is zero, skipping entry",
			"symbol", inst.Symbol,
			"balance", balance,
			"price", entryPrice,
		)
		c.recorder.RecordSignalRejected("zero_quantity")
		return types.ErrZeroQuantity
	}

	// Pre-fill estimate only. The resting bracket prices are recomputed
	// from the actual fill price when the fill event arrives.
	bracket := inst.Strategy.CalculateBracket(entryPrice, sig.Side, book, inst.Rules.PriceTick)
	if bracket == nil {
		c.recorder.RecordSignalRejected("no_bracket")
		return fmt.Errorf("no bracket for %s at %s", inst.Symbol, entryPrice)
	}

	clientOrderID := newClientOrderID(inst.Strategy.Name(), inst.Symbol)
	pe := types.PendingEntry{
		ClientOrderID: clientOrderID,
		Symbol:        inst.Symbol,
		Side:          sig.Side,
		StrategyName:  inst.Strategy.Name(),
		Quantity:      qty,
		StopLoss:      bracket.StopLoss,
		TakeProfit:    bracket.TakeProfit,
		CreatedAt:     time.Now(),
	}
	c.entries.put(pe)

	req := exchange.OrderRequest{
		Symbol:        inst.Symbol,
		Side:          exchange.SideToOrder(sig.Side),
		Type:          inst.EntryOrderType,
		Quantity:      qty,
		ClientOrderID: clientOrderID,
	}
	if inst.EntryOrderType == exchange.TypeLimit {
		req.Price = entryPrice
	}

	timer := metrics.NewTimer()
	ack, err := c.gw.CreateOrder(ctx, req)
	timer.ObserveOrder()
	if err != nil {
		c.entries.remove(clientOrderID)
		c.recorder.RecordOrder(inst.Symbol, sig.Side.String(), "rejected")
		return fmt.Errorf("submit entry: %w", err)
	}

	c.recorder.RecordOrder(inst.Symbol, sig.Side.String(), "submitted")
	c.logger.Info("entry order submitted",
		"symbol", inst.Symbol,
		"side", sig.Side,
		"type", inst.EntryOrderType,
		"quantity", qty,
		"price", entryPrice,
		"client_order_id", clientOrderID,
		"order_id", ack.OrderID,
		"reason", sig.Reason,
	)
	return nil
}

// entryPrice resolves the price the entry is calculated (and, for limit
// orders, placed) at.
func (c *Coordinator) entryPrice(inst *Instrument, sig *strategy.Signal, book *orderbook.Book) (decimal.Decimal, error) {
	if inst.EntryOrderType == exchange.TypeMarket {
		// Market entries size off the touch.
		if sig.Side == types.SideLong {
			if ask, ok := book.BestAsk(); ok {
				return ask.Price, nil
			}
		} else {
			if bid, ok := book.BestBid(); ok {
				return bid.Price, nil
			}
		}
		return decimal.Decimal{}, fmt.Errorf("%w: no market price for %s", types.ErrBookNotSynced, inst.Symbol)
	}

	// Limit entries rest a few ticks past the reference level.
	offset := inst.Rules.PriceTick.Mul(decimal.NewFromInt(inst.EntryOffsetTicks))
	price := sig.ReferencePrice
	if sig.Side == types.SideLong {
		price = price.Add(offset)
	} else {
		price = price.Sub(offset)
	}
	return inst.Rules.RoundPrice(price), nil
}

// handleOrderEvent routes one user-data stream event.
func (c *Coordinator) handleOrderEvent(ctx context.Context, ev exchange.OrderEvent) error {
	if c.journal != nil {
		if err := c.journal.SaveOrderEvent(ctx, ev); err != nil {
			c.logger.Warn("order event journaling failed",
				"symbol", ev.Symbol,
				"order_id", ev.OrderID,
				"err", err,
			)
		}
	}

	if ev.Status.IsFinal() {
		if pe, ok := c.entries.take(ev.ClientOrderID); ok {
			if ev.Status == exchange.StatusFilled {
				return c.handleEntryFill(ctx, pe, ev)
			}
			c.pending.Release(pe.Symbol)
			c.logger.Info("entry order did not fill",
				"symbol", pe.Symbol,
				"client_order_id", pe.ClientOrderID,
				"status", ev.Status,
			)
			c.recorder.RecordOrder(pe.Symbol, pe.Side.String(), strings.ToLower(string(ev.Status)))
			return nil
		}
	}

	if pos, open := c.store.Get(ev.Symbol); open && ev.Status == exchange.StatusFilled {
		if ev.OrderID == pos.StopOrderID || ev.OrderID == pos.TakeProfitOrderID {
			return c.handleBracketFill(ctx, pos, ev)
		}
	}
	return nil
}

// handleEntryFill implements the PendingEntry -> Open transition: recompute
// the bracket from the actual fill price, place both protective orders, and
// either store the protected position or roll the fill back.
func (c *Coordinator) handleEntryFill(ctx context.Context, pe types.PendingEntry, ev exchange.OrderEvent) error {
	inst, ok := c.instruments[pe.Symbol]
	if !ok {
		c.pending.Release(pe.Symbol)
		return fmt.Errorf("%w: %s", types.ErrInvalidSymbol, pe.Symbol)
	}

	fillPrice := ev.AvgFillPrice
	qty := ev.FilledQty
	if !qty.IsPositive() {
		qty = pe.Quantity
	}

	// Slippage can put a pre-fill stop on the wrong side of the market,
	// which the exchange rejects. Always derive the bracket from the
	// price actually paid.
	bracket := inst.Strategy.CalculateBracket(fillPrice, pe.Side, c.books.Book(pe.Symbol), inst.Rules.PriceTick)
	if bracket == nil {
		c.logger.Error("no bracket at fill price, flattening",
			"symbol", pe.Symbol,
			"fill_price", fillPrice,
		)
		c.rollbackFill(ctx, inst, pe, qty, "", "")
		return types.ErrUnprotectedPosition
	}

	slAck, tpAck := c.placeBrackets(ctx, inst, pe.Side, qty, bracket)
	if slAck == nil || tpAck == nil {
		var slID, tpID string
		if slAck != nil {
			slID = slAck.OrderID
		}
		if tpAck != nil {
			tpID = tpAck.OrderID
		}
		c.rollbackFill(ctx, inst, pe, qty, slID, tpID)
		return types.ErrUnprotectedPosition
	}

	pos := types.Position{
		Symbol:            pe.Symbol,
		Side:              pe.Side,
		Quantity:          qty,
		EntryPrice:        fillPrice,
		StopLoss:          bracket.StopLoss,
		TakeProfit:        bracket.TakeProfit,
		InitialStopLoss:   bracket.StopLoss,
		StopOrderID:       slAck.OrderID,
		TakeProfitOrderID: tpAck.OrderID,
		StrategyName:      pe.StrategyName,
		OpenedAt:          time.Now(),
	}
	if err := c.store.Set(pos); err != nil {
		// The position is live and protected on the exchange; a store
		// failure here is a tracking problem, not a trading one.
		c.logger.Error("failed to store protected position", "symbol", pe.Symbol, "err", err)
	}
	c.pending.Release(pe.Symbol)
	c.recorder.RecordPositionsOpen(c.store.Count())

	c.logger.Info("position opened and protected",
		"symbol", pos.Symbol,
		"side", pos.Side,
		"quantity", pos.Quantity,
		"entry", pos.EntryPrice,
		"sl", pos.StopLoss,
		"tp", pos.TakeProfit,
	)
	c.alert(ctx, alerting.SeverityInfo, "Position opened",
		"symbol", pos.Symbol,
		"side", pos.Side.String(),
		"quantity", pos.Quantity.String(),
		"entry", pos.EntryPrice.String(),
	)
	return nil
}

// placeBrackets submits the stop-loss and take-profit orders concurrently.
// A nil ack marks the corresponding leg as failed.
func (c *Coordinator) placeBrackets(ctx context.Context, inst *Instrument, side types.Side, qty decimal.Decimal, bracket *strategy.Bracket) (slAck, tpAck *exchange.OrderAck) {
	exitSide := exchange.SideToOrder(side.Opposite())

	var g errgroup.Group
	g.Go(func() error {
		ack, err := c.gw.CreateOrder(ctx, exchange.OrderRequest{
			Symbol:     inst.Symbol,
			Side:       exitSide,
			Type:       exchange.TypeStopMarket,
			Quantity:   qty,
			StopPrice:  inst.Rules.RoundPrice(bracket.StopLoss),
			ReduceOnly: true,
		})
		if err != nil {
			c.logger.Error("stop-loss placement failed", "symbol", inst.Symbol, "err", err)
			return err
		}
		slAck = ack
		return nil
	})
	g.Go(func() error {
		ack, err := c.gw.CreateOrder(ctx, exchange.OrderRequest{
			Symbol:     inst.Symbol,
			Side:       exitSide,
			Type:       exchange.TypeTakeProfitMarket,
			Quantity:   qty,
			StopPrice:  inst.Rules.RoundPrice(bracket.TakeProfit),
			ReduceOnly: true,
		})
		if err != nil {
			c.logger.Error("take-profit placement failed", "symbol", inst.Symbol, "err", err)
			return err
		}
		tpAck = ack
		return nil
	})
	_ = g.Wait() // per-leg failures surface as nil acks
	return slAck, tpAck
}

// rollbackFill flattens a just-filled entry whose protection could not be
// fully placed. Whatever happens here, the pending marker is released; the
// reconciliation loop covers the case where even the flatten fails.
func (c *Coordinator) rollbackFill(ctx context.Context, inst *Instrument, pe types.PendingEntry, qty decimal.Decimal, slID, tpID string) {
	defer c.pending.Release(pe.Symbol)

	for _, orderID := range []string{slID, tpID} {
		if orderID == "" {
			continue
		}
		if err := c.gw.CancelOrder(ctx, inst.Symbol, orderID); err != nil && !errors.Is(err, types.ErrUnknownOrder) {
			c.logger.Error("failed to cancel orphan bracket during rollback",
				"symbol", inst.Symbol,
				"order_id", orderID,
				"err", err,
			)
		}
	}

	_, err := c.gw.CreateOrder(ctx, exchange.OrderRequest{
		Symbol:     inst.Symbol,
		Side:       exchange.SideToOrder(pe.Side.Opposite()),
		Type:       exchange.TypeMarket,
		Quantity:   qty,
		ReduceOnly: true,
	})
	flattened := err == nil || errors.Is(err, types.ErrReduceOnlyRejected)

	c.recorder.RecordBracketRollback(pe.Symbol)
	c.logger.Error("CONSISTENCY VIOLATION: bracket placement failed, position flattened",
		"symbol", pe.Symbol,
		"side", pe.Side,
		"quantity", qty,
		"flattened", flattened,
		"flatten_err", err,
	)
	c.alert(ctx, alerting.SeverityCritical, "Bracket placement failed, position flattened",
		"symbol", pe.Symbol,
		"side", pe.Side.String(),
		"quantity", qty.String(),
		"flattened", flattened,
	)

	if c.journal != nil {
		trade := types.Trade{
			ID:           uuid.New().String(),
			Symbol:       pe.Symbol,
			Side:         pe.Side,
			Quantity:     qty,
			EntryTime:    pe.CreatedAt,
			ExitTime:     time.Now(),
			ExitReason:   "rollback",
			StrategyName: pe.StrategyName,
		}
		if err := c.journal.SaveTrade(ctx, trade); err != nil {
			c.logger.Warn("failed to journal rollback", "symbol", pe.Symbol, "err", err)
		}
	}
}

// handleBracketFill handles a stop-loss or take-profit fill: cancel the
// sibling and retire the position. A sibling that is already gone may have
// filled in the same instant; that is success, not failure.
func (c *Coordinator) handleBracketFill(ctx context.Context, pos types.Position, ev exchange.OrderEvent) error {
	var siblingID, reason string
	if ev.OrderID == pos.StopOrderID {
		siblingID = pos.TakeProfitOrderID
		reason = "stop_loss"
	} else {
		siblingID = pos.StopOrderID
		reason = "take_profit"
	}

	if siblingID != "" {
		if err := c.gw.CancelOrder(ctx, pos.Symbol, siblingID); err != nil && !errors.Is(err, types.ErrUnknownOrder) {
			c.logger.Error("failed to cancel sibling bracket",
				"symbol", pos.Symbol,
				"order_id", siblingID,
				"err", err,
			)
		}
	}

	c.finishTrade(ctx, pos, ev.AvgFillPrice, reason)
	return nil
}

// handleAdjustment implements the Open-state sub-transitions.
func (c *Coordinator) handleAdjustment(ctx context.Context, inst *Instrument, pos types.Position) error {
	book := c.books.Book(inst.Symbol)
	if book == nil || book.State() != orderbook.StateSynced {
		return nil
	}

	adj := inst.Strategy.AnalyzeAndAdjust(pos, book)
	if adj == nil {
		return nil
	}

	switch adj.Command {
	case strategy.CommandClose:
		c.logger.Info("strategy requested close", "symbol", pos.Symbol, "reason", adj.Reason)
		return c.closeSafely(ctx, pos, adj.Reason)
	case strategy.CommandAdjust:
		return c.adjustBrackets(ctx, inst, pos, adj)
	}
	return nil
}

// adjustBrackets replaces the protective pair at new prices. The new orders
// go in first; the old pair is cancelled only after both replacements are
// resting, so the position is never unprotected. On a partial placement the
// orphan replacement is cancelled and the old pair stays untouched.
func (c *Coordinator) adjustBrackets(ctx context.Context, inst *Instrument, pos types.Position, adj *strategy.Adjustment) error {
	newSL := inst.Rules.RoundPrice(adj.StopLoss)
	newTP := inst.Rules.RoundPrice(adj.TakeProfit)
	if !newSL.IsPositive() || !newTP.IsPositive() {
		return nil
	}

	slAck, tpAck := c.placeBrackets(ctx, inst, pos.Side, pos.Quantity, &strategy.Bracket{
		StopLoss:   newSL,
		TakeProfit: newTP,
	})
	if slAck == nil || tpAck == nil {
		for _, ack := range []*exchange.OrderAck{slAck, tpAck} {
			if ack == nil {
				continue
			}
			if err := c.gw.CancelOrder(ctx, pos.Symbol, ack.OrderID); err != nil && !errors.Is(err, types.ErrUnknownOrder) {
				c.logger.Error("failed to cancel orphan replacement bracket",
					"symbol", pos.Symbol,
					"order_id", ack.OrderID,
					"err", err,
				)
			}
		}
		c.logger.Warn("bracket adjustment failed, keeping existing protection",
			"symbol", pos.Symbol,
			"reason", adj.Reason,
		)
		return fmt.Errorf("adjust brackets %s: %w", pos.Symbol, types.ErrOrderRejected)
	}

	for _, orderID := range []string{pos.StopOrderID, pos.TakeProfitOrderID} {
		if orderID == "" {
			continue
		}
		if err := c.gw.CancelOrder(ctx, pos.Symbol, orderID); err != nil && !errors.Is(err, types.ErrUnknownOrder) {
			c.logger.Error("failed to cancel replaced bracket",
				"symbol", pos.Symbol,
				"order_id", orderID,
				"err", err,
			)
		}
	}

	if err := c.store.UpdateBracketOrders(pos.Symbol, position.BracketUpdate{
		StopOrderID:       slAck.OrderID,
		TakeProfitOrderID: tpAck.OrderID,
		StopLoss:          newSL,
		TakeProfit:        newTP,
	}); err != nil {
		return fmt.Errorf("update brackets: %w", err)
	}

	c.logger.Info("brackets adjusted",
		"symbol", pos.Symbol,
		"sl", newSL,
		"tp", newTP,
		"reason", adj.Reason,
	)
	return nil
}

// closeSafely unwinds an open position: cancel all resting orders for the
// symbol, flatten with a reduce-only market order, retire the position. A
// reduce-only rejection means a bracket fill won the race; that is fine.
func (c *Coordinator) closeSafely(ctx context.Context, pos types.Position, reason string) error {
	if !c.pending.TryAcquire(pos.Symbol) {
		return nil // entry or another close already in flight
	}
	defer c.pending.Release(pos.Symbol)

	if err := c.gw.CancelAllOpenOrders(ctx, pos.Symbol); err != nil {
		c.logger.Error("failed to cancel open orders before close", "symbol", pos.Symbol, "err", err)
	}

	_, err := c.gw.CreateOrder(ctx, exchange.OrderRequest{
		Symbol:     pos.Symbol,
		Side:       exchange.SideToOrder(pos.Side.Opposite()),
		Type:       exchange.TypeMarket,
		Quantity:   pos.Quantity,
		ReduceOnly: true,
	})
	if err != nil && !errors.Is(err, types.ErrReduceOnlyRejected) {
		return fmt.Errorf("flatten %s: %w", pos.Symbol, err)
	}
	if errors.Is(err, types.ErrReduceOnlyRejected) {
		c.logger.Warn("position already gone on exchange", "symbol", pos.Symbol)
	}

	exitPrice := decimal.Zero
	if book := c.books.Book(pos.Symbol); book != nil {
		if pos.Side == types.SideLong {
			if bid, ok := book.BestBid(); ok {
				exitPrice = bid.Price
			}
		} else {
			if ask, ok := book.BestAsk(); ok {
				exitPrice = ask.Price
			}
		}
	}

	c.finishTrade(ctx, pos, exitPrice, reason)
	return nil
}

// finishTrade retires a position from the store and records the trade.
func (c *Coordinator) finishTrade(ctx context.Context, pos types.Position, exitPrice decimal.Decimal, reason string) {
	if _, removed := c.store.Close(pos.Symbol); !removed {
		return // already retired by a concurrent path
	}
	c.recorder.RecordPositionsOpen(c.store.Count())
	c.recorder.RecordTrade(pos.Symbol, reason)

	grossPL := decimal.Zero
	if exitPrice.IsPositive() {
		diff := exitPrice.Sub(pos.EntryPrice)
		if pos.Side == types.SideShort {
			diff = diff.Neg()
		}
		grossPL = diff.Mul(pos.Quantity)
	}

	c.logger.Info("trade finished",
		"symbol", pos.Symbol,
		"side", pos.Side,
		"entry", pos.EntryPrice,
		"exit", exitPrice,
		"gross_pl", grossPL,
		"reason", reason,
	)
	c.alert(ctx, alerting.SeverityInfo, "Position closed",
		"symbol", pos.Symbol,
		"side", pos.Side.String(),
		"reason", reason,
		"gross_pl", grossPL.String(),
	)

	if c.journal != nil {
		trade := types.Trade{
			ID:           uuid.New().String(),
			Symbol:       pos.Symbol,
			Side:         pos.Side,
			Quantity:     pos.Quantity,
			EntryPrice:   pos.EntryPrice,
			ExitPrice:    exitPrice,
			EntryTime:    pos.OpenedAt,
			ExitTime:     time.Now(),
			GrossPL:      grossPL,
			ExitReason:   reason,
			StrategyName: pos.StrategyName,
		}
		if err := c.journal.SaveTrade(ctx, trade); err != nil {
			c.logger.Warn("failed to journal trade", "symbol", pos.Symbol, "err", err)
		}
	}
}

func (c *Coordinator) alert(ctx context.Context, severity alerting.Severity, message string, fields ...any) {
	if c.alerter == nil {
		return
	}
	if err := c.alerter.Alert(ctx, severity, message, fields...); err != nil {
		c.logger.Warn("failed to send alert", "err", err)
	}
}

// newClientOrderID builds a short, unique client order id within exchange
// length limits.
func newClientOrderID(strategyName, symbol string) string {
	name := strategyName
	if len(name) > 8 {
		name = name[:8]
	}
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:10]
	return fmt.Sprintf("sb-%s-%s-%s", name, strings.ToLower(symbol), id)
}
