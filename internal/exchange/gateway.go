// Package exchange defines the gateway interface to a futures-style exchange
// and the wire-level types shared by its implementations.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andriipushkar/scalpbot/internal/types"
)

// OrderSide is the exchange-facing order direction.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// SideToOrder converts a position direction to the order side that opens it.
func SideToOrder(s types.Side) OrderSide {
	if s == types.SideShort {
		return Sell
	}
	return Buy
}

// OrderType is the exchange order type.
type OrderType string

const (
	TypeLimit            OrderType = "LIMIT"
	TypeMarket           OrderType = "MARKET"
	TypeStopMarket       OrderType = "STOP_MARKET"
	TypeTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

// OrderStatus is the exchange-reported order state.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusExpired         OrderStatus = "EXPIRED"
	StatusRejected        OrderStatus = "REJECTED"
)

// IsFinal reports whether the status is terminal.
func (s OrderStatus) IsFinal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusExpired, StatusRejected:
		return true
	default:
		return false
	}
}

// OrderRequest describes an order to be submitted.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal // limit price, LIMIT only
	StopPrice     decimal.Decimal // trigger price, STOP_MARKET / TAKE_PROFIT_MARKET
	ReduceOnly    bool
	ClientOrderID string
}

// OrderAck is the exchange response to an order submission.
type OrderAck struct {
	OrderID       string
	ClientOrderID string
	Status        OrderStatus
}

// DepthSnapshot is a REST order-book snapshot.
type DepthSnapshot struct {
	Symbol       string
	LastUpdateID int64
	Bids         []types.PriceLevel
	Asks         []types.PriceLevel
}

// DepthUpdate is one event from the market depth stream.
type DepthUpdate struct {
	Symbol  string
	FirstID int64
	LastID  int64
	Bids    []types.PriceLevel
	Asks    []types.PriceLevel
}

// OrderEvent is one ORDER_UPDATE event from the user-data stream.
type OrderEvent struct {
	Symbol        string
	OrderID       string
	ClientOrderID string
	Status        OrderStatus
	Type          OrderType
	Side          OrderSide
	AvgFillPrice  decimal.Decimal
	FilledQty     decimal.Decimal
	ReduceOnly    bool
	Time          time.Time
}

// SymbolRules holds the exchange's precision constraints for a symbol.
type SymbolRules struct {
	Symbol            string
	PriceTick         decimal.Decimal
	QuantityStep      decimal.Decimal
	PricePrecision    int32
	QuantityPrecision int32
}

// RoundPrice rounds a price down to the symbol's tick grid.
func (r SymbolRules) RoundPrice(p decimal.Decimal) decimal.Decimal {
	if r.PriceTick.IsZero() {
		return p
	}
	return p.Div(r.PriceTick).Floor().Mul(r.PriceTick)
}

// RoundQuantity rounds a quantity down to the symbol's step grid.
func (r SymbolRules) RoundQuantity(q decimal.Decimal) decimal.Decimal {
	if r.QuantityStep.IsZero() {
		return q
	}
	return q.Div(r.QuantityStep).Floor().Mul(r.QuantityStep)
}

// Position is an exchange-reported open position. Quantity is unsigned;
// direction is carried by Side.
type Position struct {
	Symbol     string
	Side       types.Side
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	Leverage   int
}

// Gateway is the transport boundary to the exchange. All calls are blocking
// and honor the passed context.
type Gateway interface {
	// Order book
	GetOrderBookSnapshot(ctx context.Context, symbol string, depth int) (*DepthSnapshot, error)

	// Orders
	CreateOrder(ctx context.Context, req OrderRequest) (*OrderAck, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelAllOpenOrders(ctx context.Context, symbol string) error

	// Account
	GetAccountBalance(ctx context.Context, asset string) (decimal.Decimal, error)
	GetOpenPositions(ctx context.Context) ([]Position, error)
	GetSymbolRules(ctx context.Context, symbol string) (*SymbolRules, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginType(ctx context.Context, symbol, marginType string) error

	// Streams. Channels are closed when ctx is cancelled; implementations
	// reconnect internally on transport failure.
	SubscribeDepth(ctx context.Context, symbols []string) (<-chan DepthUpdate, error)
	SubscribeUserEvents(ctx context.Context) (<-chan OrderEvent, error)
}
