// Package types defines shared types used across the trading system.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of a position.
type Side int

const (
	SideFlat Side = iota
	SideLong
	SideShort
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "LONG"
	case SideShort:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Opposite returns the opposite side.
func (s Side) Opposite() Side {
	switch s {
	case SideLong:
		return SideShort
	case SideShort:
		return SideLong
	default:
		return SideFlat
	}
}

// MarshalText implements encoding.TextMarshaler so persisted state files
// stay human-readable.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "LONG":
		*s = SideLong
	case "SHORT":
		*s = SideShort
	case "FLAT":
		*s = SideFlat
	default:
		return ErrInvalidSide
	}
	return nil
}

// PriceLevel is a single (price, quantity) entry on one side of an order book.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Position represents an open, protected position. A symbol has at most one.
type Position struct {
	Symbol            string          `json:"symbol"`
	Side              Side            `json:"side"`
	Quantity          decimal.Decimal `json:"quantity"`
	EntryPrice        decimal.Decimal `json:"entry_price"`
	StopLoss          decimal.Decimal `json:"stop_loss"`
	TakeProfit        decimal.Decimal `json:"take_profit"`
	InitialStopLoss   decimal.Decimal `json:"initial_stop_loss"`
	StopOrderID       string          `json:"sl_order_id"`
	TakeProfitOrderID string          `json:"tp_order_id"`
	StrategyName      string          `json:"strategy_name,omitempty"`
	OpenedAt          time.Time       `json:"opened_at"`
}

// IsProtected reports whether both bracket orders are resting on the exchange.
func (p Position) IsProtected() bool {
	return p.StopOrderID != "" && p.TakeProfitOrderID != ""
}

// PendingEntry tracks an entry order submitted to the exchange but not yet
// resolved. Keyed by the client-assigned order id.
type PendingEntry struct {
	ClientOrderID string
	Symbol        string
	Side          Side
	StrategyName  string
	Quantity      decimal.Decimal
	StopLoss      decimal.Decimal // pre-fill estimate, recomputed on fill
	TakeProfit    decimal.Decimal
	CreatedAt     time.Time
}

// Trade is a completed round trip, recorded in the audit journal.
type Trade struct {
	ID           string
	Symbol       string
	Side         Side
	Quantity     decimal.Decimal
	EntryPrice   decimal.Decimal
	ExitPrice    decimal.Decimal
	EntryTime    time.Time
	ExitTime     time.Time
	GrossPL      decimal.Decimal
	ExitReason   string
	StrategyName string
}
