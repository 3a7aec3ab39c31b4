// Package risk provides order sizing from account capital and risk limits.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/andriipushkar/scalpbot/internal/exchange"
)

// Sizer computes entry order quantities.
type Sizer struct {
	riskPerTradePct decimal.Decimal // fraction of balance committed as margin per trade
	leverage        decimal.Decimal
}

// NewSizer creates a sizer. riskPerTradePct is a fraction (0.01 = 1%).
func NewSizer(riskPerTradePct decimal.Decimal, leverage int) *Sizer {
	return &Sizer{
		riskPerTradePct: riskPerTradePct,
		leverage:        decimal.NewFromInt(int64(leverage)),
	}
}

// Quantity computes the order quantity for an entry at price:
//
//	margin   = balance * riskPerTradePct
//	notional = margin * leverage
//	quantity = floor(notional / price) to the symbol's quantity step
//
// Returns zero when the inputs cannot produce a positive, step-aligned
// quantity; the caller must treat zero as "do not trade".
func (s *Sizer) Quantity(balance, price decimal.Decimal, rules exchange.SymbolRules) decimal.Decimal {
	if !balance.IsPositive() || !price.IsPositive() {
		return decimal.Zero
	}
	if !s.riskPerTradePct.IsPositive() || !s.leverage.IsPositive() {
		return decimal.Zero
	}

	margin := balance.Mul(s.riskPerTradePct)
	notional := margin.Mul(s.leverage)
	qty := rules.RoundQuantity(notional.Div(price))
	if !qty.IsPositive() {
		return decimal.Zero
	}
	return qty
}
