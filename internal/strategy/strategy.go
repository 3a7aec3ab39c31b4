// Package strategy defines the pluggable strategy interface and the registry
// that maps configured strategy names to constructors.
package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/andriipushkar/scalpbot/internal/types"
)

// BookView is the read-only order book surface a strategy evaluates.
type BookView interface {
	BestBid() (types.PriceLevel, bool)
	BestAsk() (types.PriceLevel, bool)
	BidDepth(n int) []types.PriceLevel
	AskDepth(n int) []types.PriceLevel
}

// Signal is an entry signal emitted by a strategy.
type Signal struct {
	Side types.Side
	// ReferencePrice anchors limit entries (a liquidity wall, the touched
	// level). Market entries ignore it.
	ReferencePrice decimal.Decimal
	Reason         string
}

// Bracket holds the protective order prices for a position.
type Bracket struct {
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
}

// Command is an adjustment instruction for an open position.
type Command int

const (
	// CommandAdjust replaces the bracket orders at new prices.
	CommandAdjust Command = iota + 1
	// CommandClose unwinds the position immediately.
	CommandClose
)

func (c Command) String() string {
	switch c {
	case CommandAdjust:
		return "ADJUST"
	case CommandClose:
		return "CLOSE"
	default:
		return "NONE"
	}
}

// Adjustment is emitted by AnalyzeAndAdjust for an open position.
type Adjustment struct {
	Command    Command
	StopLoss   decimal.Decimal // CommandAdjust only
	TakeProfit decimal.Decimal // CommandAdjust only
	Reason     string
}

// Strategy evaluates the synchronized order book for one symbol.
type Strategy interface {
	// Name returns the strategy identifier.
	Name() string

	// CheckSignal inspects the book and returns an entry signal, or nil.
	CheckSignal(view BookView) *Signal

	// CalculateBracket derives stop-loss and take-profit prices from an
	// entry price. Called twice per trade: once pre-submission for the
	// estimate, once post-fill with the actual fill price. Returns nil if
	// no sane bracket exists at this price.
	CalculateBracket(entryPrice decimal.Decimal, side types.Side, view BookView, priceTick decimal.Decimal) *Bracket

	// AnalyzeAndAdjust inspects an open position against the current book
	// and returns an adjustment command, or nil to leave it alone.
	AnalyzeAndAdjust(pos types.Position, view BookView) *Adjustment
}

// Params are the free-form strategy parameters from configuration.
type Params map[string]float64

// Get returns a parameter or its default.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Factory constructs a strategy instance for one symbol.
type Factory func(symbol string, params Params) (Strategy, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a strategy factory under a name. Called from package init;
// duplicate names panic.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("strategy: duplicate registration of " + name)
	}
	registry[name] = factory
}

// New instantiates a registered strategy by name.
func New(name, symbol string, params Params) (Strategy, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("strategy %q not registered (available: %v)", name, Names())
	}
	return factory(symbol, params)
}

// Names returns the registered strategy names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
