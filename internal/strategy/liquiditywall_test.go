package strategy

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/andriipushkar/scalpbot/internal/types"
)

type fakeBook struct {
	bids []types.PriceLevel
	asks []types.PriceLevel
}

func (b *fakeBook) BestBid() (types.PriceLevel, bool) {
	if len(b.bids) == 0 {
		return types.PriceLevel{}, false
	}
	return b.bids[0], true
}

func (b *fakeBook) BestAsk() (types.PriceLevel, bool) {
	if len(b.asks) == 0 {
		return types.PriceLevel{}, false
	}
	return b.asks[0], true
}

func (b *fakeBook) BidDepth(n int) []types.PriceLevel {
	if n <= 0 || n > len(b.bids) {
		return b.bids
	}
	return b.bids[:n]
}

func (b *fakeBook) AskDepth(n int) []types.PriceLevel {
	if n <= 0 || n > len(b.asks) {
		return b.asks
	}
	return b.asks[:n]
}

func lv(price, qty string) types.PriceLevel {
	return types.PriceLevel{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
	}
}

// bidWallBook has a 500-unit bid wall three ticks below the best ask.
func bidWallBook() *fakeBook {
	return &fakeBook{
		bids: []types.PriceLevel{lv("100", "5"), lv("99.99", "5"), lv("99.98", "500")},
		asks: []types.PriceLevel{lv("100.01", "5"), lv("100.02", "5")},
	}
}

func newWallStrategy(t *testing.T, params Params) *LiquidityWall {
	t.Helper()
	if params == nil {
		params = Params{}
	}
	if _, ok := params["wall_volume_multiplier"]; !ok {
		params["wall_volume_multiplier"] = 2
	}
	return NewLiquidityWall("BTCUSDT", params)
}

func TestCheckSignal_BidWallLong(t *testing.T) {
	s := newWallStrategy(t, nil)

	sig := s.CheckSignal(bidWallBook())
	if sig == nil {
		t.Fatal("expected a long signal")
	}
	if sig.Side != types.SideLong {
		t.Fatalf("side = %v, want long", sig.Side)
	}
	if !sig.ReferencePrice.Equal(decimal.RequireFromString("99.98")) {
		t.Fatalf("reference price = %s, want 99.98", sig.ReferencePrice)
	}
	if !strings.Contains(sig.Reason, "bid wall") {
		t.Fatalf("reason = %q", sig.Reason)
	}
}

func TestCheckSignal_AskWallShort(t *testing.T) {
	s := newWallStrategy(t, nil)

	book := &fakeBook{
		bids: []types.PriceLevel{lv("100", "5"), lv("99.99", "5")},
		asks: []types.PriceLevel{lv("100.01", "5"), lv("100.02", "5"), lv("100.04", "400")},
	}
	sig := s.CheckSignal(book)
	if sig == nil {
		t.Fatal("expected a short signal")
	}
	if sig.Side != types.SideShort {
		t.Fatalf("side = %v, want short", sig.Side)
	}
	if !sig.ReferencePrice.Equal(decimal.RequireFromString("100.04")) {
		t.Fatalf("reference price = %s, want 100.04", sig.ReferencePrice)
	}
}

func TestCheckSignal_NoWall(t *testing.T) {
	s := newWallStrategy(t, nil)

	book := &fakeBook{
		bids: []types.PriceLevel{lv("100", "5"), lv("99.99", "6"), lv("99.98", "4")},
		asks: []types.PriceLevel{lv("100.01", "5"), lv("100.02", "5")},
	}
	if sig := s.CheckSignal(book); sig != nil {
		t.Fatalf("got signal %+v from a flat book", sig)
	}
}

func TestCheckSignal_WideSpreadStandsAside(t *testing.T) {
	s := newWallStrategy(t, nil)

	book := bidWallBook()
	book.asks = []types.PriceLevel{lv("100.2", "5")} // 20 bps vs default max of 5
	if sig := s.CheckSignal(book); sig != nil {
		t.Fatalf("got signal %+v despite wide spread", sig)
	}
}

func TestCheckSignal_WallBeyondActivationDistance(t *testing.T) {
	s := newWallStrategy(t, Params{"activation_distance_ticks": 2})

	// The wall sits three ticks from the best ask.
	if sig := s.CheckSignal(bidWallBook()); sig != nil {
		t.Fatalf("got signal %+v from a wall outside the activation band", sig)
	}
}

func TestCheckSignal_MinWallVolume(t *testing.T) {
	s := newWallStrategy(t, Params{"min_wall_volume": 1000})

	if sig := s.CheckSignal(bidWallBook()); sig != nil {
		t.Fatalf("got signal %+v from a wall below the volume floor", sig)
	}
}

func TestCheckSignal_VolatilityGate(t *testing.T) {
	params := func() Params {
		return Params{
			"wall_volume_multiplier": 2,
			"volatility_window":      3,
			"max_volatility_percent": 1,
		}
	}

	// Stable mids keep the gate open.
	calm := NewLiquidityWall("BTCUSDT", params())
	var sig *Signal
	for i := 0; i < 3; i++ {
		sig = calm.CheckSignal(bidWallBook())
	}
	if sig == nil {
		t.Fatal("expected a signal once the window filled with stable mids")
	}

	// Swinging mids trip the gate even with a valid wall in the book.
	choppy := NewLiquidityWall("BTCUSDT", params())
	swing := bidWallBook()
	swing.bids[0] = lv("200", "5")
	swing.asks[0] = lv("200.01", "5")

	choppy.CheckSignal(bidWallBook())
	choppy.CheckSignal(swing)
	if sig := choppy.CheckSignal(bidWallBook()); sig != nil {
		t.Fatalf("got signal %+v during volatile conditions", sig)
	}
}

func TestCalculateBracket_Long(t *testing.T) {
	s := NewLiquidityWall("BTCUSDT", Params{"stop_loss_percent": 2})
	tick := decimal.RequireFromString("0.01")

	book := &fakeBook{
		asks: []types.PriceLevel{lv("100.5", "10"), lv("101.5", "50"), lv("102", "200"), lv("104", "500")},
	}
	br := s.CalculateBracket(decimal.NewFromInt(100), types.SideLong, book, tick)
	if br == nil {
		t.Fatal("expected a bracket")
	}
	if !br.StopLoss.Equal(decimal.NewFromInt(98)) {
		t.Fatalf("stop = %s, want 98", br.StopLoss)
	}
	// Heaviest ask inside the 1%..3% search band.
	if !br.TakeProfit.Equal(decimal.NewFromInt(102)) {
		t.Fatalf("take profit = %s, want 102", br.TakeProfit)
	}
}

func TestCalculateBracket_Short(t *testing.T) {
	s := NewLiquidityWall("BTCUSDT", Params{"stop_loss_percent": 2})
	tick := decimal.RequireFromString("0.01")

	book := &fakeBook{
		bids: []types.PriceLevel{lv("99.5", "10"), lv("98.5", "300"), lv("97.5", "50")},
	}
	br := s.CalculateBracket(decimal.NewFromInt(100), types.SideShort, book, tick)
	if br == nil {
		t.Fatal("expected a bracket")
	}
	if !br.StopLoss.Equal(decimal.NewFromInt(102)) {
		t.Fatalf("stop = %s, want 102", br.StopLoss)
	}
	if !br.TakeProfit.Equal(decimal.RequireFromString("98.5")) {
		t.Fatalf("take profit = %s, want 98.5", br.TakeProfit)
	}
}

func TestCalculateBracket_EmptyBandFallsBackToEdge(t *testing.T) {
	s := NewLiquidityWall("BTCUSDT", Params{})
	tick := decimal.RequireFromString("0.01")

	book := &fakeBook{
		asks: []types.PriceLevel{lv("100.5", "10"), lv("104", "500")},
	}
	br := s.CalculateBracket(decimal.NewFromInt(100), types.SideLong, book, tick)
	if br == nil {
		t.Fatal("expected a bracket")
	}
	if !br.TakeProfit.Equal(decimal.NewFromInt(103)) {
		t.Fatalf("take profit = %s, want the 3%% band edge 103", br.TakeProfit)
	}
}

func TestCalculateBracket_Invalid(t *testing.T) {
	s := NewLiquidityWall("BTCUSDT", Params{})
	tick := decimal.RequireFromString("0.01")
	book := &fakeBook{}

	if br := s.CalculateBracket(decimal.Zero, types.SideLong, book, tick); br != nil {
		t.Fatalf("bracket from zero entry: %+v", br)
	}
	if br := s.CalculateBracket(decimal.NewFromInt(100), types.SideFlat, book, tick); br != nil {
		t.Fatalf("bracket for flat side: %+v", br)
	}
}

func testPosition(side types.Side) types.Position {
	return types.Position{
		Symbol:     "BTCUSDT",
		Side:       side,
		Quantity:   decimal.RequireFromString("0.5"),
		EntryPrice: decimal.NewFromInt(100),
		StopLoss:   decimal.NewFromInt(98),
		TakeProfit: decimal.NewFromInt(104),
	}
}

func TestAnalyzeAndAdjust_TrailingLong(t *testing.T) {
	s := NewLiquidityWall("BTCUSDT", Params{})

	book := &fakeBook{
		bids: []types.PriceLevel{lv("103", "5")},
		asks: []types.PriceLevel{lv("103.01", "5")},
	}
	adj := s.AnalyzeAndAdjust(testPosition(types.SideLong), book)
	if adj == nil || adj.Command != CommandAdjust {
		t.Fatalf("adjustment = %+v, want ADJUST", adj)
	}
	if !adj.StopLoss.Equal(decimal.RequireFromString("101.97")) {
		t.Fatalf("trailed stop = %s, want 101.97", adj.StopLoss)
	}
	if !adj.TakeProfit.Equal(decimal.RequireFromString("106.09")) {
		t.Fatalf("trailed take profit = %s, want 106.09", adj.TakeProfit)
	}
}

func TestAnalyzeAndAdjust_TrailingShort(t *testing.T) {
	s := NewLiquidityWall("BTCUSDT", Params{})

	pos := testPosition(types.SideShort)
	pos.StopLoss = decimal.NewFromInt(102)
	pos.TakeProfit = decimal.NewFromInt(96)

	book := &fakeBook{
		bids: []types.PriceLevel{lv("96.99", "5")},
		asks: []types.PriceLevel{lv("97", "5")},
	}
	adj := s.AnalyzeAndAdjust(pos, book)
	if adj == nil || adj.Command != CommandAdjust {
		t.Fatalf("adjustment = %+v, want ADJUST", adj)
	}
	if !adj.StopLoss.Equal(decimal.RequireFromString("97.97")) {
		t.Fatalf("trailed stop = %s, want 97.97", adj.StopLoss)
	}
}

func TestAnalyzeAndAdjust_NoTrailBelowEntry(t *testing.T) {
	s := NewLiquidityWall("BTCUSDT", Params{})

	// Price at entry: the one-percent trail would land below the entry.
	book := &fakeBook{
		bids: []types.PriceLevel{lv("100", "5")},
		asks: []types.PriceLevel{lv("100.01", "5")},
	}
	if adj := s.AnalyzeAndAdjust(testPosition(types.SideLong), book); adj != nil {
		t.Fatalf("adjustment = %+v, want none", adj)
	}
}

func TestAnalyzeAndAdjust_PressureClose(t *testing.T) {
	s := NewLiquidityWall("BTCUSDT", Params{"pressure_window": 1})

	// Heavy asks just above the market against thin bids.
	book := &fakeBook{
		bids: []types.PriceLevel{lv("100", "5"), lv("99.8", "50")},
		asks: []types.PriceLevel{lv("100.2", "300")},
	}
	adj := s.AnalyzeAndAdjust(testPosition(types.SideLong), book)
	if adj == nil || adj.Command != CommandClose {
		t.Fatalf("adjustment = %+v, want CLOSE", adj)
	}
	if adj.Reason != "ask pressure" {
		t.Fatalf("reason = %q", adj.Reason)
	}
}

func TestAnalyzeAndAdjust_PressureIsSmoothed(t *testing.T) {
	s := NewLiquidityWall("BTCUSDT", Params{"pressure_window": 5})

	book := &fakeBook{
		bids: []types.PriceLevel{lv("100", "5"), lv("99.8", "50")},
		asks: []types.PriceLevel{lv("100.2", "300")},
	}
	// A single skewed observation must not force a close.
	if adj := s.AnalyzeAndAdjust(testPosition(types.SideLong), book); adj != nil {
		t.Fatalf("adjustment = %+v after one observation, want none", adj)
	}
}

func TestRegistry(t *testing.T) {
	s, err := New("liquiditywall", "BTCUSDT", Params{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Name() != "liquiditywall" {
		t.Fatalf("name = %q", s.Name())
	}

	if _, err := New("momentum", "BTCUSDT", Params{}); err == nil {
		t.Fatal("expected an error for an unregistered strategy")
	}
}
