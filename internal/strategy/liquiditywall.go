package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/andriipushkar/scalpbot/internal/types"
	"github.com/andriipushkar/scalpbot/pkg/rolling"
)

func init() {
	Register("liquiditywall", func(symbol string, params Params) (Strategy, error) {
		return NewLiquidityWall(symbol, params), nil
	})
}

// LiquidityWall trades toward large resting liquidity: a bid wall near the
// market supports a long, an ask wall a short. Stops are percentage based,
// take-profits snap to the heaviest book level in a configured search band,
// and open positions trail their stop behind the touch price.
type LiquidityWall struct {
	symbol string

	wallVolumeMultiplier    decimal.Decimal // wall = level > avg volume * multiplier
	minWallVolume           decimal.Decimal
	activationDistanceTicks decimal.Decimal // max distance from price to wall
	maxSpreadBps            decimal.Decimal
	depthLevels             int

	stopLossPct       decimal.Decimal // stop distance, percent of entry
	tpSearchMinPct    decimal.Decimal // TP search band lower bound
	tpSearchMaxPct    decimal.Decimal // TP search band upper bound
	trailDistancePct  decimal.Decimal
	closePressureMult decimal.Decimal // opposing/supporting volume ratio forcing a close
	pressureRangePct  decimal.Decimal
	maxVolatilityPct  decimal.Decimal // relative mid-price stddev above which entries pause

	midVol   *rolling.StdDev // mid price over recent updates
	pressure *rolling.Mean   // smoothed opposing/supporting volume ratio
}

// NewLiquidityWall builds the strategy from configured parameters.
func NewLiquidityWall(symbol string, params Params) *LiquidityWall {
	return &LiquidityWall{
		symbol:                  symbol,
		wallVolumeMultiplier:    decimal.NewFromFloat(params.Get("wall_volume_multiplier", 10)),
		minWallVolume:           decimal.NewFromFloat(params.Get("min_wall_volume", 100)),
		activationDistanceTicks: decimal.NewFromFloat(params.Get("activation_distance_ticks", 15)),
		maxSpreadBps:            decimal.NewFromFloat(params.Get("max_spread_bps", 5)),
		depthLevels:             int(params.Get("depth_levels", 20)),
		stopLossPct:             decimal.NewFromFloat(params.Get("stop_loss_percent", 1.5)),
		tpSearchMinPct:          decimal.NewFromFloat(params.Get("tp_min_search_percent", 1.0)),
		tpSearchMaxPct:          decimal.NewFromFloat(params.Get("tp_search_percent", 3.0)),
		trailDistancePct:        decimal.NewFromFloat(params.Get("trailing_sl_distance_percent", 1.0)),
		closePressureMult:       decimal.NewFromFloat(params.Get("close_pressure_multiplier", 2.0)),
		pressureRangePct:        decimal.NewFromFloat(params.Get("pressure_range_percent", 0.5)),
		maxVolatilityPct:        decimal.NewFromFloat(params.Get("max_volatility_percent", 2.0)),
		midVol:                  rolling.NewStdDev(int(params.Get("volatility_window", 50))),
		pressure:                rolling.NewMean(int(params.Get("pressure_window", 5))),
	}
}

// Name implements Strategy.
func (s *LiquidityWall) Name() string { return "liquiditywall" }

// CheckSignal implements Strategy.
func (s *LiquidityWall) CheckSignal(view BookView) *Signal {
	bestBid, okBid := view.BestBid()
	bestAsk, okAsk := view.BestAsk()
	if !okBid || !okAsk {
		return nil
	}

	// Wide spread means thin liquidity; stand aside.
	spread := bestAsk.Price.Sub(bestBid.Price)
	if bestBid.Price.IsPositive() {
		spreadBps := spread.Div(bestBid.Price).Mul(decimal.NewFromInt(10000))
		if spreadBps.GreaterThan(s.maxSpreadBps) {
			return nil
		}
	}
	// Choppy conditions defeat wall-based entries: walls get eaten or
	// pulled before price reaches them. Pause entries while the mid price
	// is unusually volatile.
	mid := bestBid.Price.Add(bestAsk.Price).Div(decimal.NewFromInt(2))
	s.midVol.Add(mid)
	if s.midVol.Full() && s.maxVolatilityPct.IsPositive() {
		mean := s.midVol.Mean()
		if mean.IsPositive() {
			relVol := s.midVol.Value().Div(mean).Mul(decimal.NewFromInt(100))
			if relVol.GreaterThan(s.maxVolatilityPct) {
				return nil
			}
		}
	}

	tick := s.tickFromBook(view)

	bids := view.BidDepth(s.depthLevels)
	if wall, ok := s.findWall(bids); ok {
		distance := bestAsk.Price.Sub(wall.Price)
		if s.withinActivation(distance, tick) {
			return &Signal{
				Side:           types.SideLong,
				ReferencePrice: wall.Price,
				Reason:         "bid wall " + wall.Quantity.String() + " @ " + wall.Price.String(),
			}
		}
	}

	asks := view.AskDepth(s.depthLevels)
	if wall, ok := s.findWall(asks); ok {
		distance := wall.Price.Sub(bestBid.Price)
		if s.withinActivation(distance, tick) {
			return &Signal{
				Side:           types.SideShort,
				ReferencePrice: wall.Price,
				Reason:         "ask wall " + wall.Quantity.String() + " @ " + wall.Price.String(),
			}
		}
	}

	return nil
}

// CalculateBracket implements Strategy. The stop is a fixed percentage from
// entry; the take-profit snaps to the heaviest opposing level inside the
// search band, or the band edge when the band is empty.
func (s *LiquidityWall) CalculateBracket(entryPrice decimal.Decimal, side types.Side, view BookView, priceTick decimal.Decimal) *Bracket {
	if !entryPrice.IsPositive() {
		return nil
	}
	hundred := decimal.NewFromInt(100)

	switch side {
	case types.SideLong:
		stop := entryPrice.Mul(decimal.NewFromInt(1).Sub(s.stopLossPct.Div(hundred)))
		lo := entryPrice.Mul(decimal.NewFromInt(1).Add(s.tpSearchMinPct.Div(hundred)))
		hi := entryPrice.Mul(decimal.NewFromInt(1).Add(s.tpSearchMaxPct.Div(hundred)))
		tp := heaviestLevelIn(view.AskDepth(0), lo, hi)
		if tp.IsZero() {
			tp = hi
		}
		return &Bracket{StopLoss: roundToTick(stop, priceTick), TakeProfit: roundToTick(tp, priceTick)}

	case types.SideShort:
		stop := entryPrice.Mul(decimal.NewFromInt(1).Add(s.stopLossPct.Div(hundred)))
		lo := entryPrice.Mul(decimal.NewFromInt(1).Sub(s.tpSearchMaxPct.Div(hundred)))
		hi := entryPrice.Mul(decimal.NewFromInt(1).Sub(s.tpSearchMinPct.Div(hundred)))
		tp := heaviestLevelIn(view.BidDepth(0), lo, hi)
		if tp.IsZero() {
			tp = lo
		}
		return &Bracket{StopLoss: roundToTick(stop, priceTick), TakeProfit: roundToTick(tp, priceTick)}
	}
	return nil
}

// AnalyzeAndAdjust implements Strategy: trailing stop once the trail clears
// the entry price, and a pre-emptive close when opposing book pressure
// dominates.
func (s *LiquidityWall) AnalyzeAndAdjust(pos types.Position, view BookView) *Adjustment {
	hundred := decimal.NewFromInt(100)

	switch pos.Side {
	case types.SideLong:
		bid, ok := view.BestBid()
		if !ok {
			return nil
		}
		price := bid.Price

		newStop := price.Mul(decimal.NewFromInt(1).Sub(s.trailDistancePct.Div(hundred)))
		if newStop.GreaterThan(pos.StopLoss) && newStop.GreaterThan(pos.EntryPrice) {
			newTP := price.Mul(decimal.NewFromInt(1).Add(s.tpSearchMaxPct.Div(hundred)))
			return &Adjustment{
				Command:    CommandAdjust,
				StopLoss:   newStop,
				TakeProfit: newTP,
				Reason:     "trailing stop",
			}
		}

		if s.opposingPressure(view, price, types.SideLong) {
			return &Adjustment{Command: CommandClose, Reason: "ask pressure"}
		}

	case types.SideShort:
		ask, ok := view.BestAsk()
		if !ok {
			return nil
		}
		price := ask.Price

		newStop := price.Mul(decimal.NewFromInt(1).Add(s.trailDistancePct.Div(hundred)))
		if newStop.LessThan(pos.StopLoss) && newStop.LessThan(pos.EntryPrice) {
			newTP := price.Mul(decimal.NewFromInt(1).Sub(s.tpSearchMaxPct.Div(hundred)))
			return &Adjustment{
				Command:    CommandAdjust,
				StopLoss:   newStop,
				TakeProfit: newTP,
				Reason:     "trailing stop",
			}
		}

		if s.opposingPressure(view, price, types.SideShort) {
			return &Adjustment{Command: CommandClose, Reason: "bid pressure"}
		}
	}
	return nil
}

// findWall returns the first level whose quantity exceeds the side's average
// by the configured multiplier and meets the minimum volume.
func (s *LiquidityWall) findWall(levels []types.PriceLevel) (types.PriceLevel, bool) {
	if len(levels) == 0 {
		return types.PriceLevel{}, false
	}
	total := decimal.Zero
	for _, pl := range levels {
		total = total.Add(pl.Quantity)
	}
	threshold := total.Div(decimal.NewFromInt(int64(len(levels)))).Mul(s.wallVolumeMultiplier)

	for _, pl := range levels {
		if pl.Quantity.GreaterThan(threshold) && pl.Quantity.GreaterThanOrEqual(s.minWallVolume) {
			return pl, true
		}
	}
	return types.PriceLevel{}, false
}

func (s *LiquidityWall) withinActivation(distance, tick decimal.Decimal) bool {
	if !distance.IsPositive() || !tick.IsPositive() {
		return false
	}
	ticks := distance.Div(tick)
	return ticks.LessThanOrEqual(s.activationDistanceTicks)
}

// opposingPressure compares opposing and supporting volume within the
// pressure band around price. The ratio is smoothed over recent updates so
// a single spoofed level does not force a close.
func (s *LiquidityWall) opposingPressure(view BookView, price decimal.Decimal, side types.Side) bool {
	band := price.Mul(s.pressureRangePct.Div(decimal.NewFromInt(100)))

	askVol := volumeBelow(view.AskDepth(0), price.Add(band))
	bidVol := volumeAbove(view.BidDepth(0), price.Sub(band))

	var ratio decimal.Decimal
	if side == types.SideLong {
		if !bidVol.IsPositive() {
			return false
		}
		ratio = askVol.Div(bidVol)
	} else {
		if !askVol.IsPositive() {
			return false
		}
		ratio = bidVol.Div(askVol)
	}
	s.pressure.Add(ratio)
	return s.pressure.Full() && s.pressure.Value().GreaterThan(s.closePressureMult)
}

// tickFromBook estimates the price tick as the smallest gap between adjacent
// bid levels. Used only for wall-distance filtering, not for order rounding.
func (s *LiquidityWall) tickFromBook(view BookView) decimal.Decimal {
	bids := view.BidDepth(10)
	tick := decimal.Zero
	for i := 1; i < len(bids); i++ {
		gap := bids[i-1].Price.Sub(bids[i].Price).Abs()
		if gap.IsPositive() && (tick.IsZero() || gap.LessThan(tick)) {
			tick = gap
		}
	}
	if tick.IsZero() {
		tick = decimal.NewFromFloat(0.01)
	}
	return tick
}

func heaviestLevelIn(levels []types.PriceLevel, lo, hi decimal.Decimal) decimal.Decimal {
	best := decimal.Zero
	bestVol := decimal.Zero
	for _, pl := range levels {
		if pl.Price.LessThan(lo) || pl.Price.GreaterThan(hi) {
			continue
		}
		if pl.Quantity.GreaterThan(bestVol) {
			bestVol = pl.Quantity
			best = pl.Price
		}
	}
	return best
}

func volumeBelow(levels []types.PriceLevel, limit decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, pl := range levels {
		if pl.Price.LessThan(limit) {
			total = total.Add(pl.Quantity)
		}
	}
	return total
}

func volumeAbove(levels []types.PriceLevel, limit decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, pl := range levels {
		if pl.Price.GreaterThan(limit) {
			total = total.Add(pl.Quantity)
		}
	}
	return total
}

func roundToTick(p, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return p
	}
	return p.Div(tick).Round(0).Mul(tick)
}
