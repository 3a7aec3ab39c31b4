package alerting

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySummary contains daily trading statistics for the summary report.
type DailySummary struct {
	Date          time.Time
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       decimal.Decimal
	GrossPL       decimal.Decimal
	Rollbacks     int
	OpenPositions int
}

// NewDailySummary creates a new daily summary from the provided data.
func NewDailySummary(
	date time.Time,
	totalTrades, winningTrades, losingTrades int,
	grossPL decimal.Decimal,
	rollbacks, openPositions int,
) DailySummary {
	var winRate decimal.Decimal
	if totalTrades > 0 {
		winRate = decimal.NewFromInt(int64(winningTrades)).
			Div(decimal.NewFromInt(int64(totalTrades))).
			Mul(decimal.NewFromInt(100))
	}

	return DailySummary{
		Date:          date,
		TotalTrades:   totalTrades,
		WinningTrades: winningTrades,
		LosingTrades:  losingTrades,
		WinRate:       winRate,
		GrossPL:       grossPL,
		Rollbacks:     rollbacks,
		OpenPositions: openPositions,
	}
}
