package testing

import (
	"time"

	"github.com/aristath/portfin/internal/domain"
	"github.com/aristath/portfin/internal/modules/backtest"
	"github.com/aristath/portfin/internal/modules/metrics"
)

// DailyPoints returns one observation per calendar day in [start, end].
func DailyPoints(start, end time.Time, price func(i int) float64) []domain.PricePoint {
	var points []domain.PricePoint
	i := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		points = append(points, domain.PricePoint{Date: d, Price: price(i)})
		i++
	}
	return points
}

// NewRunFixture returns a two-year completed run with one degraded year.
func NewRunFixture(name string) *backtest.Run {
	start := time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC)
	cfg := backtest.DefaultConfig()
	cfg.Years = 2
	cfg.StartDate = start

	years := []domain.YearSnapshot{
		{
			Year:            1,
			RebalanceDate:   start,
			HoldingEnd:      start.AddDate(1, 0, 0),
			StartingCapital: 1000,
			Portfolio: domain.PortfolioState{
				AsOf:    start.AddDate(1, 0, 0),
				Capital: 1100,
				Weights: domain.Weights{"VTI": 0.6, "BND": 0.4},
			},
			Benchmark: domain.BenchmarkState{Symbol: "SPY", AsOf: start.AddDate(1, 0, 0), Capital: 1080},
		},
		{
			Year:            2,
			RebalanceDate:   start.AddDate(1, 0, 0),
			HoldingEnd:      start.AddDate(2, 0, 0),
			StartingCapital: 1100,
			Portfolio: domain.PortfolioState{
				AsOf:    start.AddDate(2, 0, 0),
				Capital: 1155,
				Weights: domain.Weights{"VTI": 0.6, "BND": 0.4},
			},
			Benchmark: domain.BenchmarkState{Symbol: "SPY", AsOf: start.AddDate(2, 0, 0), Capital: 1200},
			Degraded:  true,
			Conditions: []domain.Condition{
				{Code: domain.ConditionInfeasibleConstraints, Message: "floor too high"},
			},
		},
	}

	return &backtest.Run{
		Name:      name,
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Universe:  []string{"BND", "VTI"},
		Benchmark: "SPY",
		Config:    cfg,
		Summary: metrics.Summary{
			Years:          2,
			InitialCapital: 1000,
			FinalCapital:   1155,
			FinalBenchmark: 1200,
			DegradedYears:  1,
		},
		Years: years,
	}
}
