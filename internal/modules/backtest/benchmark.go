package backtest

import (
	"fmt"
	"time"

	"github.com/aristath/portfin/internal/domain"
)

// BenchmarkTracker compounds 100% of capital in the benchmark on the same
// dates and contribution schedule as the portfolio.
type BenchmarkTracker struct {
	series    *domain.PriceSeries
	tolerance time.Duration
	state     domain.BenchmarkState
}

// NewBenchmarkTracker starts the benchmark at initialCapital on start.
func NewBenchmarkTracker(series *domain.PriceSeries, initialCapital float64, start time.Time) (*BenchmarkTracker, error) {
	if series == nil || !series.Has(series.Benchmark) {
		return nil, fmt.Errorf("benchmark has no price history: %w", domain.ErrDataUnavailable)
	}
	return &BenchmarkTracker{
		series:    series,
		tolerance: domain.DefaultStaleness,
		state: domain.BenchmarkState{
			Symbol:  series.Benchmark,
			AsOf:    start,
			Capital: initialCapital,
		},
	}, nil
}

// Covers checks that a benchmark price is available near every date.
func (b *BenchmarkTracker) Covers(dates ...time.Time) error {
	for _, d := range dates {
		if _, ok := b.series.PriceNear(b.state.Symbol, d, b.tolerance); !ok {
			return fmt.Errorf("no %s price within %s of %s: %w",
				b.state.Symbol, b.tolerance, d.Format("2006-01-02"), domain.ErrDataUnavailable)
		}
	}
	return nil
}

// Advance adds the contribution at start and compounds through end.
func (b *BenchmarkTracker) Advance(start, end time.Time, contribution float64) (domain.BenchmarkState, error) {
	if err := b.Covers(start, end); err != nil {
		return b.state, err
	}
	startPrice, _ := b.series.PriceNear(b.state.Symbol, start, b.tolerance)
	endPrice, _ := b.series.PriceNear(b.state.Symbol, end, b.tolerance)

	capital := b.state.Capital + contribution
	b.state = domain.BenchmarkState{
		Symbol:  b.state.Symbol,
		AsOf:    end,
		Capital: capital * (endPrice / startPrice),
	}
	return b.state, nil
}

// State returns the current benchmark state.
func (b *BenchmarkTracker) State() domain.BenchmarkState {
	return b.state
}
