package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfin/internal/domain"
	"github.com/aristath/portfin/internal/modules/optimization"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type pricePath func(i int, d time.Time) float64

// buildSeries generates one price per calendar day in [start, end]. Assets
// listed in universe are investable; benchmark may also appear in universe.
func buildSeries(t *testing.T, start, end time.Time, universe []string, benchmark string, paths map[string]pricePath) *domain.PriceSeries {
	t.Helper()
	points := make(map[string][]domain.PricePoint, len(paths))
	for asset, f := range paths {
		i := 0
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			points[asset] = append(points[asset], domain.PricePoint{Date: d, Price: f(i, d)})
			i++
		}
	}
	series, err := domain.NewPriceSeries(universe, benchmark, points)
	require.NoError(t, err)
	return series
}

func flat(p float64) pricePath {
	return func(int, time.Time) float64 { return p }
}

// doublingEachYear doubles on every January 1st after base year.
func doublingEachYear(p float64, base int) pricePath {
	return func(_ int, d time.Time) float64 {
		return p * math.Pow(2, float64(d.Year()-base))
	}
}

// smoothDoubling grows continuously at 100% a year.
func smoothDoubling(p float64, origin time.Time) pricePath {
	return func(_ int, d time.Time) float64 {
		return p * math.Pow(2, d.Sub(origin).Hours()/24/365.25)
	}
}

func zigzag(p, amp float64) pricePath {
	return func(i int, _ time.Time) float64 {
		if i%2 == 1 {
			return p + amp
		}
		return p
	}
}

func wave(base, amp, period, phase float64) pricePath {
	return func(i int, _ time.Time) float64 {
		return base * (1 + amp*math.Sin(float64(i)/period+phase)) * (1 + 0.0002*float64(i))
	}
}

func testConfig(years, window int) Config {
	cfg := DefaultConfig()
	cfg.Years = years
	cfg.Window = window
	return cfg
}

func newEqualSimulator(t *testing.T, cfg Config) *Simulator {
	t.Helper()
	estimator, err := optimization.NewReturnEstimator(cfg.EstimatorOptions(), zerolog.Nop())
	require.NoError(t, err)
	sim, err := NewSimulator(cfg, estimator, optimization.NewEqualWeight(), zerolog.Nop())
	require.NoError(t, err)
	return sim
}

// flakyOptimizer fails on the listed 1-based call numbers and delegates otherwise.
type flakyOptimizer struct {
	inner  optimization.Optimizer
	failOn map[int]error
	calls  int
}

func (f *flakyOptimizer) Name() string { return "flaky" }

func (f *flakyOptimizer) Optimize(est *optimization.Estimate, c optimization.Constraints) (domain.Weights, error) {
	f.calls++
	if err, ok := f.failOn[f.calls]; ok {
		return nil, err
	}
	return f.inner.Optimize(est, c)
}
