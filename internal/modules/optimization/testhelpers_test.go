package optimization

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aristath/portfin/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// buildSeries generates one price per calendar day in [start, end] for each asset.
func buildSeries(t *testing.T, start, end time.Time, benchmark string, gen map[string]func(i int, d time.Time) float64) *domain.PriceSeries {
	t.Helper()
	points := make(map[string][]domain.PricePoint, len(gen))
	universe := make([]string, 0, len(gen))
	for asset, f := range gen {
		if asset != benchmark {
			universe = append(universe, asset)
		}
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

// wave produces a deterministic oscillating price path.
func wave(base, amp, period, phase float64) func(int, time.Time) float64 {
	return func(i int, _ time.Time) float64 {
		return base * (1 + amp*math.Sin(float64(i)/period+phase)) * (1 + 0.0002*float64(i))
	}
}

func flat(p float64) func(int, time.Time) float64 {
	return func(int, time.Time) float64 { return p }
}

func assertWeightInvariants(t *testing.T, w domain.Weights, minWeight float64) {
	t.Helper()
	var sum float64
	for a, v := range w {
		require.GreaterOrEqual(t, v, 0.0, a)
		require.LessOrEqual(t, v, 1.0, a)
		if v > 0 {
			require.GreaterOrEqual(t, v, minWeight-1e-9, a)
		}
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-3)
}

func diagEstimate(assets []string, mu, variances []float64) *Estimate {
	cov := make([][]float64, len(variances))
	for i := range cov {
		cov[i] = make([]float64, len(variances))
		cov[i][i] = variances[i]
	}
	return &Estimate{Assets: assets, ExpectedReturns: mu, Covariance: cov}
}
