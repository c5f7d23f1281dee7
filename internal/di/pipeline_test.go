package di

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfin/internal/domain"
	"github.com/aristath/portfin/internal/modules/backtest"
	"github.com/aristath/portfin/internal/modules/optimization"
	testutil "github.com/aristath/portfin/internal/testing"
)

// Backtest through the wired results store with prices doubling every 365 days.
func TestBacktestPipeline(t *testing.T) {
	container, _, err := Wire(context.Background(), testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	start := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2013, 1, 31, 0, 0, 0, 0, time.UTC)
	doubling := func(i int) float64 { return 100 * math.Pow(2, float64(i)/365) }
	prices := testutil.NewMockPriceProvider(map[string][]domain.PricePoint{
		"VTI": testutil.DailyPoints(start, end, doubling),
		"SPY": testutil.DailyPoints(start, end, doubling),
	})

	svc := backtest.NewService(prices, container.ResultsRepo, nil, container.EventManager, zerolog.Nop())

	cfg := backtest.DefaultConfig()
	cfg.Years = 2
	cfg.Window = 1
	cfg.Optimizer = optimization.KindEqual
	cfg.StartDate = time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC)

	run, err := svc.Run(context.Background(), backtest.Request{
		Name:      "pipeline",
		Universe:  []string{"VTI"},
		Benchmark: "SPY",
		Config:    cfg,
	})
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)

	// 2012 is a leap year so the second holding period runs 366 days
	want := 1000 * 2 * math.Pow(2, 366.0/365)
	assert.InDelta(t, want, run.Summary.FinalCapital, 1e-6)
	assert.InDelta(t, run.Summary.FinalBenchmark, run.Summary.FinalCapital, 1e-6)

	calls := prices.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Start.Before(start))

	stored, err := container.ResultsRepo.Get(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, stored.Years, 2)
	assert.InDelta(t, 2000.0, stored.Years[0].Portfolio.Capital, 1e-6)
	assert.InDelta(t, 1.0, stored.Years[1].Portfolio.Weights["VTI"], 1e-12)

	prices.SetError(domain.ErrDataUnavailable)
	_, err = svc.Run(context.Background(), backtest.Request{Universe: []string{"VTI"}, Benchmark: "SPY", Config: cfg})
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}
