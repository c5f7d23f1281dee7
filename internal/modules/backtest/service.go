package backtest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfin/internal/domain"
	"github.com/aristath/portfin/internal/events"
	"github.com/aristath/portfin/internal/modules/metrics"
)

const (
	eventModule = "backtest"
	// fetchMargin pads the fetched range so boundary lookups can fall back to an earlier trading day.
	fetchMargin = 10 * 24 * time.Hour
)

// Request describes one backtest to run.
type Request struct {
	Name      string   `json:"name" yaml:"name"`
	Universe  []string `json:"universe" yaml:"universe"`
	Benchmark string   `json:"benchmark" yaml:"benchmark"`
	Config    Config   `json:"config" yaml:"config"`
}

// Validate normalizes symbols and checks the configuration.
func (r *Request) Validate() error {
	symbols := make([]string, 0, len(r.Universe))
	for _, s := range r.Universe {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		return fmt.Errorf("universe is empty: %w", domain.ErrInvalidConfig)
	}
	r.Universe = symbols
	r.Benchmark = strings.ToUpper(strings.TrimSpace(r.Benchmark))
	if r.Benchmark == "" {
		return fmt.Errorf("benchmark symbol required: %w", domain.ErrInvalidConfig)
	}
	return r.Config.Validate()
}

// Run is a completed, persisted backtest.
type Run struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	CreatedAt time.Time             `json:"created_at"`
	Universe  []string              `json:"universe"`
	Benchmark string                `json:"benchmark"`
	Config    Config                `json:"config"`
	Summary   metrics.Summary       `json:"summary"`
	Years     []domain.YearSnapshot `json:"years,omitempty"`
}

// RunStore persists completed runs. Save assigns the ID.
type RunStore interface {
	Save(ctx context.Context, run *Run) error
}

// Exporter publishes a completed run to external storage.
type Exporter interface {
	Export(ctx context.Context, run *Run) error
}

// Service fetches prices, runs simulations and records the results.
type Service struct {
	prices   domain.PriceWindowProvider
	store    RunStore
	exporter Exporter
	events   *events.Manager
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates a backtest service. store, exporter and eventManager may be nil.
func NewService(prices domain.PriceWindowProvider, store RunStore, exporter Exporter, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		prices:   prices,
		store:    store,
		exporter: exporter,
		events:   eventManager,
		now:      time.Now,
		log:      log.With().Str("service", "backtest").Logger(),
	}
}

// Run executes req end to end and returns the stored run.
func (s *Service) Run(ctx context.Context, req Request) (*Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Name == "" {
		req.Name = fmt.Sprintf("%s-%d", strings.ToLower(string(req.Config.OptimizerSpec().Kind)), s.now().Unix())
	}

	run, err := s.run(ctx, req)
	if err != nil {
		s.events.EmitError(eventModule, req.Name, err)
		s.log.Error().Err(err).Str("run", req.Name).Msg("Backtest failed")
		return nil, err
	}
	return run, nil
}

func (s *Service) run(ctx context.Context, req Request) (*Run, error) {
	cfg := req.Config
	start, end := s.fetchRange(&cfg)

	series, err := s.prices.Fetch(ctx, req.Universe, req.Benchmark, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	sim, err := NewSimulatorFromConfig(cfg, s.log)
	if err != nil {
		return nil, err
	}
	if err := sim.Seed(series); err != nil {
		return nil, err
	}

	s.events.Emit(eventModule, &events.BacktestStartedData{
		RunName:   req.Name,
		Optimizer: sim.optimizer.Name(),
		Years:     cfg.Years,
		Universe:  series.Universe,
		Benchmark: series.Benchmark,
	})
	sim.OnYear(func(y domain.YearSnapshot) {
		s.events.Emit(eventModule, &events.YearCompletedData{
			RunName:          req.Name,
			Year:             y.Year,
			Years:            cfg.Years,
			RebalanceDate:    y.RebalanceDate,
			Capital:          y.Portfolio.Capital,
			BenchmarkCapital: y.Benchmark.Capital,
			Weights:          y.Portfolio.Weights,
			Degraded:         y.Degraded,
		})
	})

	results, err := sim.Run(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := metrics.Summarize(results)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	run := &Run{
		Name:      req.Name,
		CreatedAt: s.now().UTC(),
		Universe:  series.Universe,
		Benchmark: series.Benchmark,
		Config:    cfg,
		Summary:   summary,
		Years:     results.Entries(),
	}

	if s.store != nil {
		if err := s.store.Save(ctx, run); err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
	}
	if s.exporter != nil {
		if err := s.exporter.Export(ctx, run); err != nil {
			s.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to export run")
		}
	}

	s.events.Emit(eventModule, &events.BacktestCompletedData{
		RunID:            run.ID,
		RunName:          run.Name,
		FinalCapital:     summary.FinalCapital,
		BenchmarkCapital: summary.FinalBenchmark,
		DegradedYears:    summary.DegradedYears,
	})
	s.log.Info().
		Str("run", run.Name).
		Str("run_id", run.ID).
		Float64("final_capital", summary.FinalCapital).
		Float64("benchmark_capital", summary.FinalBenchmark).
		Float64("cagr", summary.CAGR).
		Msg("Backtest completed")
	return run, nil
}

// fetchRange picks the price range to load. Without an explicit start the
// horizon ends today and cfg.StartDate is set to the first rebalance date.
func (s *Service) fetchRange(cfg *Config) (time.Time, time.Time) {
	if cfg.StartDate.IsZero() {
		end := domain.Day(s.now())
		start := end.AddDate(-(cfg.Years + cfg.Window), 0, 0)
		cfg.StartDate = start.AddDate(cfg.Window, 0, 0)
		return start.Add(-fetchMargin), end
	}
	first := domain.Day(cfg.StartDate)
	cfg.StartDate = first
	return first.AddDate(-cfg.Window, 0, 0).Add(-fetchMargin), first.AddDate(cfg.Years, 0, 0).Add(fetchMargin)
}
