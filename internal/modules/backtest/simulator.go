package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/portfin/internal/domain"
	"github.com/aristath/portfin/internal/modules/optimization"
)

// State is the simulator lifecycle position.
type State int

const (
	StateUninitialized State = iota
	StateSeeded
	StateRebalancing
	StateHolding
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSeeded:
		return "seeded"
	case StateRebalancing:
		return "rebalancing"
	case StateHolding:
		return "holding"
	case StateCompleted:
		return "completed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Estimator produces the return/risk view of a trailing window.
type Estimator interface {
	Estimate(series *domain.PriceSeries, windowYears int, asOf time.Time) (*optimization.Estimate, error)
}

// Simulator advances a portfolio one rebalance year at a time.
//
// Uninitialized -> Seeded -> (Rebalancing -> Holding)* -> Completed.
//
// A Simulator is not safe for concurrent use; results may be shared once Completed.
type Simulator struct {
	cfg       Config
	estimator Estimator
	optimizer optimization.Optimizer
	log       zerolog.Logger

	state     State
	series    *domain.PriceSeries
	periods   []Period
	year      int
	portfolio domain.PortfolioState
	benchmark *BenchmarkTracker
	results   *domain.ResultSeries
	onYear    func(domain.YearSnapshot)
}

// NewSimulator validates cfg and wires the estimator and optimizer.
func NewSimulator(cfg Config, estimator Estimator, optimizer optimization.Optimizer, log zerolog.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if estimator == nil || optimizer == nil {
		return nil, fmt.Errorf("estimator and optimizer are required: %w", domain.ErrInvalidConfig)
	}
	return &Simulator{
		cfg:       cfg,
		estimator: estimator,
		optimizer: optimizer,
		log:       log.With().Str("component", "simulator").Str("optimizer", optimizer.Name()).Logger(),
		results:   &domain.ResultSeries{},
	}, nil
}

// NewSimulatorFromConfig builds the estimator and optimizer named by cfg.
func NewSimulatorFromConfig(cfg Config, log zerolog.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	estimator, err := optimization.NewReturnEstimator(cfg.EstimatorOptions(), log)
	if err != nil {
		return nil, err
	}
	optimizer, err := optimization.NewOptimizer(cfg.OptimizerSpec(), log)
	if err != nil {
		return nil, err
	}
	return NewSimulator(cfg, estimator, optimizer, log)
}

// OnYear registers a callback invoked after each year is appended.
func (s *Simulator) OnYear(fn func(domain.YearSnapshot)) {
	s.onYear = fn
}

// State returns the current lifecycle state.
func (s *Simulator) State() State {
	return s.state
}

// Periods returns the rebalance schedule. Empty before Seed.
func (s *Simulator) Periods() []Period {
	return append([]Period(nil), s.periods...)
}

// Seed loads the price history, lays out the schedule and sets initial capital.
// It fails with ErrDataUnavailable when the benchmark cannot be priced on every
// boundary or no universe asset has any price.
func (s *Simulator) Seed(series *domain.PriceSeries) error {
	if s.state != StateUninitialized {
		return fmt.Errorf("seed in state %s: %w", s.state, domain.ErrInvalidState)
	}
	if series == nil || series.Len() == 0 {
		return fmt.Errorf("empty price series: %w", domain.ErrDataUnavailable)
	}

	priced := 0
	for _, a := range series.Universe {
		if series.Has(a) {
			priced++
		}
	}
	if priced == 0 {
		return fmt.Errorf("no universe asset has prices: %w", domain.ErrDataUnavailable)
	}

	first := domain.Day(s.cfg.StartDate)
	if s.cfg.StartDate.IsZero() {
		first = series.Start().AddDate(s.cfg.Window, 0, 0)
	}
	periods := Schedule(first, s.cfg.Years)

	bench, err := NewBenchmarkTracker(series, s.cfg.InitialCapital, first)
	if err != nil {
		return err
	}
	dates := make([]time.Time, 0, len(periods)+1)
	for _, p := range periods {
		dates = append(dates, p.Start)
	}
	dates = append(dates, periods[len(periods)-1].End)
	if err := bench.Covers(dates...); err != nil {
		return err
	}

	s.series = series
	s.periods = periods
	s.benchmark = bench
	s.portfolio = domain.PortfolioState{AsOf: first, Capital: s.cfg.InitialCapital}
	s.state = StateSeeded

	s.log.Info().
		Time("first_rebalance", first).
		Time("last_holding_end", periods[len(periods)-1].End).
		Int("assets", priced).
		Str("benchmark", series.Benchmark).
		Msg("Simulation seeded")
	return nil
}

// Step runs the next year: contribution, rebalance, one-year hold.
func (s *Simulator) Step(ctx context.Context) (domain.YearSnapshot, error) {
	if s.state != StateSeeded && s.state != StateHolding {
		return domain.YearSnapshot{}, fmt.Errorf("step in state %s: %w", s.state, domain.ErrInvalidState)
	}
	if err := ctx.Err(); err != nil {
		return domain.YearSnapshot{}, err
	}

	period := s.periods[s.year]
	prev, benchPrev := s.state, s.benchmark.State()
	s.state = StateRebalancing

	contribution := 0.0
	if period.Year > 1 {
		contribution = s.cfg.ReinvestAmount
	}
	capital := s.portfolio.Capital + contribution

	var (
		plan       allocationPlan
		benchState domain.BenchmarkState
	)
	var g errgroup.Group
	g.Go(func() error {
		plan = s.rebalance(period.Start)
		return nil
	})
	g.Go(func() error {
		var err error
		benchState, err = s.benchmark.Advance(period.Start, period.End, contribution)
		return err
	})
	if err := g.Wait(); err != nil {
		s.state = prev
		return domain.YearSnapshot{}, fmt.Errorf("year %d: %w", period.Year, err)
	}

	ending, holdConditions := s.hold(plan.weights, capital, period)

	snapshot := domain.YearSnapshot{
		Year:            period.Year,
		RebalanceDate:   period.Start,
		HoldingEnd:      period.End,
		Contribution:    contribution,
		StartingCapital: capital,
		Portfolio: domain.PortfolioState{
			AsOf:    period.End,
			Capital: ending,
			Weights: plan.weights.Clone(),
		},
		Benchmark:  benchState,
		Degraded:   plan.degraded,
		Conditions: append(plan.conditions, holdConditions...),
	}
	if err := s.results.Append(snapshot); err != nil {
		s.state, s.benchmark.state = prev, benchPrev
		return domain.YearSnapshot{}, err
	}

	s.portfolio = snapshot.Portfolio
	s.year++
	s.state = StateHolding
	if s.year == len(s.periods) {
		s.state = StateCompleted
	}

	s.log.Info().
		Int("year", period.Year).
		Time("rebalance_date", period.Start).
		Float64("capital", ending).
		Float64("benchmark", benchState.Capital).
		Bool("degraded", plan.degraded).
		Int("conditions", len(snapshot.Conditions)).
		Msg("Year completed")

	if s.onYear != nil {
		s.onYear(snapshot.Clone())
	}
	return snapshot, nil
}

// Run steps until Completed and returns the results.
func (s *Simulator) Run(ctx context.Context) (*domain.ResultSeries, error) {
	if s.state == StateUninitialized {
		return nil, fmt.Errorf("run before seed: %w", domain.ErrInvalidState)
	}
	for s.state != StateCompleted {
		if _, err := s.Step(ctx); err != nil {
			return nil, err
		}
	}
	return s.Results()
}

// Results returns the result series once the simulation has completed.
func (s *Simulator) Results() (*domain.ResultSeries, error) {
	if s.state != StateCompleted {
		return nil, fmt.Errorf("results in state %s: %w", s.state, domain.ErrNotCompleted)
	}
	return s.results, nil
}

type allocationPlan struct {
	weights    domain.Weights
	degraded   bool
	conditions []domain.Condition
}

// rebalance estimates the window ending at asOf and optimizes. Any failure
// carries the previous weights forward and marks the year degraded.
func (s *Simulator) rebalance(asOf time.Time) allocationPlan {
	est, err := s.estimator.Estimate(s.series, s.cfg.Window, asOf)
	if err != nil {
		return s.carryForward(nil, err)
	}
	if est.Len() == 0 {
		var conditions []domain.Condition
		if est != nil {
			conditions = est.Conditions
		}
		return s.carryForward(conditions, fmt.Errorf("window ending %s: %w", asOf.Format("2006-01-02"), domain.ErrNoEligibleAssets))
	}

	weights, err := s.optimizer.Optimize(est, s.cfg.Constraints())
	if err != nil {
		return s.carryForward(est.Conditions, err)
	}
	return allocationPlan{weights: weights, conditions: est.Conditions}
}

func (s *Simulator) carryForward(conditions []domain.Condition, cause error) allocationPlan {
	plan := allocationPlan{
		weights:  s.portfolio.Weights.Clone(),
		degraded: true,
		conditions: append(conditions, domain.Condition{
			Code:    domain.ConditionCodeFor(cause),
			Message: cause.Error(),
		}),
	}
	if len(plan.weights) == 0 {
		plan.conditions = append(plan.conditions, domain.Condition{
			Code:    domain.ConditionCashHeld,
			Message: "no prior weights to carry forward, holding cash",
		})
	}

	event := s.log.Warn().Err(cause).Bool("carry_forward", len(plan.weights) > 0)
	if errors.Is(cause, domain.ErrInfeasibleConstraints) {
		event = event.Float64("min_weight", s.cfg.MinWeight)
	}
	event.Msg("Optimization failed, year degraded")
	return plan
}

// hold applies weights to capital for one period.
// capital' = Σ w_a·c·(p_end/p_start) + (1 - Σw)·c
func (s *Simulator) hold(weights domain.Weights, capital float64, period Period) (float64, []domain.Condition) {
	var conditions []domain.Condition

	growth := make(map[string]float64, len(weights))
	startPrices := make(map[string]float64, len(weights))
	endPrices := make(map[string]float64, len(weights))
	for _, a := range weights.Assets() {
		if weights[a] <= 0 {
			continue
		}
		start, ok := s.series.PriceNear(a, period.Start, domain.DefaultStaleness)
		if !ok {
			conditions = append(conditions, domain.Condition{
				Code:    domain.ConditionCashHeld,
				Asset:   a,
				Message: fmt.Sprintf("no price near %s, allocation held as cash", period.Start.Format("2006-01-02")),
			})
			continue
		}
		end, at, _ := s.series.PriceOnOrBefore(a, period.End)
		if period.End.Sub(at) > domain.DefaultStaleness {
			conditions = append(conditions, domain.Condition{
				Code:    domain.ConditionStalePrice,
				Asset:   a,
				Message: fmt.Sprintf("last price %s, valued at that price", at.Format("2006-01-02")),
			})
		}
		startPrices[a], endPrices[a] = start, end
		growth[a] = end / start
	}

	if s.cfg.WholeShares {
		alloc := AllocateShares(weights, capital, startPrices)
		value, _ := alloc.Value(endPrices).Float64()
		return value, conditions
	}

	ending := 0.0
	for _, a := range weights.Assets() {
		amount := weights[a] * capital
		if g, ok := growth[a]; ok {
			ending += amount * g
		} else if weights[a] > 0 {
			ending += amount
		}
	}
	if cash := 1 - weights.Sum(); cash > 0 {
		ending += cash * capital
	}
	return ending, conditions
}
