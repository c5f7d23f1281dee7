// Package backtest runs the year-by-year rebalancing simulation and its benchmark.
package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/portfin/internal/domain"
	"github.com/aristath/portfin/internal/modules/optimization"
)

// Defaults applied by DefaultConfig.
const (
	DefaultYears          = 20
	DefaultWindow         = 5
	DefaultInitialCapital = 1000.0
)

// Config controls one simulation.
type Config struct {
	Years          int                      `json:"years" yaml:"years"`
	Window         int                      `json:"window" yaml:"window"`
	Optimizer      optimization.Kind        `json:"optimizer" yaml:"optimizer"`
	Objective      optimization.Objective   `json:"objective,omitempty" yaml:"objective"`
	Gamma          float64                  `json:"gamma" yaml:"gamma"`
	RiskFreeRate   float64                  `json:"risk_free_rate" yaml:"risk_free_rate"`
	Linkage        optimization.Linkage     `json:"linkage,omitempty" yaml:"linkage"`
	InitialCapital float64                  `json:"initial_capital" yaml:"initial_capital"`
	ReinvestAmount float64                  `json:"reinvest_amount" yaml:"reinvest_amount"`
	MinWeight      float64                  `json:"min_weight" yaml:"min_weight"`
	ReturnModel    optimization.ReturnModel `json:"return_model" yaml:"return_model"`
	RiskModel      optimization.RiskModel   `json:"risk_model" yaml:"risk_model"`
	// StartDate is the first rebalance date. Zero means window years after the first price.
	StartDate time.Time `json:"start_date,omitempty" yaml:"start_date"`
	// WholeShares buys whole shares at each rebalance and holds the remainder as cash.
	WholeShares bool `json:"whole_shares" yaml:"whole_shares"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Years:          DefaultYears,
		Window:         DefaultWindow,
		Optimizer:      optimization.KindHierarchical,
		Gamma:          optimization.DefaultGamma,
		InitialCapital: DefaultInitialCapital,
		MinWeight:      optimization.DefaultMinWeight,
		ReturnModel:    optimization.ReturnModelMeanHistorical,
		RiskModel:      optimization.RiskModelSample,
	}
}

// Validate checks every range. Optimizer/objective compatibility is checked by optimization.NewOptimizer.
func (c Config) Validate() error {
	switch {
	case c.Years < 1:
		return fmt.Errorf("years must be at least 1, got %d: %w", c.Years, domain.ErrInvalidConfig)
	case c.Window < 1:
		return fmt.Errorf("window must be at least 1, got %d: %w", c.Window, domain.ErrInvalidConfig)
	case !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0):
		return fmt.Errorf("initial capital must be positive, got %v: %w", c.InitialCapital, domain.ErrInvalidConfig)
	case c.ReinvestAmount < 0 || math.IsNaN(c.ReinvestAmount):
		return fmt.Errorf("reinvest amount must be non-negative, got %v: %w", c.ReinvestAmount, domain.ErrInvalidConfig)
	case c.Gamma < 0 || math.IsNaN(c.Gamma):
		return fmt.Errorf("gamma must be non-negative, got %v: %w", c.Gamma, domain.ErrInvalidConfig)
	}
	if err := (optimization.Constraints{MinWeight: c.MinWeight}).Validate(); err != nil {
		return err
	}
	if c.ReturnModel != "" && !c.ReturnModel.Valid() {
		return fmt.Errorf("unknown return model %q: %w", c.ReturnModel, domain.ErrInvalidConfig)
	}
	if c.RiskModel != "" && !c.RiskModel.Valid() {
		return fmt.Errorf("unknown risk model %q: %w", c.RiskModel, domain.ErrInvalidConfig)
	}
	return nil
}

// OptimizerSpec extracts the optimizer selection.
func (c Config) OptimizerSpec() optimization.OptimizerSpec {
	return optimization.OptimizerSpec{
		Kind:         c.Optimizer,
		Objective:    c.Objective,
		Gamma:        c.Gamma,
		RiskFreeRate: c.RiskFreeRate,
		Linkage:      c.Linkage,
	}
}

// EstimatorOptions extracts the estimator models.
func (c Config) EstimatorOptions() optimization.EstimatorOptions {
	return optimization.EstimatorOptions{
		ReturnModel: c.ReturnModel,
		RiskModel:   c.RiskModel,
	}
}

// Constraints extracts the weight constraints.
func (c Config) Constraints() optimization.Constraints {
	return optimization.Constraints{MinWeight: c.MinWeight}
}
