// Package optimization estimates returns and risk over a trailing window and
// turns those estimates into target portfolio weights.
package optimization

import (
	"time"

	"github.com/aristath/portfin/internal/domain"
)

// Optimizer produces target weights from return and risk estimates.
type Optimizer interface {
	// Name identifies the optimizer in logs and stored results.
	Name() string
	// Optimize returns weights over est.Assets. Assets absent from the result carry zero weight.
	Optimize(est *Estimate, c Constraints) (domain.Weights, error)
}

// Estimate is the return/risk view of one trailing window.
// Assets are sorted; ExpectedReturns and Covariance follow that order.
type Estimate struct {
	Assets          []string           `json:"assets"`
	ExpectedReturns []float64          `json:"expected_returns"`
	Covariance      [][]float64        `json:"covariance"`
	WindowStart     time.Time          `json:"window_start"`
	WindowEnd       time.Time          `json:"window_end"`
	Observations    int                `json:"observations"`
	PeriodsPerYear  float64            `json:"periods_per_year"`
	Conditions      []domain.Condition `json:"conditions,omitempty"`
}

// Len returns the number of eligible assets.
func (e *Estimate) Len() int {
	if e == nil {
		return 0
	}
	return len(e.Assets)
}
