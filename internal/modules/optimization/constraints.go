package optimization

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/portfin/internal/domain"
)

const (
	// DefaultMinWeight is the default per-asset floor for non-zero allocations.
	DefaultMinWeight = 0.05

	// weights under this are dropped when no floor applies
	cleanCutoff = 1e-4

	feasibilitySlack = 1e-9
)

// Constraints bound the weight vector. Full investment and no shorting are implicit.
type Constraints struct {
	MinWeight float64 `json:"min_weight"`
}

// Validate checks that the floor is in [0, 1).
func (c Constraints) Validate() error {
	if math.IsNaN(c.MinWeight) || c.MinWeight < 0 || c.MinWeight >= 1 {
		return fmt.Errorf("min weight must be in [0, 1), got %v: %w", c.MinWeight, domain.ErrInvalidConfig)
	}
	return nil
}

// Feasible reports whether n assets can each hold at least the floor and still sum to one.
func (c Constraints) Feasible(n int) error {
	if float64(n)*c.MinWeight > 1+feasibilitySlack {
		return fmt.Errorf("%d assets with floor %.4f exceed full investment: %w", n, c.MinWeight, domain.ErrInfeasibleConstraints)
	}
	return nil
}

// validateEstimate checks dimensions and returns a covariance copy with the variance floor applied.
func validateEstimate(est *Estimate, needReturns bool) ([][]float64, error) {
	if est.Len() == 0 {
		return nil, domain.ErrNoEligibleAssets
	}
	n := len(est.Assets)
	if needReturns && len(est.ExpectedReturns) != n {
		return nil, fmt.Errorf("expected returns length %d does not match %d assets", len(est.ExpectedReturns), n)
	}
	if len(est.Covariance) != n {
		return nil, fmt.Errorf("covariance matrix size %d does not match %d assets", len(est.Covariance), n)
	}
	cov := make([][]float64, n)
	for i, row := range est.Covariance {
		if len(row) != n {
			return nil, fmt.Errorf("covariance matrix is not square")
		}
		cov[i] = append([]float64(nil), row...)
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("covariance[%d][%d] is not finite", i, j)
			}
		}
	}
	floorVariances(cov)
	return cov, nil
}

// projectOntoFlooredSimplex returns the Euclidean projection of y onto
// {w : Σw = 1, w_i ≥ floor}. Requires len(y)·floor ≤ 1.
func projectOntoFlooredSimplex(y []float64, floor float64) []float64 {
	n := len(y)
	out := make([]float64, n)
	budget := 1 - float64(n)*floor
	if budget <= 0 {
		for i := range out {
			out[i] = floor
		}
		return out
	}

	shifted := make([]float64, n)
	for i, v := range y {
		shifted[i] = v - floor
	}
	sorted := append([]float64(nil), shifted...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	var cum, theta float64
	for k, v := range sorted {
		cum += v
		t := (cum - budget) / float64(k+1)
		if v-t > 0 {
			theta = t
		}
	}
	for i, v := range shifted {
		out[i] = math.Max(v-theta, 0) + floor
	}
	return out
}

// toWeights maps a solution vector back to asset identifiers, dropping zeros.
func toWeights(assets []string, x []float64) domain.Weights {
	w := make(domain.Weights, len(assets))
	for i, a := range assets {
		if x[i] > 0 {
			w[a] = x[i]
		}
	}
	return w
}

// cleanWeights zeroes negligible weights and renormalizes. Only used without a floor.
func cleanWeights(x []float64) []float64 {
	out := make([]float64, len(x))
	var sum float64
	for i, v := range x {
		if v >= cleanCutoff {
			out[i] = v
			sum += v
		}
	}
	if sum <= 0 {
		return append(out[:0], x...)
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
