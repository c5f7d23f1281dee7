package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/portfin/pkg/formulas"
)

// VarianceFloor is the minimum annualized variance assigned to any asset.
// Zero-variance assets (flat prices) would otherwise divide by zero in
// risk-parity weighting and the Sharpe ratio.
const VarianceFloor = 1e-8

// RiskModel selects the covariance estimator.
type RiskModel string

const (
	RiskModelSample         RiskModel = "sample"
	RiskModelSemicovariance RiskModel = "semicovariance"
	RiskModelLedoitWolf     RiskModel = "ledoit_wolf"
)

// Valid reports whether the model is known.
func (m RiskModel) Valid() bool {
	switch m {
	case RiskModelSample, RiskModelSemicovariance, RiskModelLedoitWolf:
		return true
	}
	return false
}

// covarianceMatrix builds the annualized covariance of aligned return columns.
// Fewer than two return observations yield a zero matrix.
func covarianceMatrix(model RiskModel, returns [][]float64, periodsPerYear float64) ([][]float64, error) {
	n := len(returns)
	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	if n == 0 || len(returns[0]) < 2 {
		return cov, nil
	}

	switch model {
	case RiskModelSample, "":
		sampleCovariance(returns, cov)
	case RiskModelSemicovariance:
		semicovariance(returns, cov)
	case RiskModelLedoitWolf:
		ledoitWolf(returns, cov)
	default:
		return nil, fmt.Errorf("unknown risk model %q", model)
	}

	for i := range cov {
		for j := range cov[i] {
			cov[i][j] *= periodsPerYear
		}
	}
	return cov, nil
}

func sampleCovariance(returns [][]float64, cov [][]float64) {
	for i := range returns {
		for j := i; j < len(returns); j++ {
			v := formulas.Covariance(returns[i], returns[j])
			cov[i][j] = v
			cov[j][i] = v
		}
	}
}

// semicovariance uses only returns below a zero benchmark.
func semicovariance(returns [][]float64, cov [][]float64) {
	t := len(returns[0])
	downside := make([][]float64, len(returns))
	for i, col := range returns {
		downside[i] = make([]float64, t)
		for k, r := range col {
			downside[i][k] = math.Min(r, 0)
		}
	}
	for i := range downside {
		for j := i; j < len(downside); j++ {
			var sum float64
			for k := 0; k < t; k++ {
				sum += downside[i][k] * downside[j][k]
			}
			cov[i][j] = sum / float64(t)
			cov[j][i] = cov[i][j]
		}
	}
}

// ledoitWolf shrinks the sample covariance toward a scaled identity with the
// Ledoit-Wolf optimal intensity.
func ledoitWolf(returns [][]float64, cov [][]float64) {
	n := len(returns)
	t := len(returns[0])

	x := mat.NewDense(t, n, nil)
	for j, col := range returns {
		mean := formulas.Mean(col)
		for k, r := range col {
			x.Set(k, j, r-mean)
		}
	}

	var s mat.Dense
	s.Mul(x.T(), x)
	s.Scale(1/float64(t), &s)

	mu := mat.Trace(&s) / float64(n)

	var delta float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := s.At(i, j)
			if i == j {
				d -= mu
			}
			delta += d * d
		}
	}
	delta /= float64(n)

	x2 := mat.DenseCopyOf(x)
	x2.Apply(func(_, _ int, v float64) float64 { return v * v }, x2)
	var x2x2 mat.Dense
	x2x2.Mul(x2.T(), x2)

	var beta float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sv := s.At(i, j)
			beta += x2x2.At(i, j)/float64(t) - sv*sv
		}
	}
	beta /= float64(n) * float64(t)
	beta = math.Min(beta, delta)

	shrinkage := 0.0
	if delta > 0 {
		shrinkage = beta / delta
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := (1 - shrinkage) * s.At(i, j)
			if i == j {
				v += shrinkage * mu
			}
			cov[i][j] = v
		}
	}
}

// floorVariances raises every diagonal entry to at least VarianceFloor in place.
func floorVariances(cov [][]float64) {
	for i := range cov {
		if cov[i][i] < VarianceFloor || math.IsNaN(cov[i][i]) {
			cov[i][i] = VarianceFloor
		}
	}
}
