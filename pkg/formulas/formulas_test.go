package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateReturns(t *testing.T) {
	assert.Empty(t, CalculateReturns([]float64{100}))

	returns := CalculateReturns([]float64{100, 110, 99})
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-12)
	assert.InDelta(t, -0.10, returns[1], 1e-12)
}

func TestCovariance(t *testing.T) {
	assert.Equal(t, 0.0, Covariance([]float64{1}, []float64{2}))
	assert.Equal(t, 0.0, Covariance([]float64{1, 2}, []float64{2}))
	assert.InDelta(t, 1.0, Covariance([]float64{1, 2, 3}, []float64{2, 3, 4}), 1e-12)
}

func TestCorrelationMatrixFromCovariance(t *testing.T) {
	cov := [][]float64{
		{0.04, 0.01},
		{0.01, 0.09},
	}

	corr, err := CorrelationMatrixFromCovariance(cov)
	require.NoError(t, err)
	assert.Equal(t, 1.0, corr[0][0])
	assert.InDelta(t, 0.01/(0.2*0.3), corr[0][1], 1e-12)
	assert.Equal(t, corr[0][1], corr[1][0])

	_, err = CorrelationMatrixFromCovariance([][]float64{{0, 0}, {0, 1}})
	assert.Error(t, err)

	_, err = CorrelationMatrixFromCovariance(nil)
	assert.Error(t, err)
}

func TestCorrelationToDistance(t *testing.T) {
	dist := CorrelationToDistance([][]float64{
		{1, -1},
		{-1, 1},
	})

	assert.Equal(t, 0.0, dist[0][0])
	assert.InDelta(t, 2.0, dist[0][1], 1e-12)
}

func TestInverseVarianceWeights(t *testing.T) {
	w := InverseVarianceWeights([]float64{0.01, 0.04})
	assert.InDelta(t, 0.8, w[0], 1e-12)
	assert.InDelta(t, 0.2, w[1], 1e-12)

	equal := InverseVarianceWeights([]float64{0, 0})
	assert.Equal(t, []float64{0.5, 0.5}, equal)
}

func TestCalculateEMA(t *testing.T) {
	assert.Nil(t, CalculateEMA(nil, 10))

	short := CalculateEMA([]float64{1, 2, 3}, 10)
	require.NotNil(t, short)
	assert.InDelta(t, 2.0, *short, 1e-12)

	flat := make([]float64, 50)
	for i := range flat {
		flat[i] = 0.01
	}
	ema := CalculateEMA(flat, 20)
	require.NotNil(t, ema)
	assert.InDelta(t, 0.01, *ema, 1e-12)
}

func TestCalculateCAGR(t *testing.T) {
	cagr := CalculateCAGR(100, 400, 2)
	require.NotNil(t, cagr)
	assert.InDelta(t, 1.0, *cagr, 1e-12)

	simple := CalculateCAGR(100, 110, 0.1)
	require.NotNil(t, simple)
	assert.InDelta(t, 0.10, *simple, 1e-12)

	assert.Nil(t, CalculateCAGR(0, 100, 1))
	assert.Nil(t, CalculateCAGR(100, 100, 0))
}

func TestAnnualizeReturn(t *testing.T) {
	assert.InDelta(t, math.Pow(1.001, 252)-1, AnnualizeReturn(0.001, 252), 1e-12)
}

func TestCumulativeReturns(t *testing.T) {
	assert.Equal(t, []float64{1, 2, 1}, CumulativeReturns([]float64{1, -0.5}))
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"empty", nil, 0},
		{"monotonic", []float64{1, 2, 3}, 0},
		{"single dip", []float64{100, 50, 120}, 0.5},
		{"deeper later", []float64{100, 90, 200, 100}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, MaxDrawdown(tt.values), 1e-12)
		})
	}
}
