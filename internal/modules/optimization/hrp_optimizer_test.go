package optimization

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfin/internal/domain"
)

func TestHRP_SingleAsset(t *testing.T) {
	hrp := NewHierarchicalRiskParity("", zerolog.Nop())

	w, err := hrp.Optimize(diagEstimate([]string{"A"}, nil, []float64{0.04}), Constraints{MinWeight: 0.05})
	require.NoError(t, err)
	assert.Equal(t, domain.Weights{"A": 1}, w)
}

func TestHRP_EmptyEstimate(t *testing.T) {
	hrp := NewHierarchicalRiskParity("", zerolog.Nop())

	_, err := hrp.Optimize(&Estimate{}, Constraints{})
	assert.ErrorIs(t, err, domain.ErrNoEligibleAssets)
}

func TestHRP_UncorrelatedIsInverseVariance(t *testing.T) {
	hrp := NewHierarchicalRiskParity(LinkageSingle, zerolog.Nop())

	w, err := hrp.Optimize(diagEstimate([]string{"A", "B"}, nil, []float64{0.04, 0.01}), Constraints{})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, w["A"], 1e-12)
	assert.InDelta(t, 0.8, w["B"], 1e-12)
}

func TestHRP_ZeroVarianceUsesFloor(t *testing.T) {
	hrp := NewHierarchicalRiskParity("", zerolog.Nop())

	w, err := hrp.Optimize(diagEstimate([]string{"A", "B"}, nil, []float64{0, 0}), Constraints{})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, w["A"], 1e-12)
	assert.InDelta(t, 0.5, w["B"], 1e-12)
}

func TestHRP_WeightInvariantsAcrossLinkages(t *testing.T) {
	est := &Estimate{
		Assets: []string{"A", "B", "C", "D"},
		Covariance: [][]float64{
			{0.040, 0.018, 0.004, 0.002},
			{0.018, 0.030, 0.003, 0.001},
			{0.004, 0.003, 0.020, 0.009},
			{0.002, 0.001, 0.009, 0.015},
		},
	}

	for _, linkage := range []Linkage{LinkageSingle, LinkageComplete, LinkageAverage} {
		t.Run(string(linkage), func(t *testing.T) {
			w, err := NewHierarchicalRiskParity(linkage, zerolog.Nop()).Optimize(est, Constraints{MinWeight: 0.05})
			require.NoError(t, err)
			assertWeightInvariants(t, w, 0.05)
			assert.Len(t, w, 4)
			// lowest-variance asset gets the largest share
			assert.Greater(t, w["D"], w["A"])
		})
	}
}

func TestHRP_FloorDropsSmallestAsset(t *testing.T) {
	est := diagEstimate([]string{"A", "B", "C"}, nil, []float64{1.0, 0.01, 0.01})

	w, err := NewHierarchicalRiskParity("", zerolog.Nop()).Optimize(est, Constraints{MinWeight: 0.05})
	require.NoError(t, err)

	assertWeightInvariants(t, w, 0.05)
	_, hasA := w["A"]
	assert.False(t, hasA)
	assert.InDelta(t, 0.5, w["B"], 1e-12)
	assert.InDelta(t, 0.5, w["C"], 1e-12)
}

func TestHRP_IndependentOfInputOrder(t *testing.T) {
	hrp := NewHierarchicalRiskParity("", zerolog.Nop())
	ordered := &Estimate{
		Assets: []string{"A", "B", "C"},
		Covariance: [][]float64{
			{0.04, 0.01, 0.00},
			{0.01, 0.03, 0.01},
			{0.00, 0.01, 0.02},
		},
	}
	shuffled := &Estimate{
		Assets: []string{"C", "A", "B"},
		Covariance: [][]float64{
			{0.02, 0.00, 0.01},
			{0.00, 0.04, 0.01},
			{0.01, 0.01, 0.03},
		},
	}

	w1, err := hrp.Optimize(ordered, Constraints{})
	require.NoError(t, err)
	w2, err := hrp.Optimize(shuffled, Constraints{})
	require.NoError(t, err)

	for _, a := range ordered.Assets {
		assert.Equal(t, w1[a], w2[a], a)
	}
}

func TestHRP_IgnoresExpectedReturns(t *testing.T) {
	hrp := NewHierarchicalRiskParity("", zerolog.Nop())

	low, err := hrp.Optimize(diagEstimate([]string{"A", "B"}, []float64{0.01, 0.5}, []float64{0.04, 0.01}), Constraints{})
	require.NoError(t, err)
	high, err := hrp.Optimize(diagEstimate([]string{"A", "B"}, []float64{0.5, 0.01}, []float64{0.04, 0.01}), Constraints{})
	require.NoError(t, err)

	assert.Equal(t, low, high)
}

func TestHRP_RejectsBadCovariance(t *testing.T) {
	hrp := NewHierarchicalRiskParity("", zerolog.Nop())

	_, err := hrp.Optimize(&Estimate{Assets: []string{"A", "B"}, Covariance: [][]float64{{0.01}}}, Constraints{})
	assert.Error(t, err)

	_, err = hrp.Optimize(diagEstimate([]string{"A"}, nil, []float64{0.01}), Constraints{MinWeight: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
