package optimization

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfin/internal/domain"
)

func TestNewOptimizer(t *testing.T) {
	tests := []struct {
		name     string
		spec     OptimizerSpec
		wantName string
		wantErr  error
	}{
		{"default is hierarchical", OptimizerSpec{Gamma: DefaultGamma}, "hierarchical", nil},
		{"hierarchical with linkage", OptimizerSpec{Kind: KindHierarchical, Linkage: LinkageAverage, Gamma: DefaultGamma}, "hierarchical", nil},
		{"hierarchical rejects objective", OptimizerSpec{Kind: KindHierarchical, Objective: ObjectiveMaxSharpe}, "", domain.ErrUnsupportedOption},
		{"hierarchical rejects unknown linkage", OptimizerSpec{Kind: KindHierarchical, Linkage: "ward"}, "", domain.ErrInvalidConfig},
		{"efficient requires objective", OptimizerSpec{Kind: KindEfficient, Gamma: DefaultGamma}, "", domain.ErrMissingObjective},
		{"efficient rejects linkage", OptimizerSpec{Kind: KindEfficient, Objective: ObjectiveMaxSharpe, Linkage: LinkageSingle}, "", domain.ErrUnsupportedOption},
		{"efficient max sharpe", OptimizerSpec{Kind: KindEfficient, Objective: ObjectiveMaxSharpe, Gamma: DefaultGamma}, "efficient", nil},
		{"efficient min volatility", OptimizerSpec{Kind: KindEfficient, Objective: ObjectiveMinVolatility}, "efficient", nil},
		{"equal", OptimizerSpec{Kind: KindEqual, Gamma: DefaultGamma}, "equal", nil},
		{"equal rejects objective", OptimizerSpec{Kind: KindEqual, Objective: ObjectiveMinVolatility}, "", domain.ErrUnsupportedOption},
		{"unknown kind", OptimizerSpec{Kind: "black_litterman"}, "", domain.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt, err := NewOptimizer(tt.spec, zerolog.Nop())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, opt.Name())
		})
	}
}

func TestNewOptimizer_WarnsOnIgnoredGamma(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	_, err := NewOptimizer(OptimizerSpec{Kind: KindHierarchical, Gamma: 0.5}, log)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "ignored")
}

func TestProjectOntoFlooredSimplex(t *testing.T) {
	tests := []struct {
		name  string
		y     []float64
		floor float64
		want  []float64
	}{
		{"already feasible", []float64{0.3, 0.7}, 0, []float64{0.3, 0.7}},
		{"clips negative", []float64{1.5, -0.5}, 0, []float64{1, 0}},
		{"uniform shift", []float64{1, 1}, 0, []float64{0.5, 0.5}},
		{"floor binds", []float64{1, 0, 0}, 0.1, []float64{0.8, 0.1, 0.1}},
		{"floor saturates", []float64{5, -3}, 0.5, []float64{0.5, 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := projectOntoFlooredSimplex(tt.y, tt.floor)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1e-12)
			}
		})
	}
}

func TestConstraints(t *testing.T) {
	assert.NoError(t, Constraints{MinWeight: 0}.Validate())
	assert.ErrorIs(t, Constraints{MinWeight: 1}.Validate(), domain.ErrInvalidConfig)
	assert.ErrorIs(t, Constraints{MinWeight: -0.1}.Validate(), domain.ErrInvalidConfig)

	assert.NoError(t, Constraints{MinWeight: 0.05}.Feasible(20))
	assert.ErrorIs(t, Constraints{MinWeight: 0.05}.Feasible(21), domain.ErrInfeasibleConstraints)
}

func TestCleanWeights(t *testing.T) {
	got := cleanWeights([]float64{0.99995, 0.00005})
	assert.Equal(t, []float64{1, 0}, got)
}
