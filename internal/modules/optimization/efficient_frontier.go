package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/portfin/internal/domain"
)

// Objective selects what the efficient frontier optimizer minimizes.
type Objective string

const (
	// ObjectiveMaxSharpe maximizes excess return per unit of volatility.
	ObjectiveMaxSharpe Objective = "max_sharpe"
	// ObjectiveMinVolatility minimizes portfolio variance.
	ObjectiveMinVolatility Objective = "min_volatility"
)

// Valid reports whether the objective is known.
func (o Objective) Valid() bool {
	return o == ObjectiveMaxSharpe || o == ObjectiveMinVolatility
}

const (
	// DefaultGamma is the default L2 regularization strength.
	DefaultGamma = 0.1

	efMaxIterations = 5000
	efLineSearch    = 60
	efStepTolerance = 1e-10
	efMaxStep       = 1e6
)

// EfficientFrontier solves a mean-variance problem over the floored simplex
// with an L2 penalty γ‖w‖² on the weights.
//
//	max_sharpe:     maximize (μ·w - rf)/sqrt(wᵀΣw + γ‖w‖²)
//	min_volatility: minimize wᵀΣw + γ‖w‖²
//
// For max_sharpe the penalty sits inside the risk term, the homogeneous form
// of the regularized tangency problem. An asset with no excess return then
// never raises the ratio, even when its variance is at the floor.
//
// The solver is projected gradient descent with backtracking, started from
// equal weights, so results are deterministic.
type EfficientFrontier struct {
	objective    Objective
	gamma        float64
	riskFreeRate float64
	log          zerolog.Logger
}

// NewEfficientFrontier creates an efficient frontier optimizer. The objective is required.
func NewEfficientFrontier(objective Objective, gamma, riskFreeRate float64, log zerolog.Logger) (*EfficientFrontier, error) {
	if objective == "" {
		return nil, fmt.Errorf("efficient optimizer: %w", domain.ErrMissingObjective)
	}
	if !objective.Valid() {
		return nil, fmt.Errorf("unknown objective %q: %w", objective, domain.ErrInvalidConfig)
	}
	if gamma < 0 || math.IsNaN(gamma) {
		return nil, fmt.Errorf("gamma must be non-negative, got %v: %w", gamma, domain.ErrInvalidConfig)
	}
	return &EfficientFrontier{
		objective:    objective,
		gamma:        gamma,
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "efficient_frontier").Logger(),
	}, nil
}

// Name implements Optimizer.
func (ef *EfficientFrontier) Name() string {
	return string(KindEfficient)
}

// Objective returns the configured objective.
func (ef *EfficientFrontier) Objective() Objective {
	return ef.objective
}

// Optimize implements Optimizer. It fails with ErrInfeasibleConstraints when
// the floor times the number of assets exceeds one.
func (ef *EfficientFrontier) Optimize(est *Estimate, c Constraints) (domain.Weights, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cov, err := validateEstimate(est, ef.objective == ObjectiveMaxSharpe)
	if err != nil {
		return nil, err
	}
	n := len(est.Assets)
	if err := c.Feasible(n); err != nil {
		return nil, err
	}

	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			// symmetrize against estimator noise
			sigma.SetSym(i, j, (cov[i][j]+cov[j][i])/2)
		}
	}
	var mu *mat.VecDense
	if ef.objective == ObjectiveMaxSharpe {
		mu = mat.NewVecDense(n, append([]float64(nil), est.ExpectedReturns...))
	}

	x0 := make([]float64, n)
	for i := range x0 {
		x0[i] = 1 / float64(n)
	}

	x, iterations := ef.solve(func(x []float64) (float64, []float64) {
		return ef.evaluate(sigma, mu, x)
	}, x0, c.MinWeight)

	if c.MinWeight == 0 {
		x = cleanWeights(x)
	}

	ef.log.Debug().
		Str("objective", string(ef.objective)).
		Int("assets", n).
		Int("iterations", iterations).
		Msg("Efficient frontier solved")

	w := toWeights(est.Assets, x)
	if err := w.Validate(c.MinWeight); err != nil {
		return nil, fmt.Errorf("efficient frontier produced invalid weights: %w", err)
	}
	return w, nil
}

// evaluate returns the objective value and gradient at x.
func (ef *EfficientFrontier) evaluate(sigma *mat.SymDense, mu *mat.VecDense, x []float64) (float64, []float64) {
	n := len(x)
	w := mat.NewVecDense(n, x)

	var sw mat.VecDense
	sw.MulVec(sigma, w)
	variance := math.Max(mat.Dot(w, &sw), VarianceFloor*1e-8)
	l2 := floats.Dot(x, x)

	grad := make([]float64, n)
	var value float64
	switch ef.objective {
	case ObjectiveMaxSharpe:
		excess := mat.Dot(mu, w) - ef.riskFreeRate
		risk := variance + ef.gamma*l2
		vol := math.Sqrt(risk)
		value = -excess / vol
		for i := 0; i < n; i++ {
			halfRisk := sw.AtVec(i) + ef.gamma*x[i]
			grad[i] = -(mu.AtVec(i)/vol - excess*halfRisk/(risk*vol))
		}
	default:
		value = variance + ef.gamma*l2
		for i := 0; i < n; i++ {
			grad[i] = 2*sw.AtVec(i) + 2*ef.gamma*x[i]
		}
	}
	return value, grad
}

// solve runs projected gradient descent from a feasible x0.
func (ef *EfficientFrontier) solve(eval func([]float64) (float64, []float64), x0 []float64, floor float64) ([]float64, int) {
	n := len(x0)
	x := append([]float64(nil), x0...)
	fx, g := eval(x)
	step := 1.0

	trial := make([]float64, n)
	d := make([]float64, n)

	for iter := 1; iter <= efMaxIterations; iter++ {
		var (
			cand     []float64
			fc       float64
			gc       []float64
			accepted bool
		)
		for ls := 0; ls < efLineSearch; ls++ {
			floats.AddScaledTo(trial, x, -step, g)
			cand = projectOntoFlooredSimplex(trial, floor)
			floats.SubTo(d, cand, x)
			if floats.Norm(d, math.Inf(1)) < efStepTolerance {
				return x, iter
			}
			fc, gc = eval(cand)
			if fc <= fx+floats.Dot(g, d)+floats.Dot(d, d)/(2*step) {
				accepted = true
				break
			}
			step /= 2
		}
		if !accepted {
			return x, iter
		}

		x, fx, g = cand, fc, gc
		step = math.Min(step*2, efMaxStep)
	}

	ef.log.Warn().Int("iterations", efMaxIterations).Msg("Efficient frontier reached iteration limit")
	return x, efMaxIterations
}
