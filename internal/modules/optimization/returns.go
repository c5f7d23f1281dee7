package optimization

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfin/internal/domain"
	"github.com/aristath/portfin/pkg/formulas"
)

// ReturnModel selects how expected annual returns are derived from a window.
type ReturnModel string

const (
	// ReturnModelMeanHistorical compounds the window's start-to-end growth to an annual rate.
	ReturnModelMeanHistorical ReturnModel = "mean_historical"
	// ReturnModelEMA compounds an exponential moving average of periodic returns.
	ReturnModelEMA ReturnModel = "ema"
)

// DefaultEMASpan weights recent returns over roughly two trading years.
const DefaultEMASpan = 500

// Valid reports whether the model is known.
func (m ReturnModel) Valid() bool {
	return m == ReturnModelMeanHistorical || m == ReturnModelEMA
}

// EstimatorOptions configures a ReturnEstimator.
type EstimatorOptions struct {
	ReturnModel ReturnModel
	RiskModel   RiskModel
	EMASpan     int
}

// ReturnEstimator converts trailing price windows into return and covariance estimates.
// It holds no per-call state; concurrent use is safe.
type ReturnEstimator struct {
	opts EstimatorOptions
	log  zerolog.Logger
}

// NewReturnEstimator validates the options and fills defaults.
func NewReturnEstimator(opts EstimatorOptions, log zerolog.Logger) (*ReturnEstimator, error) {
	if opts.ReturnModel == "" {
		opts.ReturnModel = ReturnModelMeanHistorical
	}
	if opts.RiskModel == "" {
		opts.RiskModel = RiskModelSample
	}
	if opts.EMASpan <= 0 {
		opts.EMASpan = DefaultEMASpan
	}
	if !opts.ReturnModel.Valid() {
		return nil, fmt.Errorf("unknown return model %q: %w", opts.ReturnModel, domain.ErrInvalidConfig)
	}
	if !opts.RiskModel.Valid() {
		return nil, fmt.Errorf("unknown risk model %q: %w", opts.RiskModel, domain.ErrInvalidConfig)
	}
	return &ReturnEstimator{
		opts: opts,
		log:  log.With().Str("component", "return_estimator").Logger(),
	}, nil
}

// Estimate computes expected returns and covariance over the windowYears
// trailing asOf. Assets without a valid price on every window date are
// excluded and reported as conditions; a short history is reported but not fatal.
func (e *ReturnEstimator) Estimate(series *domain.PriceSeries, windowYears int, asOf time.Time) (*Estimate, error) {
	if windowYears < 1 {
		return nil, fmt.Errorf("window must be at least one year, got %d: %w", windowYears, domain.ErrInvalidConfig)
	}
	if series == nil || series.Len() == 0 {
		return nil, fmt.Errorf("empty price series: %w", domain.ErrDataUnavailable)
	}

	asOf = domain.Day(asOf)
	start := asOf.AddDate(-windowYears, 0, 0)
	est := &Estimate{WindowStart: start, WindowEnd: asOf}

	if series.Start().Sub(start) > domain.DefaultStaleness {
		est.Conditions = append(est.Conditions, domain.Condition{
			Code: domain.ConditionInsufficientWindow,
			Message: fmt.Sprintf("history starts %s, %d-year window requested from %s",
				series.Start().Format("2006-01-02"), windowYears, start.Format("2006-01-02")),
		})
	}

	from, to := series.IndexRange(start, asOf)
	active := tradingIndices(series, from, to)
	est.Observations = len(active)
	if len(active) < 2 {
		est.Conditions = append(est.Conditions, domain.Condition{
			Code:    domain.ConditionInsufficientWindow,
			Message: fmt.Sprintf("%d observations in window ending %s", len(active), asOf.Format("2006-01-02")),
		})
		return est, nil
	}

	first, last := series.Dates[active[0]], series.Dates[active[len(active)-1]]
	est.WindowStart = first
	est.WindowEnd = last
	years := formulas.YearsBetween(last.Sub(first).Hours() / 24)
	est.PeriodsPerYear = float64(len(active)-1) / years

	var windows [][]float64
	for _, asset := range series.Universe {
		row := series.Prices[asset]
		if len(row) != series.Len() {
			est.Conditions = append(est.Conditions, domain.Condition{
				Code:    domain.ConditionAssetExcluded,
				Asset:   asset,
				Message: "no price history",
			})
			continue
		}
		prices := make([]float64, len(active))
		for i, idx := range active {
			prices[i] = row[idx]
		}
		if missing := countMissing(prices); missing > 0 {
			est.Conditions = append(est.Conditions, domain.Condition{
				Code:    domain.ConditionAssetExcluded,
				Asset:   asset,
				Message: fmt.Sprintf("%d of %d window prices missing", missing, len(prices)),
			})
			continue
		}
		est.Assets = append(est.Assets, asset)
		windows = append(windows, prices)
	}

	if len(est.Assets) == 0 {
		e.log.Debug().Time("as_of", asOf).Msg("No asset has full coverage of the window")
		return est, nil
	}

	returns := make([][]float64, len(windows))
	est.ExpectedReturns = make([]float64, len(windows))
	for i, prices := range windows {
		returns[i] = formulas.CalculateReturns(prices)
		est.ExpectedReturns[i] = e.expectedReturn(prices, returns[i], years, est.PeriodsPerYear)
	}

	cov, err := covarianceMatrix(e.opts.RiskModel, returns, est.PeriodsPerYear)
	if err != nil {
		return nil, err
	}
	floorVariances(cov)
	est.Covariance = cov

	e.log.Debug().
		Time("as_of", asOf).
		Int("assets", len(est.Assets)).
		Int("observations", est.Observations).
		Int("conditions", len(est.Conditions)).
		Msg("Window estimated")

	return est, nil
}

func (e *ReturnEstimator) expectedReturn(prices, returns []float64, years, periodsPerYear float64) float64 {
	if e.opts.ReturnModel == ReturnModelEMA {
		if ema := formulas.CalculateEMA(returns, e.opts.EMASpan); ema != nil {
			return formulas.AnnualizeReturn(*ema, periodsPerYear)
		}
		return 0
	}
	if cagr := formulas.CalculateCAGR(prices[0], prices[len(prices)-1], years); cagr != nil {
		return *cagr
	}
	return 0
}

// tradingIndices returns the indices in [from, to) where at least one universe
// asset has a valid price. Dates carried only by the benchmark are skipped.
func tradingIndices(series *domain.PriceSeries, from, to int) []int {
	var out []int
	for i := from; i < to; i++ {
		for _, asset := range series.Universe {
			if row := series.Prices[asset]; i < len(row) && domain.ValidPrice(row[i]) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func countMissing(prices []float64) int {
	var missing int
	for _, p := range prices {
		if !domain.ValidPrice(p) {
			missing++
		}
	}
	return missing
}
