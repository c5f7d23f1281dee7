// Package metrics derives run-level statistics from a completed result series.
package metrics

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/aristath/portfin/internal/domain"
	"github.com/aristath/portfin/pkg/formulas"
)

// Summary aggregates a result series. Returns are time-weighted: each year's
// return is ending capital over starting capital including that year's contribution.
type Summary struct {
	Years             int     `json:"years"`
	InitialCapital    float64 `json:"initial_capital"`
	TotalContributed  float64 `json:"total_contributed"`
	FinalCapital      float64 `json:"final_capital"`
	FinalBenchmark    float64 `json:"final_benchmark"`
	CAGR              float64 `json:"cagr"`
	BenchmarkCAGR     float64 `json:"benchmark_cagr"`
	ExcessReturn      float64 `json:"excess_return"`
	MeanReturn        float64 `json:"mean_return"`
	Volatility        float64 `json:"volatility"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	BenchmarkDrawdown float64 `json:"benchmark_max_drawdown"`
	YearsOutperformed int     `json:"years_outperformed"`
	DegradedYears     int     `json:"degraded_years"`
}

// YearlyReturns returns the time-weighted portfolio and benchmark return of each year.
func YearlyReturns(series *domain.ResultSeries) (portfolio, benchmark []float64) {
	entries := series.Entries()
	portfolio = make([]float64, len(entries))
	benchmark = make([]float64, len(entries))

	benchStart := 0.0
	for i, s := range entries {
		if i == 0 {
			benchStart = s.StartingCapital
		} else {
			benchStart = entries[i-1].Benchmark.Capital + s.Contribution
		}
		portfolio[i] = ratio(s.Portfolio.Capital, s.StartingCapital)
		benchmark[i] = ratio(s.Benchmark.Capital, benchStart)
	}
	return portfolio, benchmark
}

func ratio(end, start float64) float64 {
	if start <= 0 {
		return 0
	}
	return end/start - 1
}

// Summarize computes the run summary. An empty series is an error.
func Summarize(series *domain.ResultSeries) (Summary, error) {
	if series == nil || series.Len() == 0 {
		return Summary{}, fmt.Errorf("empty result series")
	}

	entries := series.Entries()
	first, last := entries[0], entries[len(entries)-1]

	summary := Summary{
		Years:          len(entries),
		InitialCapital: first.StartingCapital - first.Contribution,
		FinalCapital:   last.Portfolio.Capital,
		FinalBenchmark: last.Benchmark.Capital,
	}
	for _, s := range entries {
		summary.TotalContributed += s.Contribution
		if s.Degraded {
			summary.DegradedYears++
		}
	}

	portfolio, benchmark := YearlyReturns(series)
	for i := range portfolio {
		if portfolio[i] > benchmark[i] {
			summary.YearsOutperformed++
		}
	}

	summary.CAGR = compound(portfolio)
	summary.BenchmarkCAGR = compound(benchmark)
	summary.ExcessReturn = summary.CAGR - summary.BenchmarkCAGR
	summary.MaxDrawdown = formulas.MaxDrawdown(formulas.CumulativeReturns(portfolio))
	summary.BenchmarkDrawdown = formulas.MaxDrawdown(formulas.CumulativeReturns(benchmark))

	mean, err := stats.Mean(portfolio)
	if err != nil {
		return Summary{}, fmt.Errorf("mean yearly return: %w", err)
	}
	summary.MeanReturn = mean

	if len(portfolio) > 1 {
		stdev, err := stats.StandardDeviationSample(portfolio)
		if err != nil {
			return Summary{}, fmt.Errorf("yearly volatility: %w", err)
		}
		summary.Volatility = stdev
	}

	return summary, nil
}

// compound annualizes a sequence of yearly returns.
func compound(returns []float64) float64 {
	growth := formulas.CumulativeReturns(returns)
	final := growth[len(growth)-1]
	if final <= 0 {
		return -1
	}
	return math.Pow(final, 1/float64(len(returns))) - 1
}
