package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DaysPerYear is the calendar length used to convert date spans to years.
const DaysPerYear = 365.25

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// Covariance calculates the sample covariance of two equal-length slices.
// Fewer than two observations yield 0.
func Covariance(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// CalculateReturns converts prices to simple periodic returns
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// YearsBetween returns the calendar span in years given a span in days.
func YearsBetween(days float64) float64 {
	return days / DaysPerYear
}

// AnnualizeReturn compounds a per-period return over periodsPerYear periods.
func AnnualizeReturn(periodReturn, periodsPerYear float64) float64 {
	return math.Pow(1+periodReturn, periodsPerYear) - 1
}

func isNaN(v float64) bool {
	return math.IsNaN(v)
}
