package formulas

import "math"

// CalculateCAGR returns (end/start)^(1/years) - 1.
// For spans shorter than a quarter the simple return is used. Returns nil for
// non-positive prices or a non-positive span.
func CalculateCAGR(startPrice, endPrice, years float64) *float64 {
	if startPrice <= 0 || endPrice <= 0 || years <= 0 {
		return nil
	}

	if years < 0.25 {
		result := endPrice/startPrice - 1
		return &result
	}

	cagr := math.Pow(endPrice/startPrice, 1/years) - 1
	return &cagr
}

// CumulativeReturns turns periodic returns into a growth index starting at 1.
func CumulativeReturns(returns []float64) []float64 {
	index := make([]float64, len(returns)+1)
	index[0] = 1
	for i, r := range returns {
		index[i+1] = index[i] * (1 + r)
	}
	return index
}

// MaxDrawdown is the largest peak-to-trough decline of a value series,
// expressed as a positive fraction of the peak.
func MaxDrawdown(values []float64) float64 {
	var peak, maxDD float64
	for i, v := range values {
		if i == 0 || v > peak {
			peak = v
			continue
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
