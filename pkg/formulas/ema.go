package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateEMA returns the last Exponential Moving Average value of the series.
//
//	EMA_today = (Value_today × multiplier) + (EMA_yesterday × (1 - multiplier))
//	where multiplier = 2 / (period + 1)
//
// When the series is shorter than the period the simple mean is returned.
// Returns nil for an empty series.
func CalculateEMA(values []float64, length int) *float64 {
	if len(values) == 0 {
		return nil
	}

	if length < 2 || len(values) < length {
		sma := Mean(values)
		return &sma
	}

	ema := talib.Ema(values, length)
	if len(ema) > 0 && !isNaN(ema[len(ema)-1]) {
		result := ema[len(ema)-1]
		return &result
	}

	sma := Mean(values[len(values)-length:])
	return &sma
}
