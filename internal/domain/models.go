// Package domain holds the value types shared by the backtest engine and its collaborators.
package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// WeightTolerance bounds how far a weight vector may drift from summing to one.
const WeightTolerance = 1e-3

// Weights maps asset identifiers to non-negative capital fractions.
type Weights map[string]float64

// Sum returns the total allocated fraction.
func (w Weights) Sum() float64 {
	var total float64
	for _, a := range w.Assets() {
		total += w[a]
	}
	return total
}

// Assets returns the identifiers in sorted order.
func (w Weights) Assets() []string {
	assets := make([]string, 0, len(w))
	for a := range w {
		assets = append(assets, a)
	}
	sort.Strings(assets)
	return assets
}

// Clone returns an independent copy.
func (w Weights) Clone() Weights {
	if w == nil {
		return nil
	}
	out := make(Weights, len(w))
	for a, v := range w {
		out[a] = v
	}
	return out
}

// Validate checks bounds, full investment and the minimum-weight floor.
func (w Weights) Validate(minWeight float64) error {
	if len(w) == 0 {
		return fmt.Errorf("empty weights")
	}
	for _, a := range w.Assets() {
		v := w[a]
		if math.IsNaN(v) || v < 0 || v > 1+WeightTolerance {
			return fmt.Errorf("weight for %s out of bounds: %v", a, v)
		}
		if v > 0 && v < minWeight-1e-9 {
			return fmt.Errorf("weight for %s below floor %v: %v", a, minWeight, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > WeightTolerance {
		return fmt.Errorf("weights sum to %v", sum)
	}
	return nil
}

// PortfolioState is the portfolio's capital and allocation as of a date.
type PortfolioState struct {
	AsOf    time.Time `json:"as_of"`
	Capital float64   `json:"capital"`
	Weights Weights   `json:"weights"`
}

// BenchmarkState is the benchmark position's capital as of a date.
type BenchmarkState struct {
	Symbol  string    `json:"symbol"`
	AsOf    time.Time `json:"as_of"`
	Capital float64   `json:"capital"`
}

// ConditionCode classifies a non-fatal event recorded on a year.
type ConditionCode string

const (
	ConditionInsufficientWindow    ConditionCode = "insufficient_window"
	ConditionInfeasibleConstraints ConditionCode = "infeasible_constraints"
	ConditionAssetExcluded         ConditionCode = "asset_excluded"
	ConditionOptimizerFailed       ConditionCode = "optimizer_failed"
	ConditionStalePrice            ConditionCode = "stale_price"
	ConditionCashHeld              ConditionCode = "cash_held"
)

// Condition is a non-fatal event attached to a year's snapshot.
type Condition struct {
	Code    ConditionCode `json:"code" msgpack:"code"`
	Asset   string        `json:"asset,omitempty" msgpack:"asset,omitempty"`
	Message string        `json:"message" msgpack:"message"`
}

// YearSnapshot records one simulated year.
// Portfolio and Benchmark hold the capital at the end of the holding period.
type YearSnapshot struct {
	Year            int            `json:"year"`
	RebalanceDate   time.Time      `json:"rebalance_date"`
	HoldingEnd      time.Time      `json:"holding_end"`
	Contribution    float64        `json:"contribution"`
	StartingCapital float64        `json:"starting_capital"`
	Portfolio       PortfolioState `json:"portfolio"`
	Benchmark       BenchmarkState `json:"benchmark"`
	Degraded        bool           `json:"degraded"`
	Conditions      []Condition    `json:"conditions"`
}

// Clone returns a deep copy.
func (s YearSnapshot) Clone() YearSnapshot {
	out := s
	out.Portfolio.Weights = s.Portfolio.Weights.Clone()
	if s.Conditions != nil {
		out.Conditions = append([]Condition(nil), s.Conditions...)
	}
	return out
}
