package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DefaultStaleness is how far before a requested date a price may be and still count as current.
const DefaultStaleness = 10 * 24 * time.Hour

// PricePoint is a single dated observation.
type PricePoint struct {
	Date  time.Time
	Price float64
}

// PriceSeries holds date-aligned daily prices for a universe and its benchmark.
// Prices[asset][i] is the observation on Dates[i]; missing observations are NaN.
type PriceSeries struct {
	Dates     []time.Time
	Prices    map[string][]float64
	Universe  []string
	Benchmark string
}

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewPriceSeries aligns per-asset observations on the union of their dates.
// Observations are keyed by day; a later duplicate for the same day wins.
func NewPriceSeries(universe []string, benchmark string, points map[string][]PricePoint) (*PriceSeries, error) {
	if benchmark == "" {
		return nil, fmt.Errorf("benchmark symbol required: %w", ErrInvalidConfig)
	}

	byDay := make(map[time.Time]struct{})
	for _, series := range points {
		for _, p := range series {
			byDay[Day(p.Date)] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	index := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		index[d] = i
	}

	symbols := append([]string(nil), universe...)
	sort.Strings(symbols)
	symbols = dedupe(symbols)

	prices := make(map[string][]float64, len(symbols)+1)
	for _, s := range append(append([]string(nil), symbols...), benchmark) {
		if _, ok := prices[s]; ok {
			continue
		}
		row := make([]float64, len(dates))
		for i := range row {
			row[i] = math.NaN()
		}
		for _, p := range points[s] {
			row[index[Day(p.Date)]] = p.Price
		}
		prices[s] = row
	}

	return &PriceSeries{
		Dates:     dates,
		Prices:    prices,
		Universe:  symbols,
		Benchmark: benchmark,
	}, nil
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if s == "" || (i > 0 && s == sorted[i-1]) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Len returns the number of aligned dates.
func (s *PriceSeries) Len() int {
	return len(s.Dates)
}

// Start returns the first aligned date.
func (s *PriceSeries) Start() time.Time {
	if len(s.Dates) == 0 {
		return time.Time{}
	}
	return s.Dates[0]
}

// End returns the last aligned date.
func (s *PriceSeries) End() time.Time {
	if len(s.Dates) == 0 {
		return time.Time{}
	}
	return s.Dates[len(s.Dates)-1]
}

// Has reports whether the asset has at least one valid observation.
func (s *PriceSeries) Has(asset string) bool {
	for _, p := range s.Prices[asset] {
		if ValidPrice(p) {
			return true
		}
	}
	return false
}

// IndexRange returns the half-open index range [from, to) of dates within [start, end].
func (s *PriceSeries) IndexRange(start, end time.Time) (int, int) {
	from := sort.Search(len(s.Dates), func(i int) bool { return !s.Dates[i].Before(start) })
	to := sort.Search(len(s.Dates), func(i int) bool { return s.Dates[i].After(end) })
	if to < from {
		to = from
	}
	return from, to
}

// PriceOnOrBefore returns the last valid price of asset at or before t.
func (s *PriceSeries) PriceOnOrBefore(asset string, t time.Time) (float64, time.Time, bool) {
	row, ok := s.Prices[asset]
	if !ok {
		return 0, time.Time{}, false
	}
	_, to := s.IndexRange(time.Time{}, t)
	for i := to - 1; i >= 0; i-- {
		if ValidPrice(row[i]) {
			return row[i], s.Dates[i], true
		}
	}
	return 0, time.Time{}, false
}

// PriceNear returns the last valid price at or before t if it is no older than tolerance.
func (s *PriceSeries) PriceNear(asset string, t time.Time, tolerance time.Duration) (float64, bool) {
	price, at, ok := s.PriceOnOrBefore(asset, t)
	if !ok || t.Sub(at) > tolerance {
		return 0, false
	}
	return price, true
}

// ValidPrice reports whether p is a usable observation.
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
