package backtest

import (
	"iter"
	"time"
)

// Period is one rebalance-and-hold year.
type Period struct {
	Year  int       `json:"year"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Horizon yields the year indices 1..years. Each call to the returned
// sequence starts over.
func Horizon(years int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := 1; i <= years; i++ {
			if !yield(i) {
				return
			}
		}
	}
}

// Schedule lays out the rebalance periods starting at first, one calendar year each.
func Schedule(first time.Time, years int) []Period {
	periods := make([]Period, 0, max(years, 0))
	for i := range Horizon(years) {
		periods = append(periods, Period{
			Year:  i,
			Start: first.AddDate(i-1, 0, 0),
			End:   first.AddDate(i, 0, 0),
		})
	}
	return periods
}
