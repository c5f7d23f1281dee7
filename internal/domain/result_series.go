package domain

import "fmt"

// ResultSeries is the append-only sequence of yearly snapshots produced by a simulation.
type ResultSeries struct {
	entries []YearSnapshot
}

// NewResultSeries rebuilds a series from stored snapshots, validating their order.
func NewResultSeries(snapshots []YearSnapshot) (*ResultSeries, error) {
	r := &ResultSeries{}
	for _, s := range snapshots {
		if err := r.Append(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Append adds the next year. Years must be consecutive from 1 and dates strictly increasing.
func (r *ResultSeries) Append(s YearSnapshot) error {
	if s.Year != len(r.entries)+1 {
		return fmt.Errorf("expected year %d, got %d: %w", len(r.entries)+1, s.Year, ErrInvalidState)
	}
	if n := len(r.entries); n > 0 && !s.RebalanceDate.After(r.entries[n-1].RebalanceDate) {
		return fmt.Errorf("rebalance date %s not after %s: %w",
			s.RebalanceDate.Format("2006-01-02"), r.entries[n-1].RebalanceDate.Format("2006-01-02"), ErrInvalidState)
	}
	r.entries = append(r.entries, s.Clone())
	return nil
}

// Len returns the number of recorded years.
func (r *ResultSeries) Len() int {
	return len(r.entries)
}

// At returns a copy of the i-th snapshot (0-based).
func (r *ResultSeries) At(i int) YearSnapshot {
	return r.entries[i].Clone()
}

// Entries returns a deep copy of every snapshot.
func (r *ResultSeries) Entries() []YearSnapshot {
	out := make([]YearSnapshot, len(r.entries))
	for i, s := range r.entries {
		out[i] = s.Clone()
	}
	return out
}

// Last returns the final snapshot, if any.
func (r *ResultSeries) Last() (YearSnapshot, bool) {
	if len(r.entries) == 0 {
		return YearSnapshot{}, false
	}
	return r.entries[len(r.entries)-1].Clone(), true
}
