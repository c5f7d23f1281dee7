package domain

import (
	"context"
	"time"
)

// PriceWindowProvider returns aligned daily prices for a universe and benchmark over [start, end].
// Implementations fail with ErrDataUnavailable when the benchmark or every asset is missing.
type PriceWindowProvider interface {
	Fetch(ctx context.Context, universe []string, benchmark string, start, end time.Time) (*PriceSeries, error)
}
