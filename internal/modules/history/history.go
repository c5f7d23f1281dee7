// Package history loads and caches daily price history for backtests.
package history

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aristath/portfin/internal/domain"
)

const dateLayout = "2006-01-02"

// Bar is one daily observation. AdjClose is zero when the source has none.
type Bar struct {
	Date     time.Time
	Close    float64
	AdjClose float64
}

// Price returns the adjusted close when present, else the close.
func (b Bar) Price() float64 {
	if domain.ValidPrice(b.AdjClose) {
		return b.AdjClose
	}
	return b.Close
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// assemble builds a series from per-symbol points, enforcing that the
// benchmark and at least one universe symbol have data.
func assemble(universe []string, benchmark string, points map[string][]domain.PricePoint) (*domain.PriceSeries, error) {
	if len(points[benchmark]) == 0 {
		return nil, fmt.Errorf("no prices for benchmark %s: %w", benchmark, domain.ErrDataUnavailable)
	}
	found := 0
	for _, s := range universe {
		if len(points[s]) > 0 {
			found++
		}
	}
	if found == 0 {
		return nil, fmt.Errorf("no prices for any of %s: %w", strings.Join(universe, ","), domain.ErrDataUnavailable)
	}
	return domain.NewPriceSeries(universe, benchmark, points)
}

func clip(bars []Bar, start, end time.Time) []domain.PricePoint {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	points := make([]domain.PricePoint, 0, len(bars))
	for _, b := range bars {
		d := domain.Day(b.Date)
		if d.Before(start) || d.After(end) || !domain.ValidPrice(b.Price()) {
			continue
		}
		points = append(points, domain.PricePoint{Date: d, Price: b.Price()})
	}
	return points
}
