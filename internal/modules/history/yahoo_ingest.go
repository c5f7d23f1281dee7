package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/rs/zerolog"

	"github.com/aristath/portfin/internal/domain"
	"github.com/aristath/portfin/internal/events"
)

const sourceYahoo = "yahoo"

// BarSource downloads daily bars.
type BarSource interface {
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
}

// YahooSource downloads daily bars through the Yahoo Finance chart API.
type YahooSource struct{}

// Bars implements BarSource.
func (YahooSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	params := &chart.Params{
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Symbol:   symbol,
		Interval: datetime.OneDay,
	}
	iter := chart.Get(params)

	var bars []Bar
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := iter.Bar()
		bars = append(bars, Bar{
			Date:     domain.Day(time.Unix(int64(bar.Timestamp), 0)),
			Close:    bar.Close.InexactFloat64(),
			AdjClose: bar.AdjClose.InexactFloat64(),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get prices for %s: %w", symbol, err)
	}
	return bars, nil
}

// SyncResult summarizes one ingest pass.
type SyncResult struct {
	Rows    int               `json:"rows"`
	Synced  []string          `json:"synced"`
	Skipped []string          `json:"skipped,omitempty"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// YahooIngester keeps the price history database current.
type YahooIngester struct {
	source BarSource
	repo   *PriceRepository
	events *events.Manager
	now    func() time.Time
	log    zerolog.Logger
}

// NewYahooIngester creates an ingester. A nil source uses YahooSource.
func NewYahooIngester(source BarSource, repo *PriceRepository, eventManager *events.Manager, log zerolog.Logger) *YahooIngester {
	if source == nil {
		source = YahooSource{}
	}
	return &YahooIngester{
		source: source,
		repo:   repo,
		events: eventManager,
		now:    time.Now,
		log:    log.With().Str("component", "yahoo_ingester").Logger(),
	}
}

// Sync fetches bars for each symbol from the day after its latest stored
// date, or from since when nothing is stored, through today. Per-symbol
// failures are collected; the error is non-nil only when every symbol failed.
func (y *YahooIngester) Sync(ctx context.Context, symbols []string, since time.Time) (SyncResult, error) {
	result := SyncResult{Failed: map[string]string{}}
	today := domain.Day(y.now())

	for _, raw := range symbols {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		symbol := normalizeSymbol(raw)

		from := domain.Day(since)
		latest, ok, err := y.repo.LatestDate(ctx, symbol)
		if err != nil {
			result.Failed[symbol] = err.Error()
			continue
		}
		if ok {
			from = latest.AddDate(0, 0, 1)
		}
		if from.After(today) {
			result.Skipped = append(result.Skipped, symbol)
			continue
		}

		bars, err := y.source.Bars(ctx, symbol, from, today.AddDate(0, 0, 1))
		if err != nil {
			y.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to download prices")
			result.Failed[symbol] = err.Error()
			continue
		}
		n, err := y.repo.Upsert(ctx, symbol, sourceYahoo, bars)
		if err != nil {
			result.Failed[symbol] = err.Error()
			continue
		}
		result.Rows += n
		result.Synced = append(result.Synced, symbol)
	}

	failed := make([]string, 0, len(result.Failed))
	for s := range result.Failed {
		failed = append(failed, s)
	}
	sort.Strings(failed)

	y.events.Emit("history", &events.PricesSyncedData{
		Symbols: result.Synced,
		Rows:    result.Rows,
		Failed:  failed,
	})
	y.log.Info().
		Int("rows", result.Rows).
		Int("synced", len(result.Synced)).
		Int("skipped", len(result.Skipped)).
		Strs("failed", failed).
		Msg("Price history synced")

	if len(symbols) > 0 && len(failed) == len(symbols) {
		return result, fmt.Errorf("all %d symbols failed, first %s: %s", len(symbols), failed[0], result.Failed[failed[0]])
	}
	return result, nil
}
