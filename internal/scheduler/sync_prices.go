package scheduler

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aristath/portfin/internal/modules/history"
)

// PriceSyncer pulls new bars for symbols into local storage
type PriceSyncer interface {
	Sync(ctx context.Context, symbols []string, since time.Time) (history.SyncResult, error)
}

// SymbolLister reports symbols that already have stored history
type SymbolLister interface {
	Symbols(ctx context.Context) ([]string, error)
}

// SyncPricesJob refreshes price history for the configured symbols
// and every symbol already present in the store.
type SyncPricesJob struct {
	JobBase
	syncer  PriceSyncer
	known   SymbolLister
	symbols []string
	since   time.Time
}

// NewSyncPricesJob creates a new SyncPricesJob. known may be nil.
func NewSyncPricesJob(syncer PriceSyncer, known SymbolLister, symbols []string, since time.Time) *SyncPricesJob {
	return &SyncPricesJob{
		JobBase: newJobBase(),
		syncer:  syncer,
		known:   known,
		symbols: symbols,
		since:   since,
	}
}

// Name returns the job name
func (j *SyncPricesJob) Name() string {
	return "sync_prices"
}

// Run executes the price sync
func (j *SyncPricesJob) Run() error {
	ctx, cancel := j.context()
	defer cancel()

	symbols, err := j.targets(ctx)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		j.log.Info().Msg("No symbols to sync")
		return nil
	}

	result, err := j.syncer.Sync(ctx, symbols, j.since)
	if err != nil {
		return fmt.Errorf("sync prices: %w", err)
	}
	j.log.Info().
		Int("symbols", len(symbols)).
		Int("rows", result.Rows).
		Int("failed", len(result.Failed)).
		Msg("Price sync job completed")
	return nil
}

func (j *SyncPricesJob) targets(ctx context.Context) ([]string, error) {
	symbols := make([]string, 0, len(j.symbols))
	for _, s := range j.symbols {
		symbols = append(symbols, strings.ToUpper(strings.TrimSpace(s)))
	}
	if j.known != nil {
		stored, err := j.known.Symbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("list stored symbols: %w", err)
		}
		symbols = append(symbols, stored...)
	}
	slices.Sort(symbols)
	symbols = slices.Compact(symbols)
	return slices.DeleteFunc(symbols, func(s string) bool { return s == "" }), nil
}
