package history

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfin/internal/database"
	"github.com/aristath/portfin/internal/domain"
)

// PriceRepository stores daily bars in the history database.
type PriceRepository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewPriceRepository creates a repository over a migrated history database.
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "price_history").Logger(),
	}
}

// Upsert inserts or replaces bars for symbol in one transaction.
func (r *PriceRepository) Upsert(ctx context.Context, symbol, source string, bars []Bar) (int, error) {
	symbol = normalizeSymbol(symbol)
	written := 0
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO price_history (symbol, date, close, adj_close, source, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(symbol, date) DO UPDATE SET
				close = excluded.close,
				adj_close = excluded.adj_close,
				source = excluded.source,
				updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		updated := r.now().Unix()
		for _, b := range bars {
			if !domain.ValidPrice(b.Close) {
				continue
			}
			var adj interface{}
			if domain.ValidPrice(b.AdjClose) {
				adj = b.AdjClose
			}
			if _, err := stmt.ExecContext(ctx, symbol, domain.Day(b.Date).Format(dateLayout), b.Close, adj, source, updated); err != nil {
				return fmt.Errorf("upsert %s %s: %w", symbol, b.Date.Format(dateLayout), err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Debug().Str("symbol", symbol).Int("rows", written).Msg("Stored price history")
	return written, nil
}

// Range returns bars for symbol with dates in [start, end], oldest first.
func (r *PriceRepository) Range(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, close, adj_close FROM price_history
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		normalizeSymbol(symbol), domain.Day(start).Format(dateLayout), domain.Day(end).Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	var bars []Bar
	for rows.Next() {
		var (
			date string
			b    Bar
			adj  sql.NullFloat64
		)
		if err := rows.Scan(&date, &b.Close, &adj); err != nil {
			return nil, fmt.Errorf("scan price history: %w", err)
		}
		if b.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("bad date %q for %s: %w", date, symbol, err)
		}
		b.AdjClose = adj.Float64
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LatestDate returns the most recent stored date for symbol.
func (r *PriceRepository) LatestDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	var date sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(date) FROM price_history WHERE symbol = ?`, normalizeSymbol(symbol)).Scan(&date)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query latest date: %w", err)
	}
	if !date.Valid {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(dateLayout, date.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("bad date %q for %s: %w", date.String, symbol, err)
	}
	return t, true, nil
}

// Symbols lists every symbol with stored history.
func (r *PriceRepository) Symbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM price_history ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// Fetch implements domain.PriceWindowProvider from the stored history.
func (r *PriceRepository) Fetch(ctx context.Context, universe []string, benchmark string, start, end time.Time) (*domain.PriceSeries, error) {
	benchmark = normalizeSymbol(benchmark)
	symbols := make([]string, 0, len(universe))
	for _, s := range universe {
		symbols = append(symbols, normalizeSymbol(s))
	}
	start, end = domain.Day(start), domain.Day(end)

	points := make(map[string][]domain.PricePoint, len(symbols)+1)
	for _, s := range append(append([]string(nil), symbols...), benchmark) {
		if _, done := points[s]; done {
			continue
		}
		bars, err := r.Range(ctx, s, start, end)
		if err != nil {
			return nil, err
		}
		points[s] = clip(bars, start, end)
	}
	return assemble(symbols, benchmark, points)
}

// ImportCSV stores the bars of a date,close[,adj_close] CSV for symbol.
func (r *PriceRepository) ImportCSV(ctx context.Context, symbol string, rd io.Reader) (int, error) {
	bars, err := ReadCSV(rd)
	if err != nil {
		return 0, err
	}
	return r.Upsert(ctx, symbol, "csv", bars)
}
