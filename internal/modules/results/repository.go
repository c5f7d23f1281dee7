// Package results persists completed backtest runs and exports them to object storage.
package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/portfin/internal/database"
	"github.com/aristath/portfin/internal/domain"
	"github.com/aristath/portfin/internal/modules/backtest"
	"github.com/aristath/portfin/internal/modules/metrics"
)

const dateLayout = "2006-01-02"

// Repository stores runs in the results database.
type Repository struct {
	db    *sql.DB
	newID func() string
	log   zerolog.Logger
}

// NewRepository creates a repository over a migrated results database.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:    db,
		newID: uuid.NewString,
		log:   log.With().Str("repo", "results").Logger(),
	}
}

// Save assigns run.ID and stores the run with its yearly rows.
func (r *Repository) Save(ctx context.Context, run *backtest.Run) error {
	if run.ID == "" {
		run.ID = r.newID()
	}
	universe, err := json.Marshal(run.Universe)
	if err != nil {
		return fmt.Errorf("encode universe: %w", err)
	}
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, name, created_at, benchmark, universe, config, summary)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.Name, run.CreatedAt.Unix(), run.Benchmark, string(universe), string(cfg), string(summary),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for _, y := range run.Years {
			weights, err := msgpack.Marshal(map[string]float64(y.Portfolio.Weights))
			if err != nil {
				return fmt.Errorf("encode weights for year %d: %w", y.Year, err)
			}
			conditions, err := msgpack.Marshal(y.Conditions)
			if err != nil {
				return fmt.Errorf("encode conditions for year %d: %w", y.Year, err)
			}
			degraded := 0
			if y.Degraded {
				degraded = 1
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO run_years (run_id, year, rebalance_date, holding_end, contribution,
					starting_capital, capital, benchmark_capital, degraded, weights, conditions)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.ID, y.Year, y.RebalanceDate.Format(dateLayout), y.HoldingEnd.Format(dateLayout),
				y.Contribution, y.StartingCapital, y.Portfolio.Capital, y.Benchmark.Capital,
				degraded, weights, conditions,
			); err != nil {
				return fmt.Errorf("insert year %d: %w", y.Year, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Str("run_id", run.ID).Int("years", len(run.Years)).Msg("Run saved")
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*backtest.Run, error) {
	var (
		run                    backtest.Run
		created                int64
		universe, cfg, summary string
	)
	if err := row.Scan(&run.ID, &run.Name, &created, &run.Benchmark, &universe, &cfg, &summary); err != nil {
		return nil, err
	}
	run.CreatedAt = time.Unix(created, 0).UTC()
	if err := json.Unmarshal([]byte(universe), &run.Universe); err != nil {
		return nil, fmt.Errorf("decode universe: %w", err)
	}
	if err := json.Unmarshal([]byte(cfg), &run.Config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	var s metrics.Summary
	if err := json.Unmarshal([]byte(summary), &s); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	run.Summary = s
	return &run, nil
}

const runColumns = `id, name, created_at, benchmark, universe, config, summary`

// Get returns the run with its yearly snapshots.
func (r *Repository) Get(ctx context.Context, id string) (*backtest.Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	years, err := r.years(ctx, run)
	if err != nil {
		return nil, err
	}
	run.Years = years
	return run, nil
}

func (r *Repository) years(ctx context.Context, run *backtest.Run) ([]domain.YearSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT year, rebalance_date, holding_end, contribution, starting_capital,
			capital, benchmark_capital, degraded, weights, conditions
		FROM run_years WHERE run_id = ? ORDER BY year`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("query years for %s: %w", run.ID, err)
	}
	defer rows.Close()

	var years []domain.YearSnapshot
	for rows.Next() {
		var (
			y                   domain.YearSnapshot
			rebalance, end      string
			degraded            int
			weights, conditions []byte
		)
		if err := rows.Scan(&y.Year, &rebalance, &end, &y.Contribution, &y.StartingCapital,
			&y.Portfolio.Capital, &y.Benchmark.Capital, &degraded, &weights, &conditions); err != nil {
			return nil, fmt.Errorf("scan year: %w", err)
		}
		if y.RebalanceDate, err = time.Parse(dateLayout, rebalance); err != nil {
			return nil, fmt.Errorf("bad rebalance date %q: %w", rebalance, err)
		}
		if y.HoldingEnd, err = time.Parse(dateLayout, end); err != nil {
			return nil, fmt.Errorf("bad holding end %q: %w", end, err)
		}
		if len(weights) > 0 {
			var w map[string]float64
			if err := msgpack.Unmarshal(weights, &w); err != nil {
				return nil, fmt.Errorf("decode weights for year %d: %w", y.Year, err)
			}
			y.Portfolio.Weights = w
		}
		if len(conditions) > 0 {
			if err := msgpack.Unmarshal(conditions, &y.Conditions); err != nil {
				return nil, fmt.Errorf("decode conditions for year %d: %w", y.Year, err)
			}
		}
		y.Degraded = degraded != 0
		y.Portfolio.AsOf = y.HoldingEnd
		y.Benchmark.AsOf = y.HoldingEnd
		y.Benchmark.Symbol = run.Benchmark
		years = append(years, y)
	}
	return years, rows.Err()
}

// List returns the newest runs first, without yearly snapshots.
func (r *Repository) List(ctx context.Context, limit int) ([]backtest.Run, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []backtest.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Delete removes a run and its years.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
