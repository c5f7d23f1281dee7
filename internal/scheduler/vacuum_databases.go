package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/portfin/internal/database"
)

// VacuumDatabasesJob reclaims free pages left by deleted runs and replaced prices
type VacuumDatabasesJob struct {
	JobBase
	databases []*database.DB
}

// NewVacuumDatabasesJob creates a new VacuumDatabasesJob. Nil entries are skipped.
func NewVacuumDatabasesJob(dbs ...*database.DB) *VacuumDatabasesJob {
	return &VacuumDatabasesJob{JobBase: newJobBase(), databases: dbs}
}

// Name returns the job name
func (j *VacuumDatabasesJob) Name() string {
	return "vacuum_databases"
}

// Run vacuums every database. A failure is logged and the rest still run.
func (j *VacuumDatabasesJob) Run() error {
	ctx, cancel := j.context()
	defer cancel()

	start := time.Now()
	failed := 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}
		if err := j.vacuum(ctx, db); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("VACUUM failed")
			failed++
		}
	}

	j.log.Info().
		Int("failed", failed).
		Dur("duration_ms", time.Since(start)).
		Msg("Database vacuum completed")
	if failed > 0 {
		return fmt.Errorf("vacuum failed for %d databases", failed)
	}
	return nil
}

func (j *VacuumDatabasesJob) vacuum(ctx context.Context, db *database.DB) error {
	before, err := sizeMB(ctx, db)
	if err != nil {
		return err
	}
	if _, err := db.Conn().ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("VACUUM failed: %w", err)
	}
	after, err := sizeMB(ctx, db)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("database", db.Name()).
		Float64("size_before_mb", before).
		Float64("size_after_mb", after).
		Float64("space_reclaimed_mb", before-after).
		Msg("VACUUM completed")
	return nil
}

func sizeMB(ctx context.Context, db *database.DB) (float64, error) {
	var pageCount, pageSize int64
	if err := db.Conn().QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	if err := db.Conn().QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("page size: %w", err)
	}
	return float64(pageCount*pageSize) / 1024 / 1024, nil
}
