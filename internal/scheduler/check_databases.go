package scheduler

import (
	"fmt"
	"sort"

	"github.com/aristath/portfin/internal/database"
)

// CheckDatabasesJob verifies integrity of the SQLite databases
type CheckDatabasesJob struct {
	JobBase
	databases []*database.DB
}

// NewCheckDatabasesJob creates a new CheckDatabasesJob. Nil entries are skipped.
func NewCheckDatabasesJob(dbs ...*database.DB) *CheckDatabasesJob {
	return &CheckDatabasesJob{JobBase: newJobBase(), databases: dbs}
}

// Name returns the job name
func (j *CheckDatabasesJob) Name() string {
	return "check_databases"
}

// Run executes the integrity check. The first corrupted database fails the job.
func (j *CheckDatabasesJob) Run() error {
	ctx, cancel := j.context()
	defer cancel()

	checked := 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().
				Err(err).
				Str("database", db.Name()).
				Msg("Database integrity check failed")
			return fmt.Errorf("database %s is corrupted: %w", db.Name(), err)
		}
		j.log.Debug().Str("database", db.Name()).Msg("Database integrity OK")
		checked++
	}

	j.log.Info().Int("checked", checked).Msg("Database integrity check passed")
	return nil
}

// databaseNames lists the non-nil database names in order
func databaseNames(dbs []*database.DB) []string {
	var names []string
	for _, db := range dbs {
		if db != nil {
			names = append(names, db.Name())
		}
	}
	sort.Strings(names)
	return names
}
