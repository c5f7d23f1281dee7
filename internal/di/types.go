// Package di wires databases, repositories, services and jobs into a Container.
package di

import (
	"github.com/aristath/portfin/internal/database"
	"github.com/aristath/portfin/internal/domain"
	"github.com/aristath/portfin/internal/events"
	"github.com/aristath/portfin/internal/modules/backtest"
	"github.com/aristath/portfin/internal/modules/history"
	"github.com/aristath/portfin/internal/modules/results"
	"github.com/aristath/portfin/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	HistoryDB *database.DB
	ResultsDB *database.DB

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Repositories
	PriceRepo   *history.PriceRepository
	ResultsRepo *results.Repository

	// Services
	Prices          domain.PriceWindowProvider // sqlite repository or CSV directory, per config
	Ingester        *history.YahooIngester
	Exporter        backtest.Exporter // nil when export is disabled
	BacktestService *backtest.Service
	Scheduler       *scheduler.Scheduler
}

// JobInstances holds the registered jobs for manual triggering
type JobInstances struct {
	SyncPrices     scheduler.Job
	RunBacktest    scheduler.Job
	CheckDatabases scheduler.Job
	CheckWAL       scheduler.Job
	Vacuum         scheduler.Job
}

// All returns every job instance
func (j *JobInstances) All() []scheduler.Job {
	return []scheduler.Job{j.SyncPrices, j.RunBacktest, j.CheckDatabases, j.CheckWAL, j.Vacuum}
}

// Databases returns the open databases
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.HistoryDB, c.ResultsDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close closes every open database
func (c *Container) Close() {
	for _, db := range c.Databases() {
		db.Close()
	}
}
