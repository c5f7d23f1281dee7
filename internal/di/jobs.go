package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/portfin/internal/config"
	"github.com/aristath/portfin/internal/scheduler"
)

// Maintenance schedules, seconds first
const (
	checkDatabasesSchedule = "0 0 3 * * *"
	checkWALSchedule       = "0 */30 * * * *"
	vacuumSchedule         = "0 0 4 * * 0"
)

// RegisterJobs creates every job and registers the scheduled ones
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	symbols := append([]string(nil), cfg.Backtest.Universe...)
	if cfg.Backtest.Benchmark != "" {
		symbols = append(symbols, cfg.Backtest.Benchmark)
	}

	syncPrices := scheduler.NewSyncPricesJob(container.Ingester, container.PriceRepo, symbols, cfg.HistoryStart)
	syncPrices.SetLogger(log.With().Str("job", syncPrices.Name()).Logger())

	runBacktest := scheduler.NewRunBacktestJob(container.BacktestService, cfg.Backtest)
	runBacktest.SetLogger(log.With().Str("job", runBacktest.Name()).Logger())

	checkDatabases := scheduler.NewCheckDatabasesJob(container.Databases()...)
	checkDatabases.SetLogger(log.With().Str("job", checkDatabases.Name()).Logger())

	checkWAL := scheduler.NewCheckWALCheckpointsJob(container.Databases()...)
	checkWAL.SetLogger(log.With().Str("job", checkWAL.Name()).Logger())

	vacuum := scheduler.NewVacuumDatabasesJob(container.Databases()...)
	vacuum.SetLogger(log.With().Str("job", vacuum.Name()).Logger())

	registrations := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.Schedule.PriceSync, syncPrices},
		{cfg.Schedule.Backtest, runBacktest},
		{checkDatabasesSchedule, checkDatabases},
		{checkWALSchedule, checkWAL},
		{vacuumSchedule, vacuum},
	}
	for _, reg := range registrations {
		if err := container.Scheduler.AddJob(reg.schedule, reg.job); err != nil {
			return nil, fmt.Errorf("failed to register job: %w", err)
		}
	}

	return &JobInstances{
		SyncPrices:     syncPrices,
		RunBacktest:    runBacktest,
		CheckDatabases: checkDatabases,
		CheckWAL:       checkWAL,
		Vacuum:         vacuum,
	}, nil
}
