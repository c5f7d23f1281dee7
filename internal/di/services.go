package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/portfin/internal/config"
	"github.com/aristath/portfin/internal/events"
	"github.com/aristath/portfin/internal/modules/backtest"
	"github.com/aristath/portfin/internal/modules/history"
	"github.com/aristath/portfin/internal/modules/results"
	"github.com/aristath/portfin/internal/scheduler"
)

// InitializeServices creates the event bus, price providers, exporter and backtest service
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	switch cfg.PriceSource {
	case config.PriceSourceCSV:
		container.Prices = history.NewCSVProvider(cfg.CSVDir, log)
	default:
		container.Prices = container.PriceRepo
	}
	container.Ingester = history.NewYahooIngester(nil, container.PriceRepo, container.EventManager, log)

	if cfg.Export.Bucket != "" {
		exporter, err := results.NewS3Exporter(ctx, results.S3Config{
			Bucket:          cfg.Export.Bucket,
			Prefix:          cfg.Export.Prefix,
			Region:          cfg.Export.Region,
			Endpoint:        cfg.Export.Endpoint,
			AccessKeyID:     cfg.Export.AccessKeyID,
			SecretAccessKey: cfg.Export.SecretAccessKey,
			UsePathStyle:    cfg.Export.UsePathStyle,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create exporter: %w", err)
		}
		container.Exporter = exporter
	}

	container.BacktestService = backtest.NewService(
		container.Prices,
		container.ResultsRepo,
		container.Exporter,
		container.EventManager,
		log,
	)
	container.Scheduler = scheduler.New(log)

	log.Info().
		Str("price_source", cfg.PriceSource).
		Bool("export", container.Exporter != nil).
		Msg("Services initialized")
	return nil
}
