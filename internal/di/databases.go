package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/portfin/internal/config"
	"github.com/aristath/portfin/internal/database"
)

// InitializeDatabases opens and migrates the history and results databases
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// history.db - daily closes per symbol
	historyDB, err := database.New(database.Config{
		Path:    cfg.HistoryDBPath(),
		Profile: database.ProfileStandard,
		Name:    database.NameHistory,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}
	container.HistoryDB = historyDB

	// results.db - completed runs and their yearly snapshots
	resultsDB, err := database.New(database.Config{
		Path:    cfg.ResultsDBPath(),
		Profile: database.ProfileStandard,
		Name:    database.NameResults,
	})
	if err != nil {
		historyDB.Close()
		return nil, fmt.Errorf("failed to initialize results database: %w", err)
	}
	container.ResultsDB = resultsDB

	for _, db := range container.Databases() {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().
		Str("history", historyDB.Path()).
		Str("results", resultsDB.Path()).
		Msg("Databases initialized")
	return container, nil
}
