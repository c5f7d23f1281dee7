package di

import (
	"github.com/rs/zerolog"

	"github.com/aristath/portfin/internal/modules/history"
	"github.com/aristath/portfin/internal/modules/results"
)

// InitializeRepositories creates repositories over the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	container.PriceRepo = history.NewPriceRepository(container.HistoryDB.Conn(), log)
	container.ResultsRepo = results.NewRepository(container.ResultsDB.Conn(), log)
	return nil
}
