package events

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Manager handles event emission and logging
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager. A nil bus only logs.
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
	}
}

// Emit publishes typed data to the bus and logs it
func (m *Manager) Emit(module string, data EventData) {
	if m == nil {
		return
	}
	if m.bus != nil {
		m.bus.Publish(module, data)
	}

	payload, _ := json.Marshal(data)
	m.log.Debug().
		Str("event_type", string(data.EventType())).
		Str("module", module).
		RawJSON("data", payload).
		Msg("Event emitted")
}

// EmitError emits an error event for a failed backtest
func (m *Manager) EmitError(module, runName string, err error) {
	m.Emit(module, &BacktestFailedData{RunName: runName, Error: err.Error()})
}
