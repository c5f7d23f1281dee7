// Package events carries backtest progress notifications from the engine to subscribers.
package events

import (
	"time"
)

// EventType represents different event types
type EventType string

const (
	BacktestStarted   EventType = "BACKTEST_STARTED"
	YearCompleted     EventType = "YEAR_COMPLETED"
	BacktestCompleted EventType = "BACKTEST_COMPLETED"
	BacktestFailed    EventType = "BACKTEST_FAILED"
	PricesSynced      EventType = "PRICES_SYNCED"
)

// Event is a single notification delivered to subscribers.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// BacktestStartedData contains data for BacktestStarted events
type BacktestStartedData struct {
	RunName   string   `json:"run_name"`
	Optimizer string   `json:"optimizer"`
	Years     int      `json:"years"`
	Universe  []string `json:"universe"`
	Benchmark string   `json:"benchmark"`
}

// EventType returns the event type for BacktestStartedData
func (d *BacktestStartedData) EventType() EventType {
	return BacktestStarted
}

// YearCompletedData contains data for YearCompleted events
type YearCompletedData struct {
	RunName          string             `json:"run_name"`
	Year             int                `json:"year"`
	Years            int                `json:"years"`
	RebalanceDate    time.Time          `json:"rebalance_date"`
	Capital          float64            `json:"capital"`
	BenchmarkCapital float64            `json:"benchmark_capital"`
	Weights          map[string]float64 `json:"weights"`
	Degraded         bool               `json:"degraded"`
}

// EventType returns the event type for YearCompletedData
func (d *YearCompletedData) EventType() EventType {
	return YearCompleted
}

// BacktestCompletedData contains data for BacktestCompleted events
type BacktestCompletedData struct {
	RunID            string  `json:"run_id,omitempty"`
	RunName          string  `json:"run_name"`
	FinalCapital     float64 `json:"final_capital"`
	BenchmarkCapital float64 `json:"benchmark_capital"`
	DegradedYears    int     `json:"degraded_years"`
}

// EventType returns the event type for BacktestCompletedData
func (d *BacktestCompletedData) EventType() EventType {
	return BacktestCompleted
}

// BacktestFailedData contains data for BacktestFailed events
type BacktestFailedData struct {
	RunName string `json:"run_name"`
	Error   string `json:"error"`
}

// EventType returns the event type for BacktestFailedData
func (d *BacktestFailedData) EventType() EventType {
	return BacktestFailed
}

// PricesSyncedData contains data for PricesSynced events
type PricesSyncedData struct {
	Symbols []string `json:"symbols"`
	Rows    int      `json:"rows"`
	Failed  []string `json:"failed,omitempty"`
}

// EventType returns the event type for PricesSyncedData
func (d *PricesSyncedData) EventType() EventType {
	return PricesSynced
}
