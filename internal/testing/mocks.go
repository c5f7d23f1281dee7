package testing

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/portfin/internal/domain"
)

// FetchCall records the arguments of one PriceWindowProvider.Fetch call.
type FetchCall struct {
	Universe   []string
	Benchmark  string
	Start, End time.Time
}

// MockPriceProvider is a PriceWindowProvider that builds series from fixed points.
type MockPriceProvider struct {
	mu     sync.Mutex
	points map[string][]domain.PricePoint
	err    error
	calls  []FetchCall
}

// NewMockPriceProvider creates a mock provider serving points.
func NewMockPriceProvider(points map[string][]domain.PricePoint) *MockPriceProvider {
	return &MockPriceProvider{points: points}
}

// SetError makes subsequent fetches fail
func (m *MockPriceProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the recorded fetches
func (m *MockPriceProvider) Calls() []FetchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FetchCall(nil), m.calls...)
}

// Fetch implements domain.PriceWindowProvider
func (m *MockPriceProvider) Fetch(_ context.Context, universe []string, benchmark string, start, end time.Time) (*domain.PriceSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, FetchCall{Universe: universe, Benchmark: benchmark, Start: start, End: end})
	if m.err != nil {
		return nil, m.err
	}

	window := make(map[string][]domain.PricePoint)
	for _, s := range append(append([]string(nil), universe...), benchmark) {
		for _, p := range m.points[s] {
			if !p.Date.Before(start) && !p.Date.After(end) {
				window[s] = append(window[s], p)
			}
		}
	}
	return domain.NewPriceSeries(universe, benchmark, window)
}
