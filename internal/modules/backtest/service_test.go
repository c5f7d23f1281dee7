package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfin/internal/domain"
	"github.com/aristath/portfin/internal/events"
)

type fakeProvider struct {
	series     *domain.PriceSeries
	err        error
	start, end time.Time
}

func (f *fakeProvider) Fetch(_ context.Context, _ []string, _ string, start, end time.Time) (*domain.PriceSeries, error) {
	f.start, f.end = start, end
	return f.series, f.err
}

type memoryStore struct {
	runs []*Run
}

func (m *memoryStore) Save(_ context.Context, run *Run) error {
	run.ID = "run-1"
	m.runs = append(m.runs, run)
	return nil
}

type failingExporter struct{ calls int }

func (f *failingExporter) Export(context.Context, *Run) error {
	f.calls++
	return errors.New("bucket unavailable")
}

func drain(ch <-chan events.Event) []events.EventType {
	var types []events.EventType
	for {
		select {
		case e := <-ch:
			types = append(types, e.Type)
		default:
			return types
		}
	}
}

func TestService_Run(t *testing.T) {
	series := buildSeries(t, day(2000, 1, 1), day(2003, 1, 10), []string{"A"}, "IDX", map[string]pricePath{
		"A":   doublingEachYear(100, 2000),
		"IDX": flat(100),
	})
	provider := &fakeProvider{series: series}
	store := &memoryStore{}
	exporter := &failingExporter{}
	bus := events.NewBus(zerolog.Nop())
	ch, cancel := bus.Subscribe()
	defer cancel()

	svc := NewService(provider, store, exporter, events.NewManager(bus, zerolog.Nop()), zerolog.Nop())

	cfg := testConfig(2, 1)
	cfg.StartDate = day(2001, 1, 1)
	run, err := svc.Run(context.Background(), Request{
		Name:      "doubling",
		Universe:  []string{" a "},
		Benchmark: "idx",
		Config:    cfg,
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, []string{"A"}, run.Universe)
	assert.Len(t, run.Years, 2)
	assert.InDelta(t, 4000.0, run.Summary.FinalCapital, 1e-9)
	assert.Len(t, store.runs, 1)
	assert.Equal(t, 1, exporter.calls)

	assert.Equal(t, day(2000, 1, 1).Add(-fetchMargin), provider.start)
	assert.Equal(t, day(2003, 1, 1).Add(fetchMargin), provider.end)

	assert.Equal(t, []events.EventType{
		events.BacktestStarted,
		events.YearCompleted,
		events.YearCompleted,
		events.BacktestCompleted,
	}, drain(ch))
}

func TestService_RunDefaultsHorizonToToday(t *testing.T) {
	series := buildSeries(t, day(2000, 1, 1), day(2003, 1, 1), []string{"A"}, "IDX", map[string]pricePath{
		"A":   flat(10),
		"IDX": flat(100),
	})
	provider := &fakeProvider{series: series}
	svc := NewService(provider, nil, nil, nil, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2003, 1, 1, 15, 30, 0, 0, time.UTC) }

	run, err := svc.Run(context.Background(), Request{Universe: []string{"A"}, Benchmark: "IDX", Config: testConfig(2, 1)})
	require.NoError(t, err)

	assert.Equal(t, day(2001, 1, 1), run.Config.StartDate)
	assert.Equal(t, day(2003, 1, 1), provider.end)
	assert.Equal(t, "hierarchical-1041435000", run.Name)
	assert.Empty(t, run.ID)
}

func TestService_RunFailures(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	ch, cancel := bus.Subscribe()
	defer cancel()
	manager := events.NewManager(bus, zerolog.Nop())

	t.Run("invalid request", func(t *testing.T) {
		svc := NewService(&fakeProvider{}, nil, nil, manager, zerolog.Nop())
		_, err := svc.Run(context.Background(), Request{Benchmark: "IDX", Config: testConfig(2, 1)})
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		assert.Empty(t, drain(ch))
	})

	t.Run("provider error", func(t *testing.T) {
		svc := NewService(&fakeProvider{err: domain.ErrDataUnavailable}, nil, nil, manager, zerolog.Nop())
		_, err := svc.Run(context.Background(), Request{Universe: []string{"A"}, Benchmark: "IDX", Config: testConfig(2, 1)})
		assert.ErrorIs(t, err, domain.ErrDataUnavailable)
		assert.Equal(t, []events.EventType{events.BacktestFailed}, drain(ch))
	})
}
