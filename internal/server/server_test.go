package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/portfin/internal/database"
	"github.com/aristath/portfin/internal/domain"
	"github.com/aristath/portfin/internal/events"
	"github.com/aristath/portfin/internal/modules/backtest"
	"github.com/aristath/portfin/internal/modules/history"
	testutil "github.com/aristath/portfin/internal/testing"
)

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, req backtest.Request) (*backtest.Run, error) {
	return &backtest.Run{ID: "r1", Name: req.Name}, nil
}

type stubRuns struct{}

func (stubRuns) Get(_ context.Context, id string) (*backtest.Run, error) {
	if id != "r1" {
		return nil, domain.ErrNotFound
	}
	return &backtest.Run{ID: "r1"}, nil
}

func (stubRuns) List(context.Context, int) ([]backtest.Run, error) { return nil, nil }

func (stubRuns) Delete(context.Context, string) error { return nil }

type noopSyncer struct{}

func (noopSyncer) Sync(_ context.Context, symbols []string, _ time.Time) (history.SyncResult, error) {
	return history.SyncResult{Synced: symbols}, nil
}

type blockingJob struct {
	release chan struct{}
	done    chan struct{}
}

func (b *blockingJob) Name() string { return "sync_prices" }

func (b *blockingJob) Run() error {
	<-b.release
	close(b.done)
	return nil
}

func newTestServer(t *testing.T) (*Server, *events.Bus) {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	bus := events.NewBus(log)
	historyDB := testutil.NewTestDB(t, database.NameHistory)
	s := New(Config{
		Log:         log,
		Port:        0,
		DevMode:     true,
		DataDir:     t.TempDir(),
		Databases:   []*database.DB{historyDB, testutil.NewTestDB(t, database.NameResults)},
		EventBus:    bus,
		Backtests:   stubRunner{},
		Runs:        stubRuns{},
		PriceSyncer: noopSyncer{},
		PriceStore:  history.NewPriceRepository(historyDB.Conn(), log),
	})
	s.systemHandlers.cpuSample = func() (float64, error) { return 12.5, nil }
	return s, bus
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "portfin", body["service"])
}

func TestSystemStatus(t *testing.T) {
	s, _ := newTestServer(t)
	s.SetJobs(&blockingJob{})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var status SystemStatusResponse
	decode(t, w, &status)
	assert.Equal(t, 12.5, status.CPUPercent)
	assert.Equal(t, []string{"history", "results"}, status.Databases)
	assert.Equal(t, []string{"sync_prices"}, status.Jobs)
}

func TestDatabaseStats(t *testing.T) {
	s, _ := newTestServer(t)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/system/database/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var stats DatabaseStatsResponse
	decode(t, w, &stats)
	require.Len(t, stats.Databases, 2)
	for _, db := range stats.Databases {
		assert.True(t, db.Healthy, db.Name)
		assert.Positive(t, db.Pages, db.Name)
	}
}

func TestTriggerJob(t *testing.T) {
	s, _ := newTestServer(t)
	job := &blockingJob{release: make(chan struct{}), done: make(chan struct{})}
	s.SetJobs(job)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/jobs/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/jobs/sync_prices", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/jobs/sync_prices", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	close(job.release)
	<-job.done
	s.systemHandlers.Wait()

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	var listing map[string][]string
	decode(t, w, &listing)
	assert.Equal(t, []string{"sync_prices"}, listing["jobs"])
	assert.Empty(t, listing["running"])
}

func TestBacktestRoutesMounted(t *testing.T) {
	s, _ := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/backtests/r1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	body := `{"universe":["VTI"],"benchmark":"SPY"}`
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/backtests", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestEventsStream(t *testing.T) {
	s, bus := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events/stream?types=year_completed"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	bus.Publish("backtest", &events.BacktestStartedData{RunName: "filtered out"})
	bus.Publish("backtest", &events.YearCompletedData{RunName: "demo", Year: 1, Years: 2, Capital: 1100})

	var got map[string]interface{}
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, string(events.YearCompleted), got["type"])
	data := got["data"].(map[string]interface{})
	assert.Equal(t, "demo", data["run_name"])
}

func TestBacktestStreamForwardsOnlyBacktestEvents(t *testing.T) {
	s, bus := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/backtests/stream", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	bus.Publish("history", &events.PricesSyncedData{})
	bus.Publish("backtest", &events.BacktestCompletedData{RunID: "r1"})

	var got map[string]interface{}
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, string(events.BacktestCompleted), got["type"])
}

func TestHistoryRoutesMounted(t *testing.T) {
	s, _ := newTestServer(t)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/history/sync", strings.NewReader(`{"symbols":["SPY"]}`)))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParseTypes(t *testing.T) {
	assert.Nil(t, parseTypes(""))
	assert.Equal(t, map[events.EventType]bool{events.BacktestFailed: true, events.PricesSynced: true},
		parseTypes(" backtest_failed,PRICES_SYNCED, "))
}
