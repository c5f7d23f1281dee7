package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfin/internal/database"
	"github.com/aristath/portfin/internal/modules/history"
	testutil "github.com/aristath/portfin/internal/testing"
)

type recordingSyncer struct {
	symbols []string
	since   time.Time
	err     error
}

func (r *recordingSyncer) Sync(_ context.Context, symbols []string, since time.Time) (history.SyncResult, error) {
	r.symbols, r.since = symbols, since
	return history.SyncResult{Rows: 2, Synced: symbols}, r.err
}

func newRouter(t *testing.T, syncer Syncer) (http.Handler, *history.PriceRepository) {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	db := testutil.NewTestDB(t, database.NameHistory)
	repo := history.NewPriceRepository(db.Conn(), logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		NewHandler(syncer, repo, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), logger).RegisterRoutes(r)
	})
	return r, repo
}

const vtiCSV = "date,close,adj_close\n2020-01-02,164.8,150.1\n2020-01-03,163.7,149.2\n"

func TestImportAndRead(t *testing.T) {
	router, _ := newRouter(t, &recordingSyncer{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/history/vti/import", strings.NewReader(vtiCSV)))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history/VTI?start=2020-01-03", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Data struct {
			Symbol string        `json:"symbol"`
			Bars   []barResponse `json:"bars"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "VTI", response.Data.Symbol)
	assert.Equal(t, []barResponse{{Date: "2020-01-03", Close: 163.7, AdjClose: 149.2}}, response.Data.Bars)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history/symbols", nil))
	assert.Contains(t, w.Body.String(), `"VTI"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history/VTI?end=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImport_BadCSV(t *testing.T) {
	router, _ := newRouter(t, &recordingSyncer{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/history/VTI/import", strings.NewReader("date,close\nnot-a-date,1\n")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSync(t *testing.T) {
	syncer := &recordingSyncer{}
	router, repo := newRouter(t, syncer)

	// nothing stored and nothing named
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/history/sync", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/history/sync",
		strings.NewReader(`{"symbols":["SPY"],"since":"2015-06-01"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"SPY"}, syncer.symbols)
	assert.Equal(t, time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC), syncer.since)

	_, err := repo.ImportCSV(context.Background(), "VTI", strings.NewReader(vtiCSV))
	require.NoError(t, err)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/history/sync", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"VTI"}, syncer.symbols)
	assert.Equal(t, 2000, syncer.since.Year())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/history/sync", strings.NewReader(`{"since":"June"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	syncer.err = errors.New("all symbols failed")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/history/sync", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
