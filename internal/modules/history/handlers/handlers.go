// Package handlers provides HTTP handlers for price history.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/portfin/internal/modules/history"
)

const dateLayout = "2006-01-02"

// Syncer pulls new bars from the market data source.
type Syncer interface {
	Sync(ctx context.Context, symbols []string, since time.Time) (history.SyncResult, error)
}

// Store reads and imports stored history.
type Store interface {
	Symbols(ctx context.Context) ([]string, error)
	Range(ctx context.Context, symbol string, start, end time.Time) ([]history.Bar, error)
	ImportCSV(ctx context.Context, symbol string, r io.Reader) (int, error)
}

// SyncRequest is the optional body of POST /api/history/sync
type SyncRequest struct {
	Symbols []string `json:"symbols"`
	Since   string   `json:"since"`
}

type barResponse struct {
	Date     string  `json:"date"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adj_close,omitempty"`
}

// Handler handles price history HTTP requests
type Handler struct {
	syncer       Syncer
	store        Store
	defaultSince time.Time
	log          zerolog.Logger
}

// NewHandler creates a new history handler. defaultSince applies to symbols
// with no stored history when a sync request names no start.
func NewHandler(syncer Syncer, store Store, defaultSince time.Time, log zerolog.Logger) *Handler {
	return &Handler{
		syncer:       syncer,
		store:        store,
		defaultSince: defaultSince,
		log:          log.With().Str("handler", "history").Logger(),
	}
}

// HandleSync handles POST /api/history/sync
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	since := h.defaultSince
	if req.Since != "" {
		t, err := time.Parse(dateLayout, req.Since)
		if err != nil {
			http.Error(w, "since must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		since = t
	}

	symbols := req.Symbols
	if len(symbols) == 0 {
		stored, err := h.store.Symbols(r.Context())
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to list symbols")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		symbols = stored
	}
	if len(symbols) == 0 {
		http.Error(w, "no symbols to sync", http.StatusBadRequest)
		return
	}

	result, err := h.syncer.Sync(r.Context(), symbols, since)
	if err != nil {
		h.log.Error().Err(err).Msg("Price sync failed")
		h.writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error": err.Error(),
			"data":  result,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleSymbols handles GET /api/history/symbols
func (h *Handler) HandleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.store.Symbols(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"symbols": symbols,
			"count":   len(symbols),
		},
	})
}

// HandleGetBars handles GET /api/history/{symbol}?start=&end=
func (h *Handler) HandleGetBars(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	start, end := time.Time{}, time.Now().UTC()

	for name, target := range map[string]*time.Time{"start": &start, "end": &end} {
		if raw := r.URL.Query().Get(name); raw != "" {
			t, err := time.Parse(dateLayout, raw)
			if err != nil {
				http.Error(w, name+" must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			*target = t
		}
	}

	bars, err := h.store.Range(r.Context(), symbol, start, end)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]barResponse, 0, len(bars))
	for _, b := range bars {
		out = append(out, barResponse{Date: b.Date.Format(dateLayout), Close: b.Close, AdjClose: b.AdjClose})
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"symbol": symbol,
			"bars":   out,
		},
	})
}

// HandleImport handles POST /api/history/{symbol}/import with a CSV body
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	rows, err := h.store.ImportCSV(r.Context(), symbol, r.Body)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("CSV import failed")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.log.Info().Str("symbol", symbol).Int("rows", rows).Msg("CSV imported")
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": map[string]interface{}{
			"symbol": symbol,
			"rows":   rows,
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
