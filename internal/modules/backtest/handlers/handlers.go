// Package handlers provides HTTP handlers for backtest runs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/portfin/internal/domain"
	"github.com/aristath/portfin/internal/modules/backtest"
)

const defaultListLimit = 50

// Runner executes backtests.
type Runner interface {
	Run(ctx context.Context, req backtest.Request) (*backtest.Run, error)
}

// RunRepository reads and deletes stored runs.
type RunRepository interface {
	Get(ctx context.Context, id string) (*backtest.Run, error)
	List(ctx context.Context, limit int) ([]backtest.Run, error)
	Delete(ctx context.Context, id string) error
}

// Handler handles backtest HTTP requests
type Handler struct {
	runner Runner
	runs   RunRepository
	stream http.Handler
	log    zerolog.Logger
}

// NewHandler creates a new backtest handler
func NewHandler(runner Runner, runs RunRepository, log zerolog.Logger) *Handler {
	return &Handler{
		runner: runner,
		runs:   runs,
		log:    log.With().Str("handler", "backtest").Logger(),
	}
}

// SetStream mounts a progress stream at GET /api/backtests/stream
func (h *Handler) SetStream(stream http.Handler) {
	h.stream = stream
}

// HandleCreate handles POST /api/backtests
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req := backtest.Request{Config: backtest.DefaultConfig()}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	run, err := h.runner.Run(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": run,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleList handles GET /api/backtests
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"runs":  runs,
			"count": len(runs),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGet handles GET /api/backtests/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": run,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDelete handles DELETE /api/backtests/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.runs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, domain.ErrMissingObjective),
		errors.Is(err, domain.ErrUnsupportedOption):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDataUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Backtest request failed")
	}
	h.writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
