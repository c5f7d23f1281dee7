// Package server provides the HTTP server and routing for portfin.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/portfin/internal/database"
	"github.com/aristath/portfin/internal/events"
	backtesthandlers "github.com/aristath/portfin/internal/modules/backtest/handlers"
	historyhandlers "github.com/aristath/portfin/internal/modules/history/handlers"
	"github.com/aristath/portfin/internal/scheduler"
)

const version = "1.0.0"

// Config holds server configuration
type Config struct {
	Log         zerolog.Logger
	Port        int
	DevMode     bool
	DataDir     string
	CORSOrigins []string
	Databases   []*database.DB
	EventBus    *events.Bus
	Backtests   backtesthandlers.Runner
	Runs        backtesthandlers.RunRepository

	// History routes are mounted when both are set
	PriceSyncer  historyhandlers.Syncer
	PriceStore   historyhandlers.Store
	HistorySince time.Time
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	databases      []*database.DB
	eventBus       *events.Bus
	systemHandlers *SystemHandlers
	backtests      *backtesthandlers.Handler
	history        *historyhandlers.Handler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		port:           cfg.Port,
		databases:      cfg.Databases,
		eventBus:       cfg.EventBus,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.DataDir, cfg.Databases),
	}
	if cfg.Backtests != nil && cfg.Runs != nil {
		s.backtests = backtesthandlers.NewHandler(cfg.Backtests, cfg.Runs, cfg.Log)
		if cfg.EventBus != nil {
			s.backtests.SetStream(NewEventsStreamHandler(cfg.EventBus, cfg.Log,
				events.BacktestStarted, events.YearCompleted, events.BacktestCompleted, events.BacktestFailed))
		}
	}
	if cfg.PriceSyncer != nil && cfg.PriceStore != nil {
		s.history = historyhandlers.NewHandler(cfg.PriceSyncer, cfg.PriceStore, cfg.HistorySince, cfg.Log)
	}

	s.setupMiddleware(cfg.DevMode, cfg.CORSOrigins)
	s.setupRoutes()

	// No write timeout: backtests run inside the request and streams are long-lived.
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// SetJobs registers job instances for manual triggering via API
func (s *Server) SetJobs(jobs ...scheduler.Job) {
	s.systemHandlers.SetJobs(jobs...)
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool, origins []string) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5, "application/json"))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		if s.eventBus != nil {
			r.Get("/events/stream", NewEventsStreamHandler(s.eventBus, s.log).ServeHTTP)
		}

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.systemHandlers.HandleListJobs)
			r.Post("/{name}", s.systemHandlers.HandleTriggerJob)
		})

		if s.backtests != nil {
			s.backtests.RegisterRoutes(r)
		}
		if s.history != nil {
			s.history.RegisterRoutes(r)
		}
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
