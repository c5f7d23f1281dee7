package server

import (
	"net/http"
	"time"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	for _, db := range s.databases {
		if err := db.HealthCheck(r.Context()); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("Health check failed")
			status, code = "degraded", http.StatusServiceUnavailable
			break
		}
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":  status,
		"version": version,
		"service": "portfin",
		"time":    time.Now().Format(time.RFC3339),
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data, s.log)
}
