package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all history routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/history", func(r chi.Router) {
		r.Post("/sync", h.HandleSync)
		r.Get("/symbols", h.HandleSymbols)
		r.Get("/{symbol}", h.HandleGetBars)
		r.Post("/{symbol}/import", h.HandleImport)
	})
}
