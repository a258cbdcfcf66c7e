package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all benchmark routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/benchmark", func(r chi.Router) {
		r.Get("/cdi", h.HandleGetCDI) // Accumulated CDI (?days=)
	})
}
