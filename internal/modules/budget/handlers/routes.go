package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all household budget routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/budget", func(r chi.Router) {
		r.Get("/report", h.HandleReport)

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", h.HandleListEntries)
			r.Post("/", h.HandleCreateEntry)
			r.Post("/import", h.HandleImportEntries)
			r.Get("/{id}", h.HandleGetEntry)
			r.Put("/{id}", h.HandleUpdateEntry)
			r.Delete("/{id}", h.HandleDeleteEntry)
		})
	})
}
