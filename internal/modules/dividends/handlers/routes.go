package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all dividend routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/dividends", func(r chi.Router) {
		r.Get("/summaries", h.HandleGetSummaries)      // Bulk summaries (?symbols=)
		r.Get("/{symbol}", h.HandleGetHistory)         // Raw events (?from=&to=)
		r.Get("/{symbol}/summary", h.HandleGetSummary) // Totals over ?months=
	})
}
