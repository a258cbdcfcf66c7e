package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all investment routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/investments", func(r chi.Router) {
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.HandleListTransactions)
			r.Post("/", h.HandleCreateTransaction)
			r.Delete("/{id}", h.HandleDeleteTransaction)
		})
		r.Get("/positions", h.HandleGetPositions) // Open positions at cost
		r.Get("/summary", h.HandleGetSummary)     // Positions at live prices with totals
	})
}
