package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all market data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/market", func(r chi.Router) {
		r.Get("/quotes", h.HandleGetQuotes)            // Batch quotes (?symbols=)
		r.Get("/quotes/{symbol}", h.HandleGetQuote)    // Single quote
		r.Get("/history/{symbol}", h.HandleGetHistory) // Daily bars (?period=)
		r.Get("/search", h.HandleSearch)               // Ticker lookup (?q=)
	})
}
