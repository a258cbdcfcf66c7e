package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all aggregation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/aggregation", func(r chi.Router) {
		r.Post("/connect-token", h.HandleCreateConnectToken)
		r.Get("/portfolio", h.HandleGetPortfolios) // Several items (?items=)

		r.Get("/items", h.HandleListItems)
		r.Post("/items", h.HandleRegisterItem)

		r.Route("/items/{itemID}", func(r chi.Router) {
			r.Get("/accounts", h.HandleGetAccounts)
			r.Get("/investments", h.HandleGetInvestments)
			r.Delete("/", h.HandleDeleteItem)
		})
	})
}
