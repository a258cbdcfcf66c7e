package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all family group routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/groups", func(r chi.Router) {
		r.Get("/", h.HandleListGroups)
		r.Post("/", h.HandleCreateGroup)
		r.Post("/join", h.HandleJoinGroup) // Join by code

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetGroup)
			r.Put("/", h.HandleRenameGroup)
			r.Delete("/", h.HandleDeleteGroup)
			r.Get("/members", h.HandleListMembers)
			r.Put("/members/{userID}", h.HandleUpdateRole)
			r.Delete("/members/{userID}", h.HandleRemoveMember) // Leaving is removing yourself
		})
	})
}
