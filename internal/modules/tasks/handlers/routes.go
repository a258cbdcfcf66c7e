package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all task routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.HandleListTasks)
		r.Post("/", h.HandleCreateTask)
		r.Post("/reminders/check", h.HandleCheckReminders) // Run a reminder pass now

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetTask)
			r.Put("/", h.HandleUpdateTask)
			r.Delete("/", h.HandleDeleteTask)
			r.Post("/complete", h.HandleCompleteTask)
		})
	})
}
