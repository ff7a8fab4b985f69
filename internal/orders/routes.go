package orders

import "github.com/go-chi/chi/v5"

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.submit)
	r.Get("/{id}", h.show)
}
