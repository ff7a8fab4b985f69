package products

import "github.com/go-chi/chi/v5"

// MountRoutes registers the public catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
}

// MountAdminRoutes registers product management routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/", h.adminList)
	r.Post("/", h.create)
	r.Get("/{id}", h.adminShow)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}
