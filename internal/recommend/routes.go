package recommend

import "github.com/go-chi/chi/v5"

// MountRoutes registers /recommendations and /top-products on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/recommendations", h.recommendations)
	r.Get("/top-products", h.topProducts)
}
