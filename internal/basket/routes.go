package basket

import "github.com/go-chi/chi/v5"

// MountRoutes registers the basket routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.get)
	r.Post("/", h.add)
	r.Delete("/", h.clear)
	r.Patch("/items/{productId}", h.setQuantity)
	r.Delete("/items/{productId}", h.remove)
	r.Post("/checkout", h.checkout)
	r.Get("/recommendations", h.recommendations)
}
