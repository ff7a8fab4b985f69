package recommend

import (
	"log/slog"
	"net/http"

	"github.com/market-basket/market-basket/internal/platform/httpx"
)

// Handler serves the recommendation proxy and the top sellers list.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a recommendation handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type proxyItem struct {
	Product struct {
		Name string `json:"name"`
	} `json:"product"`
	Quantity int `json:"quantity"`
}

type proxyRequest struct {
	Items []proxyItem `json:"items"`
}

// recommendations forwards the basket names upstream. Failures keep the
// {"error", "details"} shape with status 500 that storefront clients expect.
func (h *Handler) recommendations(w http.ResponseWriter, r *http.Request) {
	var req proxyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSON(w, http.StatusInternalServerError, httpx.ErrorBody{Error: "Failed to fetch recommendations", Details: err.Error()})
		return
	}
	cart := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		cart = append(cart, item.Product.Name)
	}
	names, err := h.service.Names(r.Context(), cart)
	if err != nil {
		h.logger.Error("fetch recommendations failed", "error", err, "cart_size", len(cart))
		httpx.JSON(w, http.StatusInternalServerError, httpx.ErrorBody{Error: "Failed to fetch recommendations", Details: err.Error()})
		return
	}
	httpx.JSON(w, http.StatusOK, names)
}

func (h *Handler) topProducts(w http.ResponseWriter, r *http.Request) {
	top, err := h.service.TopProducts(r.Context())
	if err != nil {
		h.logger.Error("top products failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, top)
}
