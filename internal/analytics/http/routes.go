package analytichttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/market-basket/market-basket/internal/platform/httpx"
)

// exportsPerMinute bounds CSV downloads per client.
const exportsPerMinute = 10

// MountRoutes registers the sales analytics endpoints onto an /admin router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(exportsPerMinute, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export limit reached, retry later")
		}),
	)

	r.Get("/stats", h.handleStats)
	r.Get("/sales-data", h.handleSalesData)
	r.Get("/detail", h.handleDetail)
	r.Get("/recent-purchases", h.handleRecentPurchases)
	r.Get("/dashboard", h.handleDashboard)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/detail.csv", h.handleDetailCSV)
		gr.Get("/sales-data.csv", h.handleSalesCSV)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "export:" + key, nil
}
