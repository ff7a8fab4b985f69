package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	analytichttp "github.com/market-basket/market-basket/internal/analytics/http"
	"github.com/market-basket/market-basket/internal/basket"
	"github.com/market-basket/market-basket/internal/observability"
	"github.com/market-basket/market-basket/internal/orders"
	"github.com/market-basket/market-basket/internal/platform/httpx"
	"github.com/market-basket/market-basket/internal/products"
	"github.com/market-basket/market-basket/internal/recommend"
	"github.com/market-basket/market-basket/jobs"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	DB               Pinger
	ProductHandler   *products.Handler
	OrderHandler     *orders.Handler
	RecommendHandler *recommend.Handler
	BasketHandler    *basket.Handler
	AnalyticsHandler *analytichttp.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with market basket defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		if params.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.DB.Ping(ctx); err != nil {
				params.Logger.Warn("healthz database ping", slog.Any("error", err))
				status["status"] = "degraded"
				status["database"] = "unreachable"
				httpx.JSON(w, http.StatusServiceUnavailable, status)
				return
			}
		}
		httpx.JSON(w, http.StatusOK, status)
	})

	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	if params.ProductHandler != nil {
		r.Route("/products", params.ProductHandler.MountRoutes)
	}
	if params.OrderHandler != nil {
		r.Route("/orders", params.OrderHandler.MountRoutes)
	}
	if params.RecommendHandler != nil {
		params.RecommendHandler.MountRoutes(r)
	}
	if params.BasketHandler != nil {
		r.Route("/basket", params.BasketHandler.MountRoutes)
	}

	r.Route("/admin", func(r chi.Router) {
		if params.ProductHandler != nil {
			r.Route("/products", params.ProductHandler.MountAdminRoutes)
		}
		if params.AnalyticsHandler != nil {
			params.AnalyticsHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported on "+r.URL.Path)
	})

	return r
}
