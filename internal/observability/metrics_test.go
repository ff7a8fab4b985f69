package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/orders")

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `marketbasket_http_requests_total{code="418",route="/orders"} 1`)
	require.Contains(t, body, `marketbasket_http_request_duration_seconds_bucket{route="/orders"`)
}

func TestMetricsDomainCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveOrder(2)
	metrics.ObserveUpstream("recommend", "timeout")

	body := scrape(t, metrics)
	require.Contains(t, body, "marketbasket_orders_submitted_total 1")
	require.Contains(t, body, "marketbasket_order_lines_count 1")
	require.Contains(t, body, `marketbasket_recommend_upstream_calls_total{operation="recommend",outcome="timeout"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveOrder(1)
	metrics.ObserveUpstream("confirm_purchase", "ok")

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
