package analytichttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/market-basket/market-basket/internal/analytics"
	"github.com/market-basket/market-basket/internal/products"
	"github.com/market-basket/market-basket/internal/shared"
)

type stubService struct {
	mu         sync.Mutex
	detail     analytics.Detail
	series     []analytics.SeriesPoint
	stats      analytics.Stats
	recent     []analytics.RecentPurchase
	top        []products.AdminProduct
	err        error
	lastWindow analytics.Range
	lastPeriod string
	lastLimit  int
}

func (s *stubService) Detail(ctx context.Context, window analytics.Range) (analytics.Detail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastWindow = window
	return s.detail, s.err
}

func (s *stubService) SalesSeries(ctx context.Context, period string) ([]analytics.SeriesPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPeriod = period
	return s.series, s.err
}

func (s *stubService) Stats(ctx context.Context) (analytics.Stats, error) {
	return s.stats, s.err
}

func (s *stubService) RecentPurchases(ctx context.Context, limit int) ([]analytics.RecentPurchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = limit
	return s.recent, s.err
}

func (s *stubService) TopSellers(ctx context.Context, limit int) ([]products.AdminProduct, error) {
	return s.top, s.err
}

func newTestRouter(svc AnalyticsService) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	h.WithNow(func() time.Time { return time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC) })
	r := chi.NewRouter()
	r.Route("/admin", h.MountRoutes)
	return r
}

func doGet(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "203.0.113.7:4321"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleStats(t *testing.T) {
	svc := &stubService{stats: analytics.Stats{
		TotalProducts:     3,
		TotalSales:        5,
		TotalRevenue:      decimal.NewFromInt(35),
		TopSellingProduct: "Bread",
		TotalPurchases:    2,
	}}
	rec := doGet(t, newTestRouter(svc), "/admin/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, float64(35), body["totalRevenue"])
	require.Equal(t, "Bread", body["topSellingProduct"])
	require.Equal(t, float64(2), body["totalPurchases"])
}

func TestHandleDetailParsesDates(t *testing.T) {
	svc := &stubService{detail: analytics.Detail{TotalOrders: 2}}
	rec := doGet(t, newTestRouter(svc), "/admin/detail?startDate=2024-01-01&endDate=2024-01-02")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2024-01-01", svc.lastWindow.From().Format(analytics.DayLayout))
	require.Equal(t, "2024-01-02", svc.lastWindow.To().Format(analytics.DayLayout))

	rec = doGet(t, newTestRouter(svc), "/admin/detail")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2024-01-01", svc.lastWindow.From().Format(analytics.DayLayout))
	require.Equal(t, "2024-01-31", svc.lastWindow.To().Format(analytics.DayLayout))
}

func TestHandleDetailRejectsBadDates(t *testing.T) {
	rec := doGet(t, newTestRouter(&stubService{}), "/admin/detail?startDate=nope")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "startDate")
}

func TestHandleSalesDataPassesPeriod(t *testing.T) {
	svc := &stubService{series: []analytics.SeriesPoint{{Date: "2024-01", Sales: decimal.NewFromInt(4), Orders: 1}}}
	rec := doGet(t, newTestRouter(svc), "/admin/sales-data?period=year")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "year", svc.lastPeriod)
	require.JSONEq(t, `[{"date":"2024-01","sales":4,"orders":1}]`, rec.Body.String())
}

func TestHandleRecentPurchases(t *testing.T) {
	svc := &stubService{recent: []analytics.RecentPurchase{}}
	rec := doGet(t, newTestRouter(svc), "/admin/recent-purchases")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, analytics.RecentLimit, svc.lastLimit)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandleDashboardLoadsAllWidgets(t *testing.T) {
	svc := &stubService{
		stats:  analytics.Stats{TotalProducts: 1, TotalRevenue: decimal.Zero},
		series: []analytics.SeriesPoint{},
		recent: []analytics.RecentPurchase{},
		top:    []products.AdminProduct{{Product: products.Product{ID: 7, Name: "Milk", Price: decimal.NewFromInt(2)}, Purchases: 9}},
		detail: analytics.Detail{StartDate: "2024-01-01", EndDate: "2024-01-31", TotalOrders: 2},
	}
	rec := doGet(t, newTestRouter(svc), "/admin/dashboard?period=month&startDate=2024-01-01&endDate=2024-01-31")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Stats       analytics.Stats `json:"stats"`
		TopProducts []struct {
			ID        int64 `json:"id"`
			Purchases int64 `json:"purchases"`
		} `json:"topProducts"`
		Detail struct {
			StartDate   string `json:"startDate"`
			TotalOrders int64  `json:"totalOrders"`
		} `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "2024-01-01", body.Detail.StartDate)
	require.Equal(t, int64(2), body.Detail.TotalOrders)
	require.Equal(t, "2024-01-01", svc.lastWindow.From().Format(analytics.DayLayout))
	require.Equal(t, int64(1), body.Stats.TotalProducts)
	require.Len(t, body.TopProducts, 1)
	require.Equal(t, int64(9), body.TopProducts[0].Purchases)
	require.Equal(t, "month", svc.lastPeriod)
}

func TestHandleDashboardRejectsBadRange(t *testing.T) {
	rec := doGet(t, newTestRouter(&stubService{}), "/admin/dashboard?startDate=2024-02-01&endDate=2024-01-01")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceErrorsMapToProblems(t *testing.T) {
	svc := &stubService{err: shared.Persistence("analytics stats", errors.New("db down"))}
	rec := doGet(t, newTestRouter(svc), "/admin/dashboard")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	require.NotContains(t, rec.Body.String(), "db down")
}

func TestHandleDetailCSV(t *testing.T) {
	svc := &stubService{detail: analytics.Detail{
		StartDate:         "2024-01-01",
		EndDate:           "2024-01-02",
		TotalRevenue:      decimal.NewFromInt(35),
		AverageOrderValue: decimal.RequireFromString("17.5"),
	}}
	rec := doGet(t, newTestRouter(svc), "/admin/detail.csv?startDate=2024-01-01&endDate=2024-01-02")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "sales-detail-2024-01-01-2024-01-02.csv")
	require.True(t, strings.HasPrefix(rec.Body.String(), "Metric,Value\n"))
}

func TestExportsAreRateLimited(t *testing.T) {
	router := newTestRouter(&stubService{series: []analytics.SeriesPoint{}})
	for i := 0; i < exportsPerMinute; i++ {
		rec := doGet(t, router, "/admin/sales-data.csv?period=week")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Header().Get("Content-Disposition"), "sales-week-2024-01-31.csv")
	}
	rec := doGet(t, router, "/admin/sales-data.csv?period=week")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}
