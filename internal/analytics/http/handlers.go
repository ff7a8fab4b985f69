package analytichttp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/market-basket/market-basket/internal/analytics"
	"github.com/market-basket/market-basket/internal/analytics/export"
	"github.com/market-basket/market-basket/internal/platform/httpx"
	"github.com/market-basket/market-basket/internal/products"
)

const (
	requestTimeout   = 5 * time.Second
	dashboardTopSize = 4
)

// AnalyticsService defines the dashboard data contract used by the handler.
type AnalyticsService interface {
	Detail(ctx context.Context, window analytics.Range) (analytics.Detail, error)
	SalesSeries(ctx context.Context, period string) ([]analytics.SeriesPoint, error)
	Stats(ctx context.Context) (analytics.Stats, error)
	RecentPurchases(ctx context.Context, limit int) ([]analytics.RecentPurchase, error)
	TopSellers(ctx context.Context, limit int) ([]products.AdminProduct, error)
}

// Handler serves the admin sales analytics endpoints.
type Handler struct {
	logger  *slog.Logger
	service AnalyticsService
	csvPool sync.Pool
	now     func() time.Time
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service AnalyticsService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:  logger,
		service: service,
		now:     time.Now,
	}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// Dashboard bundles the overview widgets loaded by a single request.
type Dashboard struct {
	Stats           analytics.Stats            `json:"stats"`
	Sales           []analytics.SeriesPoint    `json:"sales"`
	RecentPurchases []analytics.RecentPurchase `json:"recentPurchases"`
	TopProducts     []products.AdminProduct    `json:"topProducts"`
	Detail          analytics.Detail           `json:"detail"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.fail(w, "load stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) handleSalesData(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	period := r.URL.Query().Get("period")
	points, err := h.service.SalesSeries(ctx, period)
	if err != nil {
		h.fail(w, "load sales series", err, slog.String("period", period))
		return
	}
	httpx.JSON(w, http.StatusOK, points)
}

func (h *Handler) handleDetail(w http.ResponseWriter, r *http.Request) {
	window, err := h.parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	detail, err := h.service.Detail(ctx, window)
	if err != nil {
		h.fail(w, "load detail", err, slog.Time("from", window.From()), slog.Time("to", window.To()))
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) handleRecentPurchases(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	recent, err := h.service.RecentPurchases(ctx, analytics.RecentLimit)
	if err != nil {
		h.fail(w, "load recent purchases", err)
		return
	}
	httpx.JSON(w, http.StatusOK, recent)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	window, err := h.parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	period := r.URL.Query().Get("period")
	data, err := h.loadDashboard(ctx, period, window)
	if err != nil {
		h.fail(w, "load dashboard", err, slog.String("period", period))
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

func (h *Handler) loadDashboard(ctx context.Context, period string, window analytics.Range) (Dashboard, error) {
	var data Dashboard
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats, err := h.service.Stats(ctx)
		if err != nil {
			return err
		}
		data.Stats = stats
		return nil
	})

	g.Go(func() error {
		points, err := h.service.SalesSeries(ctx, period)
		if err != nil {
			return err
		}
		data.Sales = points
		return nil
	})

	g.Go(func() error {
		recent, err := h.service.RecentPurchases(ctx, analytics.RecentLimit)
		if err != nil {
			return err
		}
		data.RecentPurchases = recent
		return nil
	})

	g.Go(func() error {
		top, err := h.service.TopSellers(ctx, dashboardTopSize)
		if err != nil {
			return err
		}
		data.TopProducts = top
		return nil
	})

	g.Go(func() error {
		detail, err := h.service.Detail(ctx, window)
		if err != nil {
			return err
		}
		data.Detail = detail
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return data, nil
}

func (h *Handler) handleDetailCSV(w http.ResponseWriter, r *http.Request) {
	window, err := h.parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	detail, err := h.service.Detail(ctx, window)
	if err != nil {
		h.fail(w, "load detail", err, slog.Time("from", window.From()), slog.Time("to", window.To()))
		return
	}
	filename := fmt.Sprintf("sales-detail-%s-%s.csv", detail.StartDate, detail.EndDate)
	h.writeCSV(w, filename, func(buf *bytes.Buffer) error { return export.WriteDetailCSV(buf, detail) })
}

func (h *Handler) handleSalesCSV(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	_, _, period := analytics.SeriesWindow(r.URL.Query().Get("period"), h.now())
	points, err := h.service.SalesSeries(ctx, period)
	if err != nil {
		h.fail(w, "load sales series", err, slog.String("period", period))
		return
	}
	filename := fmt.Sprintf("sales-%s-%s.csv", period, h.now().UTC().Format(analytics.DayLayout))
	h.writeCSV(w, filename, func(buf *bytes.Buffer) error { return export.WriteSeriesCSV(buf, points) })
}

func (h *Handler) writeCSV(w http.ResponseWriter, filename string, write func(*bytes.Buffer) error) {
	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := write(buf); err != nil {
		h.fail(w, "write csv", err, slog.String("file", filename))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("stream csv", slog.Any("error", err))
	}
}

func (h *Handler) parseRange(r *http.Request) (analytics.Range, error) {
	q := r.URL.Query()
	return analytics.ParseRange(q.Get("startDate"), q.Get("endDate"), h.now())
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error, attrs ...any) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, append(attrs, slog.Any("error", err))...)
	}
	httpx.RespondError(w, err)
}
