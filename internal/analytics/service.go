package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/market-basket/market-basket/internal/products"
	"github.com/market-basket/market-basket/internal/shared"
)

const (
	// DefaultWindowDays is the detail window used when no start date is given.
	DefaultWindowDays = 30
	// RecentLimit is the number of purchases in the recent feed.
	RecentLimit = 5
)

// Service coordinates the reducers with the repository and the cache layer.
type Service struct {
	repo   Repository
	cache  *Cache
	mode   PriceMode
	logger *slog.Logger
	now    func() time.Time
	group  singleflight.Group
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used for relative windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires a Repository with a Cache helper. A nil cache disables caching.
func NewService(repo Repository, cache *Cache, mode PriceMode, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if mode != PriceLive {
		mode = PriceSnapshot
	}
	s := &Service{repo: repo, cache: cache, mode: mode, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode reports the configured price mode.
func (s *Service) Mode() PriceMode { return s.mode }

// Now returns the service clock reading.
func (s *Service) Now() time.Time { return s.now() }

// ParseRange resolves the startDate/endDate query values. The end defaults
// to today and the start to DefaultWindowDays before the end.
func ParseRange(startRaw, endRaw string, now time.Time) (Range, error) {
	end := now.UTC()
	if strings.TrimSpace(endRaw) != "" {
		t, err := parseDay(endRaw)
		if err != nil {
			return Range{}, shared.Validationf("endDate %q is not a valid date", endRaw)
		}
		end = t
	}
	start := end.AddDate(0, 0, -DefaultWindowDays)
	if strings.TrimSpace(startRaw) != "" {
		t, err := parseDay(startRaw)
		if err != nil {
			return Range{}, shared.Validationf("startDate %q is not a valid date", startRaw)
		}
		start = t
	}
	window := Range{Start: start, End: end}
	if window.From().After(window.To()) {
		return Range{}, shared.Validationf("startDate must not be after endDate")
	}
	return window, nil
}

func parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(DayLayout, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// Detail computes the analytics payload for window.
func (s *Service) Detail(ctx context.Context, window Range) (Detail, error) {
	var out Detail
	err := s.cached(ctx, keyDetail(s.mode, window), &out, func(ctx context.Context) (any, error) {
		rows, err := s.repo.Lines(ctx, window.From(), window.To())
		if err != nil {
			return nil, shared.Persistence("analytics detail", err)
		}
		return BuildDetail(rows, window, s.mode), nil
	})
	return out, err
}

// SalesSeries returns the bucketed chart data for period.
func (s *Service) SalesSeries(ctx context.Context, period string) ([]SeriesPoint, error) {
	now := s.now()
	window, _, period := SeriesWindow(period, now)
	var out []SeriesPoint
	err := s.cached(ctx, keySeries(s.mode, period, now), &out, func(ctx context.Context) (any, error) {
		rows, err := s.repo.Lines(ctx, window.From(), window.To())
		if err != nil {
			return nil, shared.Persistence("analytics sales series", err)
		}
		return BuildSeries(rows, period, now, s.mode), nil
	})
	return out, err
}

// Stats returns the all-time dashboard counters.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	err := s.cached(ctx, keyStats(s.mode), &out, func(ctx context.Context) (any, error) {
		count, err := s.repo.CountProducts(ctx)
		if err != nil {
			return nil, shared.Persistence("analytics count products", err)
		}
		rows, err := s.repo.Lines(ctx, time.Time{}, time.Time{})
		if err != nil {
			return nil, shared.Persistence("analytics stats", err)
		}
		return BuildStats(rows, count, s.mode), nil
	})
	return out, err
}

// RecentPurchases returns the newest limit purchases with their lines.
func (s *Service) RecentPurchases(ctx context.Context, limit int) ([]RecentPurchase, error) {
	if limit <= 0 {
		limit = RecentLimit
	}
	var out []RecentPurchase
	err := s.cached(ctx, keyRecent(s.mode, limit), &out, func(ctx context.Context) (any, error) {
		rows, err := s.repo.RecentLines(ctx, limit)
		if err != nil {
			return nil, shared.Persistence("analytics recent purchases", err)
		}
		return BuildRecent(rows, s.mode), nil
	})
	return out, err
}

// TopSellers returns the best selling products by quantity.
func (s *Service) TopSellers(ctx context.Context, limit int) ([]products.AdminProduct, error) {
	var out []products.AdminProduct
	err := s.cached(ctx, keyTop(limit), &out, func(ctx context.Context) (any, error) {
		top, err := s.repo.TopSellers(ctx, limit)
		if err != nil {
			return nil, shared.Persistence("analytics top sellers", err)
		}
		if top == nil {
			top = []products.AdminProduct{}
		}
		return top, nil
	})
	return out, err
}

// Bump invalidates every cached analytics payload.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// cached serves key from the cache, collapsing concurrent fills of the same
// key into one load. Cache failures degrade to a direct load.
func (s *Service) cached(ctx context.Context, key string, dest any, load func(context.Context) (any, error)) error {
	full, err := s.cache.BuildKey(ctx, key)
	if err != nil {
		s.logger.Warn("analytics cache version unavailable", slog.String("key", key), slog.Any("error", err))
		full = key
	}
	raw, err, _ := s.group.Do(full, func() (any, error) {
		var loadErr error
		var payload json.RawMessage
		err := s.cache.FetchJSON(ctx, full, &payload, func(ctx context.Context) (any, error) {
			v, err := load(ctx)
			loadErr = err
			return v, err
		})
		if err == nil || loadErr != nil {
			return payload, err
		}
		s.logger.Warn("analytics cache unavailable", slog.String("key", full), slog.Any("error", err))
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return err
	}
	switch b := raw.(type) {
	case json.RawMessage:
		return json.Unmarshal(b, dest)
	case []byte:
		return json.Unmarshal(b, dest)
	}
	return nil
}
