package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/market-basket/market-basket/internal/analytics"
	jobmetrics "github.com/market-basket/market-basket/internal/jobs"
	"github.com/market-basket/market-basket/internal/products"
)

// warmupTopSize matches the storefront's top sellers widget.
const warmupTopSize = 4

// AnalyticsWarmer is the subset of analytics.Service the warmup touches.
type AnalyticsWarmer interface {
	Detail(ctx context.Context, window analytics.Range) (analytics.Detail, error)
	SalesSeries(ctx context.Context, period string) ([]analytics.SeriesPoint, error)
	Stats(ctx context.Context) (analytics.Stats, error)
	RecentPurchases(ctx context.Context, limit int) ([]analytics.RecentPurchase, error)
	TopSellers(ctx context.Context, limit int) ([]products.AdminProduct, error)
}

type warmupStep struct {
	name string
	run  func(context.Context) error
}

// AnalyticsWarmupJob pre-populates the analytics cache for the dashboard.
type AnalyticsWarmupJob struct {
	Analytics AnalyticsWarmer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewAnalyticsWarmupJob wires dependencies for the warmup handler.
func NewAnalyticsWarmupJob(svc AnalyticsWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnalyticsWarmupJob {
	return &AnalyticsWarmupJob{
		Analytics: svc,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes analytics warmup tasks.
func (j *AnalyticsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Analytics == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	var payload AnalyticsWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("analytics warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if len(payload.Periods) == 0 {
		payload.Periods = []string{analytics.PeriodWeek, analytics.PeriodMonth, analytics.PeriodYear}
	}

	tracker := j.metrics().Track(TaskAnalyticsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := j.now()
	logger.Info("starting analytics warmup", slog.Any("periods", payload.Periods))

	// One deadline covers every step.
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	steps := []warmupStep{
		{"stats", func(ctx context.Context) error { _, err := j.Analytics.Stats(ctx); return err }},
		{"recent", func(ctx context.Context) error { _, err := j.Analytics.RecentPurchases(ctx, analytics.RecentLimit); return err }},
		{"top", func(ctx context.Context) error { _, err := j.Analytics.TopSellers(ctx, warmupTopSize); return err }},
		{"detail", func(ctx context.Context) error {
			window, err := analytics.ParseRange("", "", start)
			if err != nil {
				return err
			}
			_, err = j.Analytics.Detail(ctx, window)
			return err
		}},
	}
	for _, period := range payload.Periods {
		steps = append(steps, warmupStep{"series:" + period, func(ctx context.Context) error {
			_, err := j.Analytics.SalesSeries(ctx, period)
			return err
		}})
	}

	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			resultErr = err
			logger.Error("warm analytics", slog.String("step", step.name), slog.Any("error", err))
			return resultErr
		}
	}

	logger.Info("completed analytics warmup", slog.Int("steps", len(steps)), slog.Duration("duration", j.now().Sub(start)))
	return resultErr
}

func (j *AnalyticsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAnalyticsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAnalyticsWarmup))
}

func (j *AnalyticsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AnalyticsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
