package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/market-basket/market-basket/internal/jobs"
	"github.com/market-basket/market-basket/internal/recommend"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ConfirmPurchaseJob delivers queued purchase confirmations upstream.
type ConfirmPurchaseJob struct {
	Confirmer recommend.Confirmer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewConfirmPurchaseJob wires dependencies for the confirmation handler.
func NewConfirmPurchaseJob(confirmer recommend.Confirmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ConfirmPurchaseJob {
	return &ConfirmPurchaseJob{Confirmer: confirmer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskConfirmPurchase tasks.
func (j *ConfirmPurchaseJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Confirmer == nil {
		return errors.New("confirm purchase: handler not configured")
	}
	var payload ConfirmPurchasePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.metrics().AddConfirmation("skipped")
		return fmt.Errorf("confirm purchase: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	logger := j.logger().With(slog.Int64("purchase_id", payload.PurchaseID))
	if len(payload.Cart) == 0 {
		j.metrics().AddConfirmation("skipped")
		logger.Info("confirmation skipped, empty cart")
		return nil
	}

	tracker := j.metrics().Track(TaskConfirmPurchase)
	defer func() { resultErr = tracker.End(resultErr) }()

	if err := j.Confirmer.ConfirmPurchase(ctx, payload.Cart); err != nil {
		j.metrics().AddConfirmation("failed")
		logger.Warn("confirm purchase failed", slog.Int("items", len(payload.Cart)), slog.Any("error", err))
		return err
	}
	j.metrics().AddConfirmation("delivered")
	logger.Info("purchase confirmed", slog.Int("items", len(payload.Cart)))
	return nil
}

func (j *ConfirmPurchaseJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskConfirmPurchase))
	}
	return slog.Default().With(slog.String("job", TaskConfirmPurchase))
}

func (j *ConfirmPurchaseJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
