package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/market-basket/market-basket/internal/recommend"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskConfirmPurchase reports a committed order to the recommendation service.
	TaskConfirmPurchase = "recommend:confirm_purchase"
	// TaskAnalyticsWarmup pre-populates the admin analytics cache.
	TaskAnalyticsWarmup = "analytics:warmup"
	// TaskIdempotencyCleanup prunes expired order idempotency keys.
	TaskIdempotencyCleanup = "orders:idempotency_cleanup"
)

// confirmTimeout bounds one confirmation attempt inside the worker.
const confirmTimeout = 10 * time.Second

// ConfirmPurchasePayload is the queued form of recommend.Confirmation.
type ConfirmPurchasePayload struct {
	PurchaseID int64    `json:"purchaseId"`
	Cart       []string `json:"cart"`
}

// NewConfirmPurchaseTask constructs a confirmation task. Confirmations are
// fire-and-forget: the task is never retried.
func NewConfirmPurchaseTask(c recommend.Confirmation) (*asynq.Task, error) {
	data, err := json.Marshal(ConfirmPurchasePayload{PurchaseID: c.PurchaseID, Cart: c.Cart})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskConfirmPurchase, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(0),
		asynq.Timeout(confirmTimeout),
	), nil
}

// AnalyticsWarmupPayload selects the series periods to warm.
type AnalyticsWarmupPayload struct {
	Periods []string `json:"periods,omitempty"`
}

// NewAnalyticsWarmupTask constructs an analytics warmup task.
func NewAnalyticsWarmupTask(periods ...string) (*asynq.Task, error) {
	data, err := json.Marshal(AnalyticsWarmupPayload{Periods: periods})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsWarmup, data, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload overrides the key retention.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retentionHours,omitempty"`
}

// NewIdempotencyCleanupTask constructs a key cleanup task. Zero retention
// uses the job default.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}
