package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/market-basket/market-basket/internal/analytics"
	jobmetrics "github.com/market-basket/market-basket/internal/jobs"
	"github.com/market-basket/market-basket/internal/products"
	"github.com/market-basket/market-basket/internal/recommend"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

type fakeConfirmer struct {
	carts [][]string
	err   error
}

func (f *fakeConfirmer) ConfirmPurchase(ctx context.Context, cart []string) error {
	f.carts = append(f.carts, cart)
	return f.err
}

func TestConfirmPurchaseJobDelivers(t *testing.T) {
	confirmer := &fakeConfirmer{}
	job := NewConfirmPurchaseJob(confirmer, quietLogger(), testMetrics())

	task, err := NewConfirmPurchaseTask(recommend.Confirmation{PurchaseID: 1000, Cart: []string{"milk", "bread", "bread"}})
	require.NoError(t, err)
	require.Equal(t, TaskConfirmPurchase, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, [][]string{{"milk", "bread", "bread"}}, confirmer.carts)
}

func TestConfirmPurchaseJobReturnsUpstreamError(t *testing.T) {
	confirmer := &fakeConfirmer{err: errors.New("503")}
	job := NewConfirmPurchaseJob(confirmer, quietLogger(), testMetrics())

	task, err := NewConfirmPurchaseTask(recommend.Confirmation{PurchaseID: 1001, Cart: []string{"milk"}})
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}

func TestConfirmPurchaseJobSkipsBadPayloads(t *testing.T) {
	confirmer := &fakeConfirmer{}
	job := NewConfirmPurchaseJob(confirmer, quietLogger(), testMetrics())

	err := job.Handle(context.Background(), asynq.NewTask(TaskConfirmPurchase, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	empty, err := NewConfirmPurchaseTask(recommend.Confirmation{PurchaseID: 1002})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), empty))
	require.Empty(t, confirmer.carts)
}

type recordingWarmer struct {
	mu      sync.Mutex
	calls   []string
	failOn  string
	windows []analytics.Range
}

func (r *recordingWarmer) record(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	if name == r.failOn {
		return errors.New("boom")
	}
	return nil
}

func (r *recordingWarmer) Detail(ctx context.Context, window analytics.Range) (analytics.Detail, error) {
	r.windows = append(r.windows, window)
	return analytics.Detail{}, r.record("detail")
}

func (r *recordingWarmer) SalesSeries(ctx context.Context, period string) ([]analytics.SeriesPoint, error) {
	return nil, r.record("series:" + period)
}

func (r *recordingWarmer) Stats(ctx context.Context) (analytics.Stats, error) {
	return analytics.Stats{}, r.record("stats")
}

func (r *recordingWarmer) RecentPurchases(ctx context.Context, limit int) ([]analytics.RecentPurchase, error) {
	return nil, r.record("recent")
}

func (r *recordingWarmer) TopSellers(ctx context.Context, limit int) ([]products.AdminProduct, error) {
	return nil, r.record("top")
}

func TestAnalyticsWarmupWarmsEveryWidget(t *testing.T) {
	warmer := &recordingWarmer{}
	job := NewAnalyticsWarmupJob(warmer, quietLogger(), testMetrics())
	job.clock = func() time.Time { return time.Date(2024, 5, 31, 3, 0, 0, 0, time.UTC) }

	task, err := NewAnalyticsWarmupTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []string{"stats", "recent", "top", "detail", "series:week", "series:month", "series:year"}, warmer.calls)
	require.Equal(t, "2024-05-01", warmer.windows[0].From().Format(analytics.DayLayout))
}

func TestAnalyticsWarmupStopsOnError(t *testing.T) {
	warmer := &recordingWarmer{failOn: "top"}
	job := NewAnalyticsWarmupJob(warmer, quietLogger(), testMetrics())

	task, err := NewAnalyticsWarmupTask(analytics.PeriodYear)
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
	require.Equal(t, []string{"stats", "recent", "top"}, warmer.calls)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault, Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestClientNotifyPurchaseQueuesConfirmation(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := NewClientWith(enq, quietLogger())

	require.NoError(t, client.NotifyPurchase(context.Background(), recommend.Confirmation{PurchaseID: 1000, Cart: []string{"milk"}}))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, TaskConfirmPurchase, enq.tasks[0].Type())

	var payload ConfirmPurchasePayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, ConfirmPurchasePayload{PurchaseID: 1000, Cart: []string{"milk"}}, payload)

	enq.err = errors.New("redis down")
	require.Error(t, client.NotifyPurchase(context.Background(), recommend.Confirmation{PurchaseID: 1001, Cart: []string{"milk"}}))
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestHealthReportsQueueDepth(t *testing.T) {
	serve := func(inspector QueueInspector) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", NewHandler(inspector, quietLogger()).MountRoutes)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rec
	}

	rec := serve(nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"failed":0}`, rec.Body.String())

	rec = serve(fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Active: 1, Archived: 2}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":3,"active":1,"failed":2}`, rec.Body.String())

	rec = serve(fakeInspector{err: errors.New("unreachable")})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakeCleaner struct {
	olderThan time.Duration
	err       error
}

func (f *fakeCleaner) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return 3, f.err
}

func TestIdempotencyCleanupRetention(t *testing.T) {
	cleaner := &fakeCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, quietLogger(), testMetrics())

	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, DefaultKeyRetention, cleaner.olderThan)

	task, err = NewIdempotencyCleanupTask(24 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 24*time.Hour, cleaner.olderThan)

	cleaner.err = errors.New("db down")
	require.Error(t, job.Handle(context.Background(), task))

	bad := asynq.NewTask(TaskIdempotencyCleanup, []byte("{"))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}
