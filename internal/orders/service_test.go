package orders

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/market-basket/market-basket/internal/recommend"
	"github.com/market-basket/market-basket/internal/shared"
)

// memoryStore holds committed state; memoryRepo stages writes until the
// surrounding WithTx returns nil.
type memoryStore struct {
	products     map[int64]ProductRef
	orders       map[int64]Order
	nextPurchase int64
	nextDetail   int64
	failDetailAt int
	keys         map[string]int64
	keyConflict  bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		products: map[int64]ProductRef{
			1: {ID: 1, Name: "Apples", Price: decimal.NewFromInt(10)},
			2: {ID: 2, Name: "Pears", Price: decimal.RequireFromString("5.25")},
		},
		orders:       map[int64]Order{},
		nextPurchase: 1000,
		nextDetail:   5000,
		failDetailAt: -1,
		keys:         map[string]int64{},
	}
}

type memoryRepo struct {
	store    *memoryStore
	staged    *Order
	stagedKey string
	inserted  int
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	tx := &memoryRepo{store: m.store}
	savedPurchase, savedDetail := m.store.nextPurchase, m.store.nextDetail
	if err := fn(ctx, tx); err != nil {
		m.store.nextPurchase, m.store.nextDetail = savedPurchase, savedDetail
		return err
	}
	if tx.staged != nil {
		m.store.orders[tx.staged.ID] = *tx.staged
		if tx.stagedKey != "" {
			m.store.keys[tx.stagedKey] = tx.staged.ID
		}
	}
	return nil
}

func (m *memoryRepo) LookupProducts(_ context.Context, ids []int64) (map[int64]ProductRef, error) {
	out := map[int64]ProductRef{}
	for _, id := range ids {
		if p, ok := m.store.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memoryRepo) CreatePurchase(context.Context) (int64, time.Time, error) {
	id := m.store.nextPurchase
	m.store.nextPurchase++
	m.staged = &Order{ID: id, CreatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return id, m.staged.CreatedAt, nil
}

func (m *memoryRepo) InsertDetail(_ context.Context, d Detail) (int64, error) {
	if m.inserted == m.store.failDetailAt {
		return 0, errors.New("insert failed")
	}
	m.inserted++
	d.ID = m.store.nextDetail
	m.store.nextDetail++
	m.staged.Details = append(m.staged.Details, d)
	return d.ID, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Order, error) {
	o, ok := m.store.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (m *memoryRepo) FindByKey(_ context.Context, key string) (int64, bool, error) {
	id, ok := m.store.keys[key]
	return id, ok, nil
}

func (m *memoryRepo) RememberKey(_ context.Context, key string, _ int64) error {
	if m.store.keyConflict {
		return shared.ErrIdempotencyConflict
	}
	m.stagedKey = key
	return nil
}

type recordingNotifier struct {
	confirmations []recommend.Confirmation
	ctxErrs       []error
	err           error
}

func (r *recordingNotifier) NotifyPurchase(ctx context.Context, c recommend.Confirmation) error {
	r.confirmations = append(r.confirmations, c)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return r.err
}

type countingInvalidator struct {
	bumps   int
	ctxErrs []error
}

func (c *countingInvalidator) Bump(ctx context.Context) error {
	c.bumps++
	c.ctxErrs = append(c.ctxErrs, ctx.Err())
	return nil
}

func newTestService(store *memoryStore) (*Service, *recordingNotifier, *countingInvalidator) {
	notifier := &recordingNotifier{}
	inv := &countingInvalidator{}
	svc := NewService(&memoryRepo{store: store}, nil, WithNotifier(notifier), WithInvalidator(inv))
	return svc, notifier, inv
}

func TestSubmitRejectsEmptyOrder(t *testing.T) {
	store := newMemoryStore()
	svc, notifier, inv := newTestService(store)

	for _, req := range []SubmitRequest{{}, {Purchases: []LineInput{}}} {
		_, err := svc.Submit(context.Background(), req)
		require.ErrorIs(t, err, shared.ErrValidation)
		require.Equal(t, "purchases must be a non-empty array", err.Error())
	}
	require.Empty(t, store.orders)
	require.Empty(t, notifier.confirmations)
	require.Zero(t, inv.bumps)
}

func TestSubmitRejectsBadQuantity(t *testing.T) {
	store := newMemoryStore()
	svc, _, _ := newTestService(store)

	_, err := svc.Submit(context.Background(), SubmitRequest{Purchases: []LineInput{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, Quantity: 0},
	}})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, "purchases[1].quantity must be >= 1", err.Error())
	require.Empty(t, store.orders)
}

func TestSubmitRejectsQuantityAboveColumnRange(t *testing.T) {
	store := newMemoryStore()
	svc, _, _ := newTestService(store)

	_, err := svc.Submit(context.Background(), SubmitRequest{Purchases: []LineInput{
		{ProductID: 1, Quantity: 2147483648},
	}})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, "purchases[0].quantity must be <= 2147483647", err.Error())
	require.Empty(t, store.orders)
}

func TestSubmitRejectsUnknownProduct(t *testing.T) {
	store := newMemoryStore()
	svc, notifier, _ := newTestService(store)

	_, err := svc.Submit(context.Background(), SubmitRequest{Purchases: []LineInput{
		{ProductID: 1, Quantity: 1},
		{ProductID: 99, Quantity: 1},
	}})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "99")
	require.Empty(t, store.orders)
	require.Empty(t, notifier.confirmations)
	require.Equal(t, int64(1000), store.nextPurchase)
}

func TestSubmitTwoLines(t *testing.T) {
	store := newMemoryStore()
	svc, notifier, inv := newTestService(store)

	order, err := svc.Submit(context.Background(), SubmitRequest{Purchases: []LineInput{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	}})
	require.NoError(t, err)
	require.Equal(t, int64(1000), order.ID)
	require.Len(t, order.Details, 2)
	require.Equal(t, int64(5000), order.Details[0].ID)
	require.Equal(t, int64(5001), order.Details[1].ID)
	for _, d := range order.Details {
		require.Equal(t, order.ID, d.PurchaseID)
	}
	require.True(t, decimal.NewFromInt(10).Equal(order.Details[0].UnitPrice))
	require.True(t, decimal.RequireFromString("5.25").Equal(order.Details[1].UnitPrice))

	stored, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Details, 2)

	require.Len(t, notifier.confirmations, 1)
	require.Equal(t, []string{"Apples", "Apples", "Pears"}, notifier.confirmations[0].Cart)
	require.Equal(t, order.ID, notifier.confirmations[0].PurchaseID)
	require.Equal(t, 1, inv.bumps)

	second, err := svc.Submit(context.Background(), SubmitRequest{Purchases: []LineInput{{ProductID: 2, Quantity: 3}}})
	require.NoError(t, err)
	require.Equal(t, int64(1001), second.ID)
	require.Equal(t, int64(5002), second.Details[0].ID)
}

func TestSubmitRollsBackOnFailure(t *testing.T) {
	store := newMemoryStore()
	store.failDetailAt = 1
	svc, notifier, inv := newTestService(store)

	_, err := svc.Submit(context.Background(), SubmitRequest{Purchases: []LineInput{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	}})
	require.ErrorIs(t, err, shared.ErrPersistence)
	require.Equal(t, "failed to process request", shared.UserMessage(err))
	require.Empty(t, store.orders)
	require.Empty(t, notifier.confirmations)
	require.Zero(t, inv.bumps)
}

func TestSubmitIgnoresNotifierFailure(t *testing.T) {
	store := newMemoryStore()
	svc, notifier, _ := newTestService(store)
	notifier.err = errors.New("queue down")

	order, err := svc.Submit(context.Background(), SubmitRequest{Purchases: []LineInput{{ProductID: 1, Quantity: 1}}})
	require.NoError(t, err)
	require.Contains(t, store.orders, order.ID)
}

func TestSubmitFollowUpsOutliveCallerCancellation(t *testing.T) {
	store := newMemoryStore()
	svc, notifier, inv := newTestService(store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	order, err := svc.Submit(ctx, SubmitRequest{Purchases: []LineInput{{ProductID: 1, Quantity: 1}}})
	require.NoError(t, err)
	require.Contains(t, store.orders, order.ID)
	require.Equal(t, []error{nil}, notifier.ctxErrs)
	require.Equal(t, []error{nil}, inv.ctxErrs)
}

func TestGetMissingOrder(t *testing.T) {
	svc, _, _ := newTestService(newMemoryStore())
	_, err := svc.Get(context.Background(), 4242)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSubmitReplaysIdempotencyKey(t *testing.T) {
	store := newMemoryStore()
	svc, notifier, inv := newTestService(store)
	req := SubmitRequest{Purchases: []LineInput{{ProductID: 1, Quantity: 1}}, IdempotencyKey: "checkout-7"}

	first, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	again, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)
	require.True(t, again.Replayed)
	require.Equal(t, first.ID, again.ID)

	require.Len(t, store.orders, 1)
	require.Len(t, notifier.confirmations, 1)
	require.Equal(t, 1, inv.bumps)
}

func TestSubmitIdempotencyConflictRollsBack(t *testing.T) {
	store := newMemoryStore()
	store.keyConflict = true
	svc, notifier, _ := newTestService(store)

	_, err := svc.Submit(context.Background(), SubmitRequest{
		Purchases:      []LineInput{{ProductID: 1, Quantity: 1}},
		IdempotencyKey: "checkout-8",
	})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Empty(t, store.orders)
	require.Empty(t, notifier.confirmations)
}

func TestSubmitRejectsOversizedIdempotencyKey(t *testing.T) {
	svc, _, _ := newTestService(newMemoryStore())

	_, err := svc.Submit(context.Background(), SubmitRequest{
		Purchases:      []LineInput{{ProductID: 1, Quantity: 1}},
		IdempotencyKey: strings.Repeat("k", shared.MaxIdempotencyKeyLen+1),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}
