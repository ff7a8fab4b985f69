package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/market-basket/market-basket/internal/recommend"
	"github.com/market-basket/market-basket/internal/shared"
)

// Notifier hands a committed order to the recommendation service. It must not
// block on the upstream call.
type Notifier interface {
	NotifyPurchase(ctx context.Context, c recommend.Confirmation) error
}

// Invalidator is bumped after every committed order.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Observer records order metrics.
type Observer interface {
	ObserveOrder(lines int)
}

// Service validates and persists orders.
type Service struct {
	repo        Repository
	notifier    Notifier
	invalidator Invalidator
	observer    Observer
	validate    *validator.Validate
	logger      *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithNotifier sets the purchase confirmation notifier.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithInvalidator sets the cache invalidator bumped after each order.
func WithInvalidator(i Invalidator) Option { return func(s *Service) { s.invalidator = i } }

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option { return func(s *Service) { s.observer = o } }

// NewService constructs the order service.
func NewService(repo Repository, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, validate: shared.NewValidator(), logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit persists an order in a single transaction. Either the header and all
// lines are stored or nothing is. After commit the purchase confirmation is
// queued; failures there are logged and never change the result.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (Order, error) {
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return Order{}, err
	}
	if err := shared.CheckKey(req.IdempotencyKey); err != nil {
		return Order{}, err
	}

	ids := make([]int64, 0, len(req.Purchases))
	seen := make(map[int64]struct{}, len(req.Purchases))
	for _, line := range req.Purchases {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}

	var (
		order Order
		names []recommend.Line
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if req.IdempotencyKey != "" {
			prior, ok, err := repo.FindByKey(ctx, req.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("lookup idempotency key: %w", err)
			}
			if ok {
				order, err = repo.Get(ctx, prior)
				if err != nil {
					return fmt.Errorf("load replayed order: %w", err)
				}
				order.Replayed = true
				return nil
			}
		}

		refs, err := repo.LookupProducts(ctx, ids)
		if err != nil {
			return fmt.Errorf("lookup products: %w", err)
		}
		for i, line := range req.Purchases {
			if _, ok := refs[line.ProductID]; !ok {
				return shared.Validationf("purchases[%d].productId %d does not exist", i, line.ProductID)
			}
		}

		id, createdAt, err := repo.CreatePurchase(ctx)
		if err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}
		order = Order{ID: id, CreatedAt: createdAt, Details: make([]Detail, 0, len(req.Purchases))}
		names = names[:0]
		for _, line := range req.Purchases {
			ref := refs[line.ProductID]
			detail := Detail{
				PurchaseID: id,
				ProductID:  line.ProductID,
				Quantity:   line.Quantity,
				UnitPrice:  ref.Price,
			}
			detailID, err := repo.InsertDetail(ctx, detail)
			if err != nil {
				return fmt.Errorf("insert purchase detail: %w", err)
			}
			detail.ID = detailID
			order.Details = append(order.Details, detail)
			names = append(names, recommend.Line{Name: ref.Name, Quantity: line.Quantity})
		}
		if req.IdempotencyKey != "" {
			if err := repo.RememberKey(ctx, req.IdempotencyKey, id); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					return shared.Conflictf("an order with this Idempotency-Key is already being placed")
				}
				return fmt.Errorf("record idempotency key: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrConflict) {
			return Order{}, err
		}
		s.logger.Error("submit order failed", slog.Any("error", err), slog.Int("lines", len(req.Purchases)))
		return Order{}, shared.Persistence("submit order", err)
	}

	if order.Replayed {
		s.logger.Info("order replayed", slog.Int64("purchase_id", order.ID))
		return order, nil
	}

	s.logger.Info("order submitted", slog.Int64("purchase_id", order.ID), slog.Int("lines", len(order.Details)))
	if s.observer != nil {
		s.observer.ObserveOrder(len(order.Details))
	}
	// The order is committed; a caller hanging up must not drop the follow-ups.
	detached := context.WithoutCancel(ctx)
	s.confirm(detached, recommend.Confirmation{PurchaseID: order.ID, Cart: recommend.ExpandByQuantity(names)})
	if s.invalidator != nil {
		if err := s.invalidator.Bump(detached); err != nil {
			s.logger.Warn("bump analytics cache", slog.Any("error", err))
		}
	}
	return order, nil
}

func (s *Service) confirm(ctx context.Context, c recommend.Confirmation) {
	if s.notifier == nil || len(c.Cart) == 0 {
		return
	}
	if err := s.notifier.NotifyPurchase(ctx, c); err != nil {
		s.logger.Warn("queue purchase confirmation", slog.Int64("purchase_id", c.PurchaseID), slog.Any("error", err))
	}
}

// Get returns a persisted order.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	if id <= 0 {
		return Order{}, shared.Validationf("invalid order id %d", id)
	}
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Order{}, shared.NotFoundf("order %d not found", id)
		}
		return Order{}, shared.Persistence("get order", err)
	}
	return order, nil
}
