package products

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/market-basket/market-basket/internal/shared"
)

// Invalidator is notified after every catalog write so derived caches
// (analytics) can be refreshed.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service implements catalog reads and admin product management.
type Service struct {
	repo        Repository
	invalidator Invalidator
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewService constructs a product Service. invalidator may be nil.
func NewService(repo Repository, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, invalidator: invalidator, validate: shared.NewValidator(), logger: logger}
}

// List returns every product ordered by id.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, shared.Persistence("list products", err)
	}
	if items == nil {
		items = []Product{}
	}
	return items, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.Validationf("invalid product id %d", id)
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, s.mapErr("get product", id, err)
	}
	return p, nil
}

// AdminList returns every product with its total quantity sold.
func (s *Service) AdminList(ctx context.Context) ([]AdminProduct, error) {
	items, err := s.repo.ListWithPurchases(ctx)
	if err != nil {
		return nil, shared.Persistence("list admin products", err)
	}
	if items == nil {
		items = []AdminProduct{}
	}
	return items, nil
}

// AdminGet returns one product with its total quantity sold.
func (s *Service) AdminGet(ctx context.Context, id int64) (AdminProduct, error) {
	if id <= 0 {
		return AdminProduct{}, shared.Validationf("invalid product id %d", id)
	}
	p, err := s.repo.GetWithPurchases(ctx, id)
	if err != nil {
		return AdminProduct{}, s.mapErr("get admin product", id, err)
	}
	return p, nil
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, input ProductInput) (Product, error) {
	input = input.normalized()
	if err := s.check(input); err != nil {
		return Product{}, err
	}
	created, err := s.repo.Create(ctx, input.toProduct())
	if err != nil {
		return Product{}, shared.Persistence("create product", err)
	}
	s.bump(ctx)
	return created, nil
}

// Update replaces the mutable fields of a product.
func (s *Service) Update(ctx context.Context, id int64, input ProductInput) (Product, error) {
	if id <= 0 {
		return Product{}, shared.Validationf("invalid product id %d", id)
	}
	input = input.normalized()
	if err := s.check(input); err != nil {
		return Product{}, err
	}
	updated, err := s.repo.Update(ctx, id, input.toProduct())
	if err != nil {
		return Product{}, s.mapErr("update product", id, err)
	}
	s.bump(ctx)
	return updated, nil
}

// Delete removes a product and the line items referencing it.
func (s *Service) Delete(ctx context.Context, id int64) (DeleteResult, error) {
	if id <= 0 {
		return DeleteResult{}, shared.Validationf("invalid product id %d", id)
	}
	result, err := s.repo.Delete(ctx, id)
	if err != nil {
		return DeleteResult{}, s.mapErr("delete product", id, err)
	}
	s.logger.Info("product deleted",
		slog.Int64("product_id", id),
		slog.Int64("details_removed", result.DetailsRemoved),
		slog.Int64("purchases_removed", result.PurchasesRemoved))
	s.bump(ctx)
	return result, nil
}

func (s *Service) check(input ProductInput) error {
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return err
	}
	if input.Price.IsNegative() {
		return shared.Validationf("price must be >= 0")
	}
	return nil
}

func (s *Service) mapErr(op string, id int64, err error) error {
	if errors.Is(err, ErrNotFound) {
		return shared.NotFoundf("product %d not found", id)
	}
	return shared.Persistence(op, err)
}

func (s *Service) bump(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Bump(ctx); err != nil {
		s.logger.Warn("bump analytics cache", slog.Any("error", err))
	}
}
