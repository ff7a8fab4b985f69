package recommend

import (
	"context"
	"errors"
	"log/slog"

	"github.com/market-basket/market-basket/internal/products"
	"github.com/market-basket/market-basket/internal/shared"
)

// Recommender is the upstream recommendation call.
type Recommender interface {
	Recommend(ctx context.Context, cart []string) ([]string, error)
}

// Catalog lists the products recommended names are resolved against.
type Catalog interface {
	List(ctx context.Context) ([]products.Product, error)
}

// TopSellers returns the best selling products, most sold first. Purchases
// holds the total quantity sold.
type TopSellers interface {
	TopSellers(ctx context.Context, limit int) ([]products.AdminProduct, error)
}

// Service produces basket suggestions.
type Service struct {
	upstream Recommender
	catalog  Catalog
	top      TopSellers
	logger   *slog.Logger
}

// NewService wires the suggestion service.
func NewService(upstream Recommender, catalog Catalog, top TopSellers, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{upstream: upstream, catalog: catalog, top: top, logger: logger}
}

// Suggest returns up to DefaultLimit products to show next to the basket. An
// empty basket gets the top sellers. Upstream failures degrade to an empty list.
func (s *Service) Suggest(ctx context.Context, basket []Line) ([]products.Product, error) {
	if len(basket) == 0 {
		top, err := s.TopProducts(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]products.Product, 0, len(top))
		for _, p := range top {
			out = append(out, p.Product)
		}
		return out, nil
	}

	names, err := s.upstream.Recommend(ctx, DistinctNames(basket))
	if err != nil {
		s.logger.Warn("recommendations unavailable", slog.Any("error", err), slog.Int("basket_lines", len(basket)))
		return []products.Product{}, nil
	}
	catalog, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	inBasket := make(map[int64]bool, len(basket))
	for _, l := range basket {
		inBasket[l.ProductID] = true
	}
	return Resolve(names, catalog, inBasket, DefaultLimit), nil
}

// Names proxies a raw recommendation request.
func (s *Service) Names(ctx context.Context, cart []string) ([]string, error) {
	names, err := s.upstream.Recommend(ctx, cart)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// TopProducts returns the DefaultLimit best selling products.
func (s *Service) TopProducts(ctx context.Context) ([]products.AdminProduct, error) {
	if s.top == nil {
		return []products.AdminProduct{}, nil
	}
	top, err := s.top.TopSellers(ctx, DefaultLimit)
	if err != nil {
		if errors.Is(err, shared.ErrPersistence) {
			return nil, err
		}
		return nil, shared.Persistence("top sellers", err)
	}
	if top == nil {
		top = []products.AdminProduct{}
	}
	return top, nil
}
