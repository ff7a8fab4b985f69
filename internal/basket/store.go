// Package basket keeps the shopper's ordered list of products and quantities
// and persists it after every change.
package basket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/market-basket/market-basket/internal/orders"
	"github.com/market-basket/market-basket/internal/products"
	"github.com/market-basket/market-basket/internal/recommend"
	"github.com/market-basket/market-basket/internal/shared"
)

// StorageKey is the key the basket is saved under.
const StorageKey = "basket"

// TaxRate applied on top of the subtotal.
var TaxRate = decimal.RequireFromString("0.08")

// MaxQuantity caps a single line; quantities are stored as 32-bit integers.
const MaxQuantity = math.MaxInt32

// ErrCorrupt is returned by Open when the stored payload cannot be decoded.
var ErrCorrupt = errors.New("basket: stored payload is corrupt")

// Item is one basket line.
type Item struct {
	Product  products.Product `json:"product"`
	Quantity int              `json:"quantity"`
}

// Storage is a durable key/value slot for the serialized basket.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Store is the in-memory basket backed by Storage. Every mutation writes the
// full collection; if the write fails the mutation is undone.
type Store struct {
	mu      sync.Mutex
	storage Storage
	items   []Item
}

// Open hydrates a Store from storage. A missing entry yields an empty basket.
func Open(ctx context.Context, storage Storage) (*Store, error) {
	s := &Store{storage: storage}
	data, ok, err := storage.Load(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("basket: load: %w", err)
	}
	if !ok || len(data) == 0 {
		return s, nil
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for _, it := range items {
		if it.Quantity < 1 || it.Quantity > MaxQuantity || it.Product.ID <= 0 {
			return nil, fmt.Errorf("%w: invalid line for product %d", ErrCorrupt, it.Product.ID)
		}
	}
	s.items = items
	return s, nil
}

// Add puts quantity units of product in the basket, merging with an existing
// line. A non-positive quantity counts as one. A merged quantity above
// MaxQuantity is rejected and the basket is left as it was.
func (s *Store) Add(ctx context.Context, product products.Product, quantity int) error {
	if quantity <= 0 {
		quantity = 1
	}
	if quantity > MaxQuantity {
		return shared.Validationf("quantity must be <= %d", MaxQuantity)
	}
	return s.mutate(ctx, func(items []Item) ([]Item, error) {
		for i := range items {
			if items[i].Product.ID == product.ID {
				if items[i].Quantity > MaxQuantity-quantity {
					return nil, shared.Validationf("quantity of %s must be <= %d", product.Name, MaxQuantity)
				}
				items[i].Quantity += quantity
				return items, nil
			}
		}
		return append(items, Item{Product: product, Quantity: quantity}), nil
	})
}

// UpdateQuantity overwrites the quantity of a line. Zero or less removes it.
// Unknown products are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, productID)
	}
	if quantity > MaxQuantity {
		return shared.Validationf("quantity must be <= %d", MaxQuantity)
	}
	return s.mutate(ctx, func(items []Item) ([]Item, error) {
		for i := range items {
			if items[i].Product.ID == productID {
				items[i].Quantity = quantity
			}
		}
		return items, nil
	})
}

// Remove drops the line for productID.
func (s *Store) Remove(ctx context.Context, productID int64) error {
	return s.mutate(ctx, func(items []Item) ([]Item, error) {
		out := items[:0]
		for _, it := range items {
			if it.Product.ID != productID {
				out = append(out, it)
			}
		}
		return out, nil
	})
}

// Clear empties the basket.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func([]Item) ([]Item, error) { return nil, nil })
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Total is the sum of all quantities.
func (s *Store) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, it := range s.items {
		total += it.Quantity
	}
	return total
}

// Subtotal is the sum of price times quantity.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, it := range s.items {
		sum = sum.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// Tax is TaxRate applied to the subtotal, rounded to cents.
func (s *Store) Tax() decimal.Decimal {
	return shared.RoundMoney(s.Subtotal().Mul(TaxRate))
}

// Grand is subtotal plus tax.
func (s *Store) Grand() decimal.Decimal {
	return s.Subtotal().Add(s.Tax())
}

// Lines converts the basket for recommendation lookups.
func (s *Store) Lines() []recommend.Line {
	items := s.Items()
	out := make([]recommend.Line, 0, len(items))
	for _, it := range items {
		out = append(out, recommend.Line{ProductID: it.Product.ID, Name: it.Product.Name, Quantity: it.Quantity})
	}
	return out
}

// SubmitFunc submits an order.
type SubmitFunc func(ctx context.Context, req orders.SubmitRequest) (orders.Order, error)

// Checkout submits the basket as an order and clears it on success. On any
// error the basket is left untouched.
func (s *Store) Checkout(ctx context.Context, submit SubmitFunc) (orders.Order, error) {
	items := s.Items()
	if len(items) == 0 {
		return orders.Order{}, shared.Validationf("basket is empty")
	}
	req := orders.SubmitRequest{Purchases: make([]orders.LineInput, 0, len(items))}
	for _, it := range items {
		req.Purchases = append(req.Purchases, orders.LineInput{ProductID: it.Product.ID, Quantity: it.Quantity})
	}
	order, err := submit(ctx, req)
	if err != nil {
		return orders.Order{}, err
	}
	if err := s.Clear(ctx); err != nil {
		return order, err
	}
	return order, nil
}

func (s *Store) mutate(ctx context.Context, fn func([]Item) ([]Item, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := make([]Item, len(s.items))
	copy(prev, s.items)

	working := make([]Item, len(s.items))
	copy(working, s.items)
	next, err := fn(working)
	if err != nil {
		return err
	}
	if next == nil {
		next = []Item{}
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("basket: encode: %w", err)
	}
	if err := s.storage.Save(ctx, StorageKey, data); err != nil {
		s.items = prev
		return fmt.Errorf("basket: save: %w", err)
	}
	s.items = next
	return nil
}
