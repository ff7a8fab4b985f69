package products

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/market-basket/market-basket/internal/shared"
)

type memoryDetail struct {
	purchaseID int64
	productID  int64
	quantity   int64
}

type memoryRepo struct {
	nextID    int64
	products  map[int64]Product
	purchases map[int64]bool
	details   []memoryDetail
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, products: map[int64]Product{}, purchases: map[int64]bool{}}
}

func (m *memoryRepo) sorted() []Product {
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memoryRepo) purchasesOf(id int64) int64 {
	var total int64
	for _, d := range m.details {
		if d.productID == id {
			total += d.quantity
		}
	}
	return total
}

func (m *memoryRepo) List(context.Context) ([]Product, error) { return m.sorted(), nil }

func (m *memoryRepo) ListWithPurchases(context.Context) ([]AdminProduct, error) {
	var out []AdminProduct
	for _, p := range m.sorted() {
		out = append(out, AdminProduct{Product: p, Purchases: m.purchasesOf(p.ID)})
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) GetWithPurchases(ctx context.Context, id int64) (AdminProduct, error) {
	p, err := m.Get(ctx, id)
	if err != nil {
		return AdminProduct{}, err
	}
	return AdminProduct{Product: p, Purchases: m.purchasesOf(id)}, nil
}

func (m *memoryRepo) Create(_ context.Context, p Product) (Product, error) {
	p.ID = m.nextID
	m.nextID++
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.products[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, p Product) (Product, error) {
	existing, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	p.ID = id
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now()
	m.products[id] = p
	return p, nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) (DeleteResult, error) {
	if _, ok := m.products[id]; !ok {
		return DeleteResult{}, ErrNotFound
	}
	result := DeleteResult{ProductID: id}
	touched := map[int64]bool{}
	kept := m.details[:0]
	for _, d := range m.details {
		if d.productID == id {
			result.DetailsRemoved++
			touched[d.purchaseID] = true
			continue
		}
		kept = append(kept, d)
	}
	m.details = kept
	for pid := range touched {
		orphan := true
		for _, d := range m.details {
			if d.purchaseID == pid {
				orphan = false
				break
			}
		}
		if orphan {
			delete(m.purchases, pid)
			result.PurchasesRemoved++
		}
	}
	delete(m.products, id)
	return result, nil
}

type countingInvalidator struct{ bumps int }

func (c *countingInvalidator) Bump(context.Context) error {
	c.bumps++
	return nil
}

func TestServiceCreateValidates(t *testing.T) {
	repo := newMemoryRepo()
	inv := &countingInvalidator{}
	svc := NewService(repo, inv, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, ProductInput{Name: "   ", Price: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, "name is required", err.Error())

	_, err = svc.Create(ctx, ProductInput{Name: "Milk", Price: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Zero(t, inv.bumps)

	created, err := svc.Create(ctx, ProductInput{Name: " Milk ", Price: decimal.RequireFromString("2.499"), Category: "Dairy"})
	require.NoError(t, err)
	require.Equal(t, "Milk", created.Name)
	require.True(t, decimal.RequireFromString("2.5").Equal(created.Price))
	require.Equal(t, 1, inv.bumps)
}

func TestServiceGetNotFound(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	_, err := svc.Get(context.Background(), 42)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, "product 42 not found", err.Error())

	_, err = svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestServiceUpdateMissingProduct(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	_, err := svc.Update(context.Background(), 9, ProductInput{Name: "Bread", Price: decimal.NewFromInt(3)})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServiceDeleteCascades(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name             string
		details          []memoryDetail
		wantDetails      int64
		wantPurchases    int64
		survivingDetails int
	}{
		{name: "no line items"},
		{
			name:          "single line item",
			details:       []memoryDetail{{purchaseID: 1000, productID: 1, quantity: 2}},
			wantDetails:   1,
			wantPurchases: 1,
		},
		{
			name: "many line items across shared purchases",
			details: []memoryDetail{
				{purchaseID: 1000, productID: 1, quantity: 2},
				{purchaseID: 1000, productID: 2, quantity: 1},
				{purchaseID: 1001, productID: 1, quantity: 5},
				{purchaseID: 1002, productID: 1, quantity: 1},
			},
			wantDetails:      3,
			wantPurchases:    2,
			survivingDetails: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemoryRepo()
			inv := &countingInvalidator{}
			svc := NewService(repo, inv, nil)
			_, err := svc.Create(ctx, ProductInput{Name: "Apples", Price: decimal.NewFromInt(10)})
			require.NoError(t, err)
			_, err = svc.Create(ctx, ProductInput{Name: "Pears", Price: decimal.NewFromInt(5)})
			require.NoError(t, err)
			for _, d := range tc.details {
				repo.purchases[d.purchaseID] = true
			}
			repo.details = append(repo.details, tc.details...)

			result, err := svc.Delete(ctx, 1)
			require.NoError(t, err)
			require.Equal(t, tc.wantDetails, result.DetailsRemoved)
			require.Equal(t, tc.wantPurchases, result.PurchasesRemoved)
			require.Len(t, repo.details, tc.survivingDetails)
			for _, d := range repo.details {
				require.NotEqual(t, int64(1), d.productID)
				require.True(t, repo.purchases[d.purchaseID])
			}

			_, err = svc.Get(ctx, 1)
			require.ErrorIs(t, err, shared.ErrNotFound)
			require.Equal(t, 3, inv.bumps)
		})
	}
}

func TestServiceAdminListIncludesPurchases(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	_, err := svc.Create(ctx, ProductInput{Name: "Apples", Price: decimal.NewFromInt(10)})
	require.NoError(t, err)
	repo.details = []memoryDetail{{purchaseID: 1000, productID: 1, quantity: 2}, {purchaseID: 1001, productID: 1, quantity: 3}}

	items, err := svc.AdminList(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, int64(5), items[0].Purchases)
}
