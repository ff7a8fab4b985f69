package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/market-basket/market-basket/internal/products"
)

// Repository reads the purchase history the reducers run over.
type Repository interface {
	// Lines returns line items purchased inside [from, to]. A zero bound is open.
	Lines(ctx context.Context, from, to time.Time) ([]LineRow, error)
	// RecentLines returns the line items of the newest limit purchases, newest first.
	RecentLines(ctx context.Context, limit int) ([]LineRow, error)
	CountProducts(ctx context.Context) (int64, error)
	// TopSellers returns products ordered by total quantity sold, ties by id.
	TopSellers(ctx context.Context, limit int) ([]products.AdminProduct, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the pgx backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const lineColumns = `pu.id, pu.created_at, d.product_id, pr.name, pr.category, d.quantity, d.unit_price, pr.price`

func scanLine(row pgx.CollectableRow) (LineRow, error) {
	var l LineRow
	err := row.Scan(&l.PurchaseID, &l.PurchasedAt, &l.ProductID, &l.ProductName, &l.Category, &l.Quantity, &l.UnitPrice, &l.CurrentPrice)
	return l, err
}

func optionalTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func (r *repository) Lines(ctx context.Context, from, to time.Time) ([]LineRow, error) {
	const query = `SELECT ` + lineColumns + `
FROM purchase_details d
JOIN purchases pu ON pu.id = d.purchase_id
JOIN products pr ON pr.id = d.product_id
WHERE ($1::timestamptz IS NULL OR pu.created_at >= $1)
  AND ($2::timestamptz IS NULL OR pu.created_at <= $2)
ORDER BY pu.created_at, pu.id, d.id`
	rows, err := r.pool.Query(ctx, query, optionalTime(from), optionalTime(to))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanLine)
}

func (r *repository) RecentLines(ctx context.Context, limit int) ([]LineRow, error) {
	const query = `WITH recent AS (
	SELECT id, created_at FROM purchases ORDER BY created_at DESC, id DESC LIMIT $1
)
SELECT ` + lineColumns + `
FROM recent pu
JOIN purchase_details d ON d.purchase_id = pu.id
JOIN products pr ON pr.id = d.product_id
ORDER BY pu.created_at DESC, pu.id DESC, d.id`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanLine)
}

func (r *repository) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	return n, err
}

func (r *repository) TopSellers(ctx context.Context, limit int) ([]products.AdminProduct, error) {
	const query = `SELECT p.id, p.name, p.price, p.description, p.category, p.image, p.created_at, p.updated_at,
	COALESCE(SUM(d.quantity), 0)::bigint AS sold
FROM products p
LEFT JOIN purchase_details d ON d.product_id = p.id
GROUP BY p.id
ORDER BY sold DESC, p.id
LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (products.AdminProduct, error) {
		var ap products.AdminProduct
		p := &ap.Product
		err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.Category, &p.Image, &p.CreatedAt, &p.UpdatedAt, &ap.Purchases)
		return ap, err
	})
}
