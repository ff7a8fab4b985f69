package products

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/market-basket/market-basket/internal/platform/db"
)

// ErrNotFound is returned when a product row does not exist.
var ErrNotFound = errors.New("products: not found")

// Repository persists catalog products.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	ListWithPurchases(ctx context.Context) ([]AdminProduct, error)
	Get(ctx context.Context, id int64) (Product, error)
	GetWithPurchases(ctx context.Context, id int64) (AdminProduct, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) (Product, error)
	Delete(ctx context.Context, id int64) (DeleteResult, error)
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository returns a pgx backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

const productColumns = `p.id, p.name, p.price, p.description, p.category, p.image, p.created_at, p.updated_at`

func scanProduct(row pgx.Row, extra ...any) (Product, error) {
	var p Product
	dest := append([]any{&p.ID, &p.Name, &p.Price, &p.Description, &p.Category, &p.Image, &p.CreatedAt, &p.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products p ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const purchasesJoin = ` FROM products p
LEFT JOIN (
	SELECT product_id, SUM(quantity)::bigint AS purchases
	FROM purchase_details
	GROUP BY product_id
) d ON d.product_id = p.id`

func (r *repository) ListWithPurchases(ctx context.Context) ([]AdminProduct, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+`, COALESCE(d.purchases, 0)`+purchasesJoin+` ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdminProduct
	for rows.Next() {
		var purchases int64
		p, err := scanProduct(rows, &purchases)
		if err != nil {
			return nil, err
		}
		out = append(out, AdminProduct{Product: p, Purchases: purchases})
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = $1`, id))
}

func (r *repository) GetWithPurchases(ctx context.Context, id int64) (AdminProduct, error) {
	var purchases int64
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+`, COALESCE(d.purchases, 0)`+purchasesJoin+` WHERE p.id = $1`, id), &purchases)
	if err != nil {
		return AdminProduct{}, err
	}
	return AdminProduct{Product: p, Purchases: purchases}, nil
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	const query = `INSERT INTO products (name, price, description, category, image)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, product.Name, product.Price, product.Description, product.Category, product.Image).
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

func (r *repository) Update(ctx context.Context, id int64, product Product) (Product, error) {
	const query = `UPDATE products
SET name = $1, price = $2, description = $3, category = $4, image = $5, updated_at = now()
WHERE id = $6
RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, product.Name, product.Price, product.Description, product.Category, product.Image, id).
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return product, nil
}

// Delete removes the product together with every line item that references it.
// Purchases left without line items are removed as well, so no purchase ever
// exists with zero details. All three steps share one transaction.
func (r *repository) Delete(ctx context.Context, id int64) (DeleteResult, error) {
	result := DeleteResult{ProductID: id}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var locked int64
		if err := tx.QueryRow(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		rows, err := tx.Query(ctx, `DELETE FROM purchase_details WHERE product_id = $1 RETURNING purchase_id`, id)
		if err != nil {
			return err
		}
		touched, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return err
		}
		result.DetailsRemoved = int64(len(touched))

		if len(touched) > 0 {
			tag, err := tx.Exec(ctx, `DELETE FROM purchases p
WHERE p.id = ANY($1)
AND NOT EXISTS (SELECT 1 FROM purchase_details d WHERE d.purchase_id = p.id)`, touched)
			if err != nil {
				return err
			}
			result.PurchasesRemoved = tag.RowsAffected()
		}

		if _, err := tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	return result, nil
}
