package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/market-basket/market-basket/internal/platform/db"
	"github.com/market-basket/market-basket/internal/shared"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repository persists purchases and their line items.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	LookupProducts(ctx context.Context, ids []int64) (map[int64]ProductRef, error)
	CreatePurchase(ctx context.Context) (int64, time.Time, error)
	InsertDetail(ctx context.Context, detail Detail) (int64, error)
	Get(ctx context.Context, id int64) (Order, error)
	FindByKey(ctx context.Context, key string) (int64, bool, error)
	RememberKey(ctx context.Context, key string, purchaseID int64) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository returns a pgx backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

// LookupProducts locks the referenced products for the rest of the
// transaction so a concurrent delete cannot orphan the new line items.
func (r *repository) LookupProducts(ctx context.Context, ids []int64) (map[int64]ProductRef, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, price FROM products WHERE id = ANY($1) FOR SHARE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]ProductRef, len(ids))
	for rows.Next() {
		var ref ProductRef
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.Price); err != nil {
			return nil, err
		}
		out[ref.ID] = ref
	}
	return out, rows.Err()
}

func (r *repository) CreatePurchase(ctx context.Context) (int64, time.Time, error) {
	var (
		id        int64
		createdAt time.Time
	)
	err := r.db.QueryRow(ctx, `INSERT INTO purchases DEFAULT VALUES RETURNING id, created_at`).Scan(&id, &createdAt)
	return id, createdAt, err
}

func (r *repository) InsertDetail(ctx context.Context, d Detail) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO purchase_details (purchase_id, product_id, quantity, unit_price)
VALUES ($1, $2, $3, $4) RETURNING id`, d.PurchaseID, d.ProductID, d.Quantity, d.UnitPrice).Scan(&id)
	return id, err
}

func (r *repository) Get(ctx context.Context, id int64) (Order, error) {
	var o Order
	err := r.db.QueryRow(ctx, `SELECT id, created_at FROM purchases WHERE id = $1`, id).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}

	rows, err := r.db.Query(ctx, `SELECT id, purchase_id, product_id, quantity, unit_price
FROM purchase_details WHERE purchase_id = $1 ORDER BY id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var d Detail
		if err := rows.Scan(&d.ID, &d.PurchaseID, &d.ProductID, &d.Quantity, &d.UnitPrice); err != nil {
			return Order{}, err
		}
		o.Details = append(o.Details, d)
	}
	return o, rows.Err()
}

func (r *repository) FindByKey(ctx context.Context, key string) (int64, bool, error) {
	return shared.NewIdempotencyStore(r.db).Lookup(ctx, key)
}

func (r *repository) RememberKey(ctx context.Context, key string, purchaseID int64) error {
	return shared.NewIdempotencyStore(r.db).Record(ctx, key, purchaseID)
}
