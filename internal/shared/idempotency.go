package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MaxIdempotencyKeyLen bounds client supplied keys.
const MaxIdempotencyKeyLen = 128

// ErrIdempotencyConflict indicates the key was recorded concurrently.
var ErrIdempotencyConflict = errors.New("idempotency key already recorded")

// Querier is the pgx surface shared by pools and transactions.
type Querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// IdempotencyStore maps client keys to the purchase they created. Bind it to
// a transaction so the key commits together with the purchase.
type IdempotencyStore struct {
	db Querier
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(db Querier) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

// CheckKey validates a client supplied key. Empty means no idempotency.
func CheckKey(key string) error {
	if len(key) > MaxIdempotencyKeyLen {
		return Validationf("Idempotency-Key must be at most %d characters", MaxIdempotencyKeyLen)
	}
	return nil
}

// Lookup returns the purchase recorded for key.
func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(ctx, `SELECT purchase_id FROM idempotency_keys WHERE key = $1`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Record stores key for purchaseID. A duplicate yields ErrIdempotencyConflict.
func (s *IdempotencyStore) Record(ctx context.Context, key string, purchaseID int64) error {
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := s.db.Exec(ctx, `INSERT INTO idempotency_keys (key, purchase_id, created_at) VALUES ($1, $2, $3)`, key, purchaseID, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Cleanup removes keys older than olderThan and reports how many went.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
