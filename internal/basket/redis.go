package basket

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps baskets in Redis, one entry per session.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStorage builds a RedisStorage. Entries expire ttl after the last
// write; a non-positive ttl keeps them forever.
func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, ttl: ttl}
}

// Session scopes the storage to one session id; the basket for session s is
// stored under "basket:s".
func (r *RedisStorage) Session(id string) Storage {
	return sessionStorage{parent: r, session: id}
}

type sessionStorage struct {
	parent  *RedisStorage
	session string
}

func (s sessionStorage) redisKey(key string) string {
	return key + ":" + s.session
}

func (s sessionStorage) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.parent.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s sessionStorage) Save(ctx context.Context, key string, data []byte) error {
	ttl := s.parent.ttl
	if ttl < 0 {
		ttl = 0
	}
	return s.parent.client.Set(ctx, s.redisKey(key), data, ttl).Err()
}
