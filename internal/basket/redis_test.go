package basket

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisStoragePerSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	storage := NewRedisStorage(client, time.Hour)
	ctx := context.Background()

	first, err := Open(ctx, storage.Session("s1"))
	require.NoError(t, err)
	require.NoError(t, first.Add(ctx, apples, 2))

	require.True(t, mr.Exists("basket:s1"))
	require.Equal(t, time.Hour, mr.TTL("basket:s1"))

	other, err := Open(ctx, storage.Session("s2"))
	require.NoError(t, err)
	require.Empty(t, other.Items())

	again, err := Open(ctx, storage.Session("s1"))
	require.NoError(t, err)
	require.Equal(t, first.Items(), again.Items())

	mr.FastForward(2 * time.Hour)
	expired, err := Open(ctx, storage.Session("s1"))
	require.NoError(t, err)
	require.Empty(t, expired.Items())
}
