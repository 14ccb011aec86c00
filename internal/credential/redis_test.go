package credential

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/reimburse/internal/errors"
)

// setupTestRedis creates an in-memory Redis instance for testing
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestRedisStore_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	store := NewRedisStore(client, "reimburse:credential")

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token, "missing key loads as empty")

	require.NoError(t, store.Save(ctx, "abc"))
	assert.Equal(t, "abc", mustGet(t, mr, "reimburse:credential"))
	assert.Zero(t, mr.TTL("reimburse:credential"), "credential key must not expire")

	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	require.NoError(t, store.Clear(ctx))
	assert.False(t, mr.Exists("reimburse:credential"))

	require.NoError(t, store.Clear(ctx))
}

func TestRedisStore_BackendDown(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	store := NewRedisStore(client, "k")
	mr.Close()

	_, err := store.Load(ctx)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreRead))

	err = store.Save(ctx, "abc")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreWrite))
}

func TestDialRedis(t *testing.T) {
	ctx := context.Background()
	mr, _ := setupTestRedis(t)

	store, err := DialRedis(ctx, "redis://"+mr.Addr()+"/0", "key")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Save(ctx, "shared"))
	assert.Equal(t, "shared", mustGet(t, mr, "key"))

	_, err = DialRedis(ctx, "not a url", "key")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreBackend))
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
