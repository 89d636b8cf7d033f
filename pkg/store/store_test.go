package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/store"
	"github.com/flowgrid/flowgrid/pkg/testutil"
)

// Both implementations must satisfy the same contract, so every case runs
// against the in-memory store and a miniredis-backed redis store.
func eachKV(t *testing.T, test func(t *testing.T, kv store.KV)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		test(t, store.NewMemoryKV())
	})

	t.Run("redis", func(t *testing.T) {
		server := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: server.Addr()})
		test(t, store.NewRedisKV(client, testutil.Logger()))
	})
}

func TestGetSetDelete(t *testing.T) {
	eachKV(t, func(t *testing.T, kv store.KV) {
		ctx := context.Background()

		_, found, err := kv.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, kv.Set(ctx, "greeting", "hello", 0))

		value, found, err := kv.Get(ctx, "greeting")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "hello", value)

		require.NoError(t, kv.Delete(ctx, "greeting"))

		_, found, err = kv.Get(ctx, "greeting")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestSetNXOnlyStoresWhenAbsent(t *testing.T) {
	eachKV(t, func(t *testing.T, kv store.KV) {
		ctx := context.Background()

		stored, err := kv.SetNX(ctx, "claim", "owner-a", time.Minute)
		require.NoError(t, err)
		assert.True(t, stored)

		stored, err = kv.SetNX(ctx, "claim", "owner-b", time.Minute)
		require.NoError(t, err)
		assert.False(t, stored)

		value, _, err := kv.Get(ctx, "claim")
		require.NoError(t, err)
		assert.Equal(t, "owner-a", value)
	})
}

func TestCompareAndDeleteChecksOwnership(t *testing.T) {
	eachKV(t, func(t *testing.T, kv store.KV) {
		ctx := context.Background()

		require.NoError(t, kv.Set(ctx, "token-key", "token-1", time.Minute))

		removed, err := kv.CompareAndDelete(ctx, "token-key", "token-2")
		require.NoError(t, err)
		assert.False(t, removed)

		removed, err = kv.CompareAndDelete(ctx, "token-key", "token-1")
		require.NoError(t, err)
		assert.True(t, removed)

		_, found, err := kv.Get(ctx, "token-key")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestCompareAndExpireChecksOwnership(t *testing.T) {
	eachKV(t, func(t *testing.T, kv store.KV) {
		ctx := context.Background()

		require.NoError(t, kv.Set(ctx, "token-key", "token-1", time.Minute))

		extended, err := kv.CompareAndExpire(ctx, "token-key", "wrong-token", time.Hour)
		require.NoError(t, err)
		assert.False(t, extended)

		extended, err = kv.CompareAndExpire(ctx, "token-key", "token-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, extended)
	})
}

func TestExpireMissingKey(t *testing.T) {
	eachKV(t, func(t *testing.T, kv store.KV) {
		ok, err := kv.Expire(context.Background(), "missing", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestListOperationsAreFIFO(t *testing.T) {
	eachKV(t, func(t *testing.T, kv store.KV) {
		ctx := context.Background()

		_, found, err := kv.ListPop(ctx, "queue")
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, kv.ListPush(ctx, "queue", "first"))
		require.NoError(t, kv.ListPush(ctx, "queue", "second"))
		require.NoError(t, kv.ListPush(ctx, "queue", "third"))

		length, err := kv.ListLen(ctx, "queue")
		require.NoError(t, err)
		assert.EqualValues(t, 3, length)

		all, err := kv.ListAll(ctx, "queue")
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second", "third"}, all)

		value, found, err := kv.ListPop(ctx, "queue")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "first", value)

		length, err = kv.ListLen(ctx, "queue")
		require.NoError(t, err)
		assert.EqualValues(t, 2, length)
	})
}

func TestMemoryKVHonorsTTL(t *testing.T) {
	kv := store.NewMemoryKV()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "soon-gone", "v", 20*time.Millisecond))

	_, found, err := kv.Get(ctx, "soon-gone")
	require.NoError(t, err)
	assert.True(t, found)

	time.Sleep(40 * time.Millisecond)

	_, found, err = kv.Get(ctx, "soon-gone")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisKVHonorsTTL(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	kv := store.NewRedisKV(client, testutil.Logger())
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "soon-gone", "v", time.Second))

	server.FastForward(2 * time.Second)

	_, found, err := kv.Get(ctx, "soon-gone")
	require.NoError(t, err)
	assert.False(t, found)
}
