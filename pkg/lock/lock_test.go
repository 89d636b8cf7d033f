package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/lock"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/store"
	"github.com/flowgrid/flowgrid/pkg/testutil"
)

func TestTryAcquireExcludesSecondHolder(t *testing.T) {
	manager := lock.NewManager(store.NewMemoryKV(), testutil.Logger())
	ctx := context.Background()

	held, ok, err := manager.TryAcquire(ctx, "workflow:execute:wf-1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = manager.TryAcquire(ctx, "workflow:execute:wf-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, held.Release(ctx))

	_, ok, err = manager.TryAcquire(ctx, "workflow:execute:wf-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDifferentNamesAreIndependent(t *testing.T) {
	manager := lock.NewManager(store.NewMemoryKV(), testutil.Logger())
	ctx := context.Background()

	_, ok, err := manager.TryAcquire(ctx, lock.ExecutionLockName("wf-1"))
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = manager.TryAcquire(ctx, lock.ExecutionLockName("wf-2"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquireTimesOutWhileHeld(t *testing.T) {
	manager := lock.NewManager(store.NewMemoryKV(), testutil.Logger(),
		lock.WithBlockingTimeout(50*time.Millisecond))
	ctx := context.Background()

	_, ok, err := manager.TryAcquire(ctx, "busy")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = manager.Acquire(ctx, "busy")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrLockAcquisition))

	var lockErr *models.LockAcquisitionError

	require.True(t, errors.As(err, &lockErr))
	assert.Equal(t, "busy", lockErr.Name)
}

func TestAcquireWaitsForRelease(t *testing.T) {
	manager := lock.NewManager(store.NewMemoryKV(), testutil.Logger(),
		lock.WithBlockingTimeout(2*time.Second))
	ctx := context.Background()

	held, ok, err := manager.TryAcquire(ctx, "contended")
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = held.Release(context.Background())
	}()

	acquired, err := manager.Acquire(ctx, "contended")
	require.NoError(t, err)
	assert.Equal(t, "contended", acquired.Name)
}

func TestStaleHolderCannotReleaseReacquiredLock(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	kv := store.NewRedisKV(client, testutil.Logger())

	manager := lock.NewManager(kv, testutil.Logger(), lock.WithTTL(time.Second))
	ctx := context.Background()

	stale, ok, err := manager.TryAcquire(ctx, "expiring")
	require.NoError(t, err)
	require.True(t, ok)

	// The holder crashes; the lock expires and someone else takes it.
	server.FastForward(2 * time.Second)

	fresh, ok, err := manager.TryAcquire(ctx, "expiring")
	require.NoError(t, err)
	require.True(t, ok)

	// The stale token must not free the new holder's lock.
	require.NoError(t, stale.Release(ctx))

	_, ok, err = manager.TryAcquire(ctx, "expiring")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, fresh.Release(ctx))
}

func TestExtendRequiresOwnership(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	kv := store.NewRedisKV(client, testutil.Logger())

	manager := lock.NewManager(kv, testutil.Logger(), lock.WithTTL(time.Second))
	ctx := context.Background()

	held, ok, err := manager.TryAcquire(ctx, "long-section")
	require.NoError(t, err)
	require.True(t, ok)

	extended, err := held.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)

	// After expiry the token no longer owns the key.
	server.FastForward(2 * time.Minute)

	extended, err = held.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)
}
