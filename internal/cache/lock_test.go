package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLockClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestConfigLockAcquireRelease(t *testing.T) {
	client, _ := newLockClient(t)
	ctx := context.Background()

	a := NewConfigLock(client, "proj-1", time.Minute)
	b := NewConfigLock(client, "proj-1", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder is rejected while the lock is held")

	require.NoError(t, a.Release(ctx))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "lock is free again after release")
}

func TestConfigLockTokensDiffer(t *testing.T) {
	client, _ := newLockClient(t)

	a := NewConfigLock(client, "proj-1", time.Minute)
	b := NewConfigLock(client, "proj-1", time.Minute)
	assert.NotEmpty(t, a.value)
	assert.NotEqual(t, a.value, b.value, "ownership tokens must be per-instance")
}

func TestConfigLockIsProjectScoped(t *testing.T) {
	client, _ := newLockClient(t)
	ctx := context.Background()

	a := NewConfigLock(client, "proj-1", time.Minute)
	b := NewConfigLock(client, "proj-2", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "locks for different projects do not collide")
}

func TestConfigLockReleaseRespectsOwnership(t *testing.T) {
	client, mr := newLockClient(t)
	ctx := context.Background()

	a := NewConfigLock(client, "proj-1", time.Minute)
	b := NewConfigLock(client, "proj-1", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// Simulate a's lease expiring and b taking over.
	mr.FastForward(2 * time.Minute)
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// a's stale release must not free b's lock.
	require.NoError(t, a.Release(ctx))
	assert.True(t, mr.Exists(lockKeyPrefix+"proj-1"))
}

func TestConfigLockExpires(t *testing.T) {
	client, mr := newLockClient(t)
	ctx := context.Background()

	a := NewConfigLock(client, "proj-1", time.Minute)
	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	b := NewConfigLock(client, "proj-1", time.Minute)
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock can be re-acquired")
}
