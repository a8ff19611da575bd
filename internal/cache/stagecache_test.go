package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/agency-portal/internal/portalapi"
)

func newTestCache(t *testing.T, ttl time.Duration) (*StageCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStageCache(client, ttl), mr
}

func sampleRecords() []portalapi.StageRecord {
	return []portalapi.StageRecord{
		{StageKey: "new_lead", StageLabel: "New Leads", Color: "#3b82f6", SortOrder: 0},
		{StageKey: "contacted", StageLabel: "Contacted", Color: "#8b5cf6", SortOrder: 1},
	}
}

func TestStageCachePutGet(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx, "proj-1")
	assert.False(t, ok, "cold cache misses")

	c.Put(ctx, "proj-1", sampleRecords())

	got, ok := c.Get(ctx, "proj-1")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "new_lead", got[0].StageKey)
	assert.Equal(t, "Contacted", got[1].StageLabel)
}

func TestStageCacheKeysAreProjectScoped(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	c.Put(ctx, "proj-1", sampleRecords())
	_, ok := c.Get(ctx, "proj-2")
	assert.False(t, ok)
}

func TestStageCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	c.Put(ctx, "proj-1", sampleRecords())
	c.Invalidate(ctx, "proj-1")

	_, ok := c.Get(ctx, "proj-1")
	assert.False(t, ok)
}

func TestStageCacheEntryExpires(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	c.Put(ctx, "proj-1", sampleRecords())
	mr.FastForward(2 * time.Minute)

	_, ok := c.Get(ctx, "proj-1")
	assert.False(t, ok)
}

func TestStageCacheDropsCorruptEntry(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, mr.Set(stageKeyPrefix+"proj-1", "{garbage"))

	_, ok := c.Get(ctx, "proj-1")
	assert.False(t, ok)
	assert.False(t, mr.Exists(stageKeyPrefix+"proj-1"), "corrupt entry is deleted")
}
