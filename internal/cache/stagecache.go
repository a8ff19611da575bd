// Package cache provides a Redis-backed read-through cache for pipeline
// stage configuration, shared across portal processes. The registry works
// without it; a cache miss or Redis outage just falls through to the API.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ignite/agency-portal/internal/pkg/logger"
	"github.com/ignite/agency-portal/internal/portalapi"
	"github.com/redis/go-redis/v9"
)

const stageKeyPrefix = "portal:stages:"

// StageCache caches stage configuration per project with a TTL.
type StageCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStageCache creates a cache around an existing Redis client.
// ttl <= 0 defaults to 5 minutes.
func NewStageCache(client *redis.Client, ttl time.Duration) *StageCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StageCache{client: client, ttl: ttl}
}

// Get returns the cached stage records for a project, if present.
func (c *StageCache) Get(ctx context.Context, projectID string) ([]portalapi.StageRecord, bool) {
	data, err := c.client.Get(ctx, stageKeyPrefix+projectID).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("stage cache read failed", "project_id", projectID, "error", err.Error())
		}
		return nil, false
	}
	var records []portalapi.StageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		logger.Warn("stage cache entry corrupt, dropping", "project_id", projectID)
		c.client.Del(ctx, stageKeyPrefix+projectID)
		return nil, false
	}
	return records, true
}

// Put stores the stage records for a project.
func (c *StageCache) Put(ctx context.Context, projectID string, records []portalapi.StageRecord) {
	data, err := json.Marshal(records)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, stageKeyPrefix+projectID, data, c.ttl).Err(); err != nil {
		logger.Warn("stage cache write failed", "project_id", projectID, "error", err.Error())
	}
}

// Invalidate drops a project's cached configuration (after a configure-
// pipeline save).
func (c *StageCache) Invalidate(ctx context.Context, projectID string) {
	if err := c.client.Del(ctx, stageKeyPrefix+projectID).Err(); err != nil {
		logger.Warn("stage cache invalidate failed", "project_id", projectID, "error", err.Error())
	}
}
