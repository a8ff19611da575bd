package cache

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "portal:lock:stages:"

// ConfigLock serializes configure-pipeline saves for one project across
// portal processes, via Redis SET NX with a TTL. The lock carries a random
// ownership value and releases through a Lua script, so a lock that expired
// and was re-acquired by another process is never deleted by the old owner.
type ConfigLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// NewConfigLock creates a lock for one project's stage configuration.
// ttl <= 0 defaults to 30 seconds.
func NewConfigLock(client *redis.Client, projectID string, ttl time.Duration) *ConfigLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Without entropy the token still has to be unique per process, or
		// Release could free a lock another instance holds.
		binary.BigEndian.PutUint64(b, uint64(time.Now().UnixNano()))
		binary.BigEndian.PutUint64(b[8:], uint64(os.Getpid()))
	}
	return &ConfigLock{
		client: client,
		key:    lockKeyPrefix + projectID,
		value:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

// Acquire tries to take the lock. Returns false when another process holds
// it.
func (l *ConfigLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire %s: %w", l.key, err)
	}
	return ok, nil
}

// Release frees the lock if this instance still owns it.
func (l *ConfigLock) Release(ctx context.Context) error {
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
	_, err := script.Run(ctx, l.client, []string{l.key}, l.value).Result()
	return err
}
