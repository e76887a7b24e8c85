// Package lock implements the lattice-wide short-TTL lock bucket the
// distributed-cron fire cycle uses for leader election per firing
// (spec.md §4.6): a create-if-absent operation with a TTL, so exactly one
// provider replica wins each scheduled instant.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker is the create-if-absent-with-TTL contract the fire cycle needs.
// Acquisition failure means another replica already holds the lock for
// this instant; the caller MUST NOT fire.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisLocker implements Locker with Redis's SET key val NX PX ttl, the
// natural create-if-absent-with-TTL primitive (SPEC_FULL.md §1/§7).
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker wraps an existing Redis client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// TryAcquire attempts to create key with a fixed token value and the given
// TTL. It returns true only if this call created the key; any other
// outcome (key already present, held by another replica) returns false
// with no error.
func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, "held", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock: try acquire %s: %w", key, err)
	}
	return ok, nil
}

// Key builds the lock key for a job firing, per spec.md §4.6: "lock/<target>/<job>".
func Key(targetID, jobName string) string {
	return "lock/" + targetID + "/" + jobName
}
