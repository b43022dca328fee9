package engine

import (
	"context"

	"flowback-engine/pkg/redis"
)

// RedisLaneLocker serializes poll lanes across replicas with SetNX keys.
// The TTL bounds how long a crashed replica can hold a lane.
type RedisLaneLocker struct {
	client *redis.Client
}

// NewRedisLaneLocker creates a Redis-backed lane locker
func NewRedisLaneLocker(client *redis.Client) *RedisLaneLocker {
	return &RedisLaneLocker{client: client}
}

// TryLock attempts to take the poll's lane; false means another replica
// holds it.
func (l *RedisLaneLocker) TryLock(ctx context.Context, pollID int64) (bool, error) {
	return l.client.SetNX(ctx, l.client.KeyBuilder.KeyPollLane(pollID), "1", redis.TTLLaneLock)
}

// Unlock releases the poll's lane
func (l *RedisLaneLocker) Unlock(ctx context.Context, pollID int64) error {
	return l.client.Delete(ctx, l.client.KeyBuilder.KeyPollLane(pollID))
}

// MarkInert parks the poll on every replica. The marker has no TTL;
// inert polls need operator intervention, not time.
func (l *RedisLaneLocker) MarkInert(ctx context.Context, pollID int64) error {
	return l.client.Set(ctx, l.client.KeyBuilder.KeyPollInert(pollID), "1", 0)
}

// IsInert reports whether any replica has parked the poll
func (l *RedisLaneLocker) IsInert(ctx context.Context, pollID int64) (bool, error) {
	n, err := l.client.Exists(ctx, l.client.KeyBuilder.KeyPollInert(pollID))
	return n > 0, err
}
