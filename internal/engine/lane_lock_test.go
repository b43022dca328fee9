package engine

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowback-engine/pkg/redis"
)

func setupLocker(t *testing.T) *RedisLaneLocker {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient("redis://"+mr.Addr(), "development", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLaneLocker(client)
}

func TestRedisLaneLockerSerializesLane(t *testing.T) {
	locker := setupLocker(t)
	ctx := context.Background()

	ok, err := locker.TryLock(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// the lane is held until released
	ok, err = locker.TryLock(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Unlock(ctx, 1))
	ok, err = locker.TryLock(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLaneLockerInertMarker(t *testing.T) {
	locker := setupLocker(t)
	ctx := context.Background()

	bad, err := locker.IsInert(ctx, 9)
	require.NoError(t, err)
	assert.False(t, bad)

	require.NoError(t, locker.MarkInert(ctx, 9))

	bad, err = locker.IsInert(ctx, 9)
	require.NoError(t, err)
	assert.True(t, bad)
}
