package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Client) {
	// Create a miniredis server
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	// Create client with test redis
	client, err := NewClient("redis://"+mr.Addr(), "development", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestNewClientInvalidURL(t *testing.T) {
	client, err := NewClient("invalid://url", "development", zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestSetAndGet(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	key := client.KeyBuilder.KeyCustom("engine:test:%d", 1)
	require.NoError(t, client.Set(ctx, key, "value", time.Minute))

	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "value", got)
}

func TestSetNXLaneLock(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	key := client.KeyBuilder.KeyPollLane(42)

	ok, err := client.SetNX(ctx, key, "1", TTLLaneLock)
	require.NoError(t, err)
	assert.True(t, ok)

	// second claim fails while the lane is held
	ok, err = client.SetNX(ctx, key, "1", TTLLaneLock)
	require.NoError(t, err)
	assert.False(t, ok)

	// the TTL frees a lane abandoned by a dead replica
	mr.FastForward(TTLLaneLock + time.Second)
	ok, err = client.SetNX(ctx, key, "1", TTLLaneLock)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteReleasesLane(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	key := client.KeyBuilder.KeyPollLane(7)
	ok, err := client.SetNX(ctx, key, "1", TTLLaneLock)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, client.Delete(ctx, key))

	ok, err = client.SetNX(ctx, key, "1", TTLLaneLock)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKeyBuilderPrefix(t *testing.T) {
	kb := NewKeyBuilder("development")
	assert.Equal(t, "staging:engine:poll:5:lane", kb.KeyPollLane(5))
	assert.Equal(t, "staging:engine:poll:events", kb.KeyPollEvents())

	kb = NewKeyBuilder("production")
	assert.Equal(t, "prod:engine:poll:5:lane", kb.KeyPollLane(5))
}

func TestHealth(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	assert.NoError(t, client.Health(ctx))

	mr.Close()
	assert.Error(t, client.Health(ctx))
}
