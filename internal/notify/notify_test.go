package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowback-engine/internal/domain"
	"flowback-engine/pkg/redis"
)

func TestRedisPublisher(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient("redis://"+mr.Addr(), "development", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	// raw subscriber on the events channel
	sub := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = sub.Close() })

	ctx := context.Background()
	pubsub := sub.Subscribe(ctx, client.KeyBuilder.KeyPollEvents())
	t.Cleanup(func() { _ = pubsub.Close() })
	_, err = pubsub.Receive(ctx)
	require.NoError(t, err)

	publisher := NewRedisPublisher(client, zap.NewNop())
	event := Event{
		Kind:     KindPhase,
		PollID:   42,
		OldPhase: "vote",
		NewPhase: "result",
		Status:   domain.StatusFinished,
		At:       time.Date(2025, 3, 1, 19, 0, 0, 0, time.UTC),
	}
	require.NoError(t, publisher.Publish(ctx, event))

	msg, err := pubsub.ReceiveTimeout(ctx, 2*time.Second)
	require.NoError(t, err)
	payload, ok := msg.(*goredis.Message)
	require.True(t, ok)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(payload.Payload), &got))
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, KindPhase, got.Kind)
	assert.Equal(t, int64(42), got.PollID)
	assert.Equal(t, "result", got.NewPhase)
	assert.Equal(t, domain.StatusFinished, got.Status)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	require.NoError(t, r.Publish(ctx, Event{Kind: KindPhase, PollID: 1}))
	require.NoError(t, r.Publish(ctx, Event{Kind: KindResult, PollID: 1}))

	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, KindPhase, events[0].Kind)
	assert.Equal(t, KindResult, events[1].Kind)
	assert.NotEmpty(t, events[0].ID)
}
