package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flowback-engine/internal/domain"
	"flowback-engine/pkg/redis"
)

// Event kinds published by the engine
const (
	KindPhase    = "phase"
	KindResult   = "result"
	KindSchedule = "schedule"
)

// Event is a poll lifecycle notification. Delivery is the host's
// concern; the engine only publishes.
type Event struct {
	ID       string            `json:"id"`
	Kind     string            `json:"kind"`
	PollID   int64             `json:"poll_id"`
	OldPhase string            `json:"old_phase,omitempty"`
	NewPhase string            `json:"new_phase,omitempty"`
	Status   domain.PollStatus `json:"status,omitempty"`
	At       time.Time         `json:"at"`
}

// Publisher delivers engine events to the outside world
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// RedisPublisher publishes events as JSON on a Redis channel
type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPublisher creates a Redis-backed publisher
func NewRedisPublisher(client *redis.Client, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger}
}

// Publish sends the event on the poll events channel. Publish failures
// are logged, not propagated: notifications never block a transition.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.client.KeyBuilder.KeyPollEvents(), payload); err != nil {
		p.logger.Warn("failed to publish poll event",
			zap.String("kind", event.Kind),
			zap.Int64("poll_id", event.PollID),
			zap.Error(err))
	}
	return nil
}

// LogPublisher logs events instead of delivering them, used when no
// Redis connection is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a log-only publisher
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event
func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.Info("poll event",
		zap.String("kind", event.Kind),
		zap.Int64("poll_id", event.PollID),
		zap.String("old_phase", event.OldPhase),
		zap.String("new_phase", event.NewPhase),
		zap.String("status", string(event.Status)))
	return nil
}

// Recorder collects events in memory for tests
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish records the event
func (r *Recorder) Publish(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything recorded
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
