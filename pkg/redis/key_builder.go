package redis

import "fmt"

// Key patterns used by the engine
const (
	KeyPollLane   = "engine:poll:%d:lane"   // advisory lane lock per poll
	KeyPollInert  = "engine:poll:%d:inert"  // polls parked after a contract bug
	KeyPollEvents = "engine:poll:events"    // pub/sub channel for lifecycle events
)

// KeyBuilder provides environment-aware Redis key building
type KeyBuilder struct {
	prefix string // environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" {
		prefix = "staging"
	}
	return &KeyBuilder{prefix: prefix}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// KeyPollLane builds the advisory lock key for a poll's serial lane
func (kb *KeyBuilder) KeyPollLane(pollID int64) string {
	return kb.BuildKey(fmt.Sprintf(KeyPollLane, pollID))
}

// KeyPollInert builds the marker key for an inert poll
func (kb *KeyBuilder) KeyPollInert(pollID int64) string {
	return kb.BuildKey(fmt.Sprintf(KeyPollInert, pollID))
}

// KeyPollEvents builds the lifecycle events channel name
func (kb *KeyBuilder) KeyPollEvents() string {
	return kb.BuildKey(KeyPollEvents)
}

// KeyCustom builds a key from a custom pattern
func (kb *KeyBuilder) KeyCustom(pattern string, args ...interface{}) string {
	return kb.BuildKey(fmt.Sprintf(pattern, args...))
}
