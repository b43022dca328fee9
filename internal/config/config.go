package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the engine
type Config struct {
	Port        string
	LogLevel    string
	Environment string
	DatabaseURL string
	RedisURL    string

	// Ballot and tally surface
	ScoreVoteFloor   int
	ScoreVoteCeiling int
	DefaultQuorum    int // percent, applied when a poll has no quorum of its own

	// Prediction aggregation
	PredictionHistoryLimit int
	PredictionSeed         int64

	// Scheduler and lanes
	DynamicPollsEnabled bool
	SchedulerSpec       string
	AdvanceWorkers      int
	AdvanceTimeout      time.Duration
	DueScanLimit        int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Environment: getEnv("ENVIRONMENT", "production"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		ScoreVoteFloor:   getIntEnv("SCORE_VOTE_FLOOR", 0),
		ScoreVoteCeiling: getIntEnv("SCORE_VOTE_CEILING", 100),
		DefaultQuorum:    getIntEnv("DEFAULT_QUORUM", 50),

		PredictionHistoryLimit: getIntEnv("PREDICTION_HISTORY_LIMIT", 100),
		PredictionSeed:         int64(getIntEnv("PREDICTION_SEED", 1)),

		DynamicPollsEnabled: getBoolEnv("DYNAMIC_POLLS_ENABLED", true),
		SchedulerSpec:       getEnv("SCHEDULER_SPEC", "*/15 * * * * *"),
		AdvanceWorkers:      getIntEnv("ADVANCE_WORKERS", 8),
		AdvanceTimeout:      getDurationEnv("ADVANCE_TIMEOUT", 30*time.Second),
		DueScanLimit:        getIntEnv("DUE_SCAN_LIMIT", 200),
	}, nil
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
