package container

import (
	"context"

	"flowback-engine/internal/ballot"
	"flowback-engine/internal/config"
	"flowback-engine/internal/engine"
	"flowback-engine/internal/notify"
	"flowback-engine/internal/repository"
	"flowback-engine/internal/scheduler"
	"flowback-engine/pkg/clock"
	"flowback-engine/pkg/database"
	"flowback-engine/pkg/logger"
	"flowback-engine/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          *database.PostgresDB
	RedisClient *redis.Client
	Store       repository.Store
	Ballots     *ballot.Store
	Engine      *engine.Engine
	Scheduler   *scheduler.Scheduler
	Publisher   notify.Publisher
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, cfg.AdvanceWorkers)
	if err != nil {
		return nil, err
	}

	// Redis is optional: without it the engine runs single-replica with
	// log-only notifications
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize Redis client, proceeding without it")
		} else {
			redisClient = client
			log.Info("Redis client initialized successfully")
		}
	} else {
		log.Info("Redis URL not configured, proceeding without it")
	}

	store := repository.NewPostgres(db)
	clk := clock.System()

	var publisher notify.Publisher
	if redisClient != nil {
		publisher = notify.NewRedisPublisher(redisClient, log.Logger)
	} else {
		publisher = notify.NewLogPublisher(log.Logger)
	}

	eng := engine.New(store, cfg, clk, publisher, log.Logger)
	if redisClient != nil {
		eng.SetLaneLocker(engine.NewRedisLaneLocker(redisClient))
	}

	sched := scheduler.New(store, eng, cfg, clk, log.Logger)

	ballots := ballot.NewStore(store, cfg, clk, log.Logger)
	ballots.OnRefresh(sched.TriggerRefresh)

	return &Container{
		Config:      cfg,
		Logger:      log,
		DB:          db,
		RedisClient: redisClient,
		Store:       store,
		Ballots:     ballots,
		Engine:      eng,
		Scheduler:   sched,
		Publisher:   publisher,
	}, nil
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetDB returns the database pool
func (c *Container) GetDB() *database.PostgresDB {
	return c.DB
}

// GetRedisClient returns the Redis client (may be nil if not configured)
func (c *Container) GetRedisClient() *redis.Client {
	return c.RedisClient
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}
