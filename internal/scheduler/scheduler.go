package scheduler

import (
	"context"

	"github.com/alitto/pond/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"flowback-engine/internal/config"
	"flowback-engine/internal/engine"
	"flowback-engine/internal/repository"
	"flowback-engine/pkg/clock"
)

// Scheduler scans for polls with elapsed phase boundaries and dispatches
// them to the engine on a bounded worker pool. A poll already on its lane
// just waits on the lane mutex, so duplicate dispatches are harmless.
type Scheduler struct {
	repo   repository.Store
	engine *engine.Engine
	cfg    *config.Config
	clock  clock.Clock
	logger *zap.Logger

	cron *cron.Cron
	pool pond.Pool
}

// New creates the scheduler with its cron and worker pool
func New(repo repository.Store, eng *engine.Engine, cfg *config.Config, clk clock.Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		repo:   repo,
		engine: eng,
		cfg:    cfg,
		clock:  clk,
		logger: logger,
		cron:   cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		pool:   pond.NewPool(cfg.AdvanceWorkers, pond.WithQueueSize(cfg.DueScanLimit)),
	}
}

// Start registers the scan job and starts the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.SchedulerSpec, func() {
		// the scan context only bounds the due-poll query; each
		// dispatched advance carries its own timeout
		rctx, cancel := context.WithTimeout(ctx, s.cfg.AdvanceTimeout)
		defer cancel()
		if err := s.Scan(rctx); err != nil {
			s.logger.Error("due-poll scan failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.cfg.SchedulerSpec))
	return nil
}

// Stop drains the cron loop and the worker pool
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.pool.StopAndWait()
	s.logger.Info("scheduler stopped")
}

// Scan dispatches every due poll to the engine. Each poll advances
// independently; one failing lane never blocks the rest. ctx bounds
// only the due-poll query: Scan returns as soon as the tasks are
// queued, so each task derives its own timeout rather than inheriting
// a context the caller may have cancelled already.
func (s *Scheduler) Scan(ctx context.Context) error {
	now := s.clock.Now()
	due, err := s.repo.ListDuePolls(ctx, now, s.cfg.DueScanLimit)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	s.logger.Debug("dispatching due polls",
		zap.Int("count", len(due)),
		zap.Time("now", now))

	for _, pollID := range due {
		id := pollID
		s.pool.Submit(func() {
			actx, cancel := context.WithTimeout(context.Background(), s.cfg.AdvanceTimeout)
			defer cancel()
			if err := s.engine.Advance(actx, id, now); err != nil {
				s.logger.Error("advance failed",
					zap.Int64("poll_id", id),
					zap.Error(err))
			}
		})
	}
	return nil
}

// TriggerRefresh requests an out-of-band advance for one poll, used when
// a ballot lands on a dynamic poll inside its recount window.
func (s *Scheduler) TriggerRefresh(pollID int64) {
	s.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AdvanceTimeout)
		defer cancel()
		if err := s.engine.Advance(ctx, pollID, s.clock.Now()); err != nil {
			s.logger.Error("refresh advance failed",
				zap.Int64("poll_id", pollID),
				zap.Error(err))
		}
	})
}
