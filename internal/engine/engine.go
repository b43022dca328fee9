package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"flowback-engine/internal/area"
	"flowback-engine/internal/config"
	"flowback-engine/internal/delegation"
	"flowback-engine/internal/domain"
	"flowback-engine/internal/notify"
	"flowback-engine/internal/phase"
	"flowback-engine/internal/prediction"
	"flowback-engine/internal/repository"
	"flowback-engine/internal/tally"
	"flowback-engine/pkg/clock"
	apperrors "flowback-engine/pkg/errors"
)

const (
	maxStoreAttempts = 3
	retryBackoffBase = 100 * time.Millisecond
)

// LaneLocker is an optional cross-replica coordinator per poll lane: an
// advisory lock plus a shared inert marker so a contract-bugged poll is
// parked on every replica, not just the one that hit the bug.
type LaneLocker interface {
	TryLock(ctx context.Context, pollID int64) (bool, error)
	Unlock(ctx context.Context, pollID int64) error
	MarkInert(ctx context.Context, pollID int64) error
	IsInert(ctx context.Context, pollID int64) (bool, error)
}

// Engine drives polls through their lifecycle. All mutations of one poll
// run on its serial lane: an in-process mutex plus, when configured, a
// cross-replica advisory lock.
type Engine struct {
	repo       repository.Store
	cfg        *config.Config
	clock      clock.Clock
	delegation *delegation.Resolver
	area       *area.Resolver
	aggregator *prediction.Aggregator
	publisher  notify.Publisher
	laneLocker LaneLocker
	logger     *zap.Logger

	lanes *xsync.Map[int64, *sync.Mutex]
	inert *xsync.Map[int64, struct{}]
}

// New creates the engine
func New(repo repository.Store, cfg *config.Config, clk clock.Clock, publisher notify.Publisher, logger *zap.Logger) *Engine {
	return &Engine{
		repo:       repo,
		cfg:        cfg,
		clock:      clk,
		delegation: delegation.NewResolver(repo, logger),
		area:       area.NewResolver(repo, logger),
		aggregator: prediction.New(cfg.PredictionSeed, logger),
		publisher:  publisher,
		logger:     logger,
		lanes:      xsync.NewMap[int64, *sync.Mutex](),
		inert:      xsync.NewMap[int64, struct{}](),
	}
}

// SetLaneLocker installs a cross-replica lane lock (Redis-backed in
// production; nil keeps single-replica in-process locking only).
func (e *Engine) SetLaneLocker(l LaneLocker) {
	e.laneLocker = l
}

// Advance moves the poll forward according to the wall clock: area
// selection once the area vote closes, dynamic recounts between vote_end
// and end, and final tally after end. Repeated calls at the same instant
// are no-ops for non-dynamic polls; terminal transitions commit once.
func (e *Engine) Advance(ctx context.Context, pollID int64, now time.Time) error {
	if _, bad := e.inert.Load(pollID); bad {
		e.logger.Debug("skipping inert poll", zap.Int64("poll_id", pollID))
		return nil
	}
	if e.laneLocker != nil {
		bad, err := e.laneLocker.IsInert(ctx, pollID)
		if err != nil {
			e.logger.Warn("failed to check inert marker",
				zap.Int64("poll_id", pollID),
				zap.Error(err))
		} else if bad {
			e.inert.Store(pollID, struct{}{})
			e.logger.Debug("skipping poll marked inert by another replica",
				zap.Int64("poll_id", pollID))
			return nil
		}
	}

	lane, _ := e.lanes.LoadOrStore(pollID, &sync.Mutex{})
	lane.Lock()
	defer lane.Unlock()

	if e.laneLocker != nil {
		ok, err := e.laneLocker.TryLock(ctx, pollID)
		if err != nil {
			return err
		}
		if !ok {
			// another replica holds the lane
			return nil
		}
		defer func() {
			if err := e.laneLocker.Unlock(context.WithoutCancel(ctx), pollID); err != nil {
				e.logger.Warn("failed to release lane lock",
					zap.Int64("poll_id", pollID),
					zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.AdvanceTimeout)
	defer cancel()

	var err error
	for attempt := 0; attempt < maxStoreAttempts; attempt++ {
		if attempt > 0 {
			backoff := retryBackoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		err = e.advanceOnce(ctx, pollID, now)
		if err == nil || !apperrors.IsKind(err, apperrors.KindTransientStore) {
			break
		}
		e.logger.Warn("transient store error during advance",
			zap.Int64("poll_id", pollID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	if apperrors.IsKind(err, apperrors.KindContractBug) {
		e.inert.Store(pollID, struct{}{})
		if e.laneLocker != nil {
			if merr := e.laneLocker.MarkInert(context.WithoutCancel(ctx), pollID); merr != nil {
				e.logger.Warn("failed to persist inert marker",
					zap.Int64("poll_id", pollID),
					zap.Error(merr))
			}
		}
		e.logger.Error("poll lane marked inert",
			zap.Int64("poll_id", pollID),
			zap.Error(err))
	}
	return err
}

// Results returns the poll together with its proposals in standing
// order: descending score, ties broken on earlier creation. Before
// finalization the scores are whatever the last recount produced.
func (e *Engine) Results(ctx context.Context, pollID int64) (*domain.Poll, []domain.Proposal, error) {
	poll, err := e.repo.GetPoll(ctx, pollID)
	if err != nil {
		return nil, nil, err
	}
	proposals, err := e.repo.ListProposals(ctx, pollID)
	if err != nil {
		return nil, nil, err
	}
	scores := make(map[int64]int64, len(proposals))
	for _, p := range proposals {
		scores[p.ID] = p.Score
	}
	return poll, tally.Rank(proposals, scores), nil
}

func (e *Engine) advanceOnce(ctx context.Context, pollID int64, now time.Time) error {
	poll, err := e.repo.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.Status.Terminal() {
		return nil
	}
	if err := poll.ValidateTimeline(); err != nil {
		return apperrors.NewContractBug("poll timeline out of order", err)
	}

	// area selection happens once the area vote window has closed; the
	// records are deleted afterwards so re-running is a no-op
	if poll.Type != domain.PollTypeSchedule && now.After(poll.AreaVoteEnd) {
		if err := e.area.Apply(ctx, poll); err != nil {
			return err
		}
	}

	switch {
	case now.After(poll.End):
		if !poll.ResultComputed {
			if err := e.finalize(ctx, poll, now); err != nil {
				return err
			}
		}
	case poll.Dynamic && e.cfg.DynamicPollsEnabled && now.After(poll.VoteEnd):
		if err := e.recount(ctx, poll); err != nil {
			return err
		}
	}

	return e.recordPhase(ctx, poll, now)
}

// recount recomputes proposal scores for a dynamic poll without touching
// its status.
func (e *Engine) recount(ctx context.Context, poll *domain.Poll) error {
	snapshot, err := e.repo.SnapshotBallots(ctx, poll.ID)
	if err != nil {
		return err
	}
	if _, err := e.delegation.Resolve(ctx, poll, snapshot); err != nil {
		return err
	}

	proposals, err := e.repo.ListProposals(ctx, poll.ID)
	if err != nil {
		return err
	}
	scores, err := e.scores(poll, snapshot)
	if err != nil {
		return err
	}
	if err := e.repo.SaveProposalScores(ctx, poll.ID, tally.ScoreBatch(proposals, scores)); err != nil {
		return err
	}

	e.logger.Debug("dynamic recount",
		zap.Int64("poll_id", poll.ID),
		zap.Int("proposals", len(proposals)))
	return nil
}

// finalize runs the terminal tally: PROCESSING, scores, quorum decision,
// schedule emission and prediction aggregation, then FINISHED or
// FAILED_QUORUM.
func (e *Engine) finalize(ctx context.Context, poll *domain.Poll, now time.Time) error {
	if err := e.repo.SavePollStatus(ctx, poll.ID, domain.StatusProcessing, poll.Participants); err != nil {
		return err
	}
	poll.Status = domain.StatusProcessing

	status := domain.StatusFailedQuorum
	participants := 0

	// a poll that never got a tag skips tallying and fails quorum by the
	// normal path
	if poll.Tag != "" || poll.Type == domain.PollTypeSchedule {
		snapshot, err := e.repo.SnapshotBallots(ctx, poll.ID)
		if err != nil {
			return err
		}
		if _, err := e.delegation.Resolve(ctx, poll, snapshot); err != nil {
			return err
		}

		proposals, err := e.repo.ListProposals(ctx, poll.ID)
		if err != nil {
			return err
		}
		scores, err := e.scores(poll, snapshot)
		if err != nil {
			return err
		}
		if err := e.repo.SaveProposalScores(ctx, poll.ID, tally.ScoreBatch(proposals, scores)); err != nil {
			return err
		}

		participants = tally.Participants(snapshot)
		activeMembers, err := e.repo.ActiveMemberCount(ctx, poll.GroupID)
		if err != nil {
			return err
		}
		status = tally.Decide(participants, poll.QuorumPercent(e.cfg.DefaultQuorum), activeMembers)

		if poll.Type == domain.PollTypeSchedule && status == domain.StatusFinished {
			if err := e.emitWinner(ctx, poll, proposals, scores); err != nil {
				return err
			}
		}
	}

	if poll.Type != domain.PollTypeSchedule {
		if err := e.aggregatePredictions(ctx, poll); err != nil {
			return err
		}
	}

	if err := e.repo.SavePollStatus(ctx, poll.ID, status, participants); err != nil {
		return err
	}
	if err := e.repo.MarkResultComputed(ctx, poll.ID); err != nil {
		return err
	}
	poll.Status = status
	poll.Participants = participants

	if err := e.publisher.Publish(ctx, notify.Event{
		Kind:   notify.KindResult,
		PollID: poll.ID,
		Status: status,
		At:     now,
	}); err != nil {
		e.logger.Warn("failed to publish result event", zap.Error(err))
	}

	e.logger.Info("poll finalized",
		zap.Int64("poll_id", poll.ID),
		zap.String("status", string(status)),
		zap.Int("participants", participants))
	return nil
}

// scores dispatches to the poll type's tally algorithm
func (e *Engine) scores(poll *domain.Poll, snapshot *domain.BallotSnapshot) (map[int64]int64, error) {
	switch poll.Type {
	case domain.PollTypeRanking:
		return tally.Ranking(snapshot), nil
	case domain.PollTypeCardinal:
		return tally.Cardinal(snapshot, e.cfg.ScoreVoteFloor, e.cfg.ScoreVoteCeiling)
	case domain.PollTypeSchedule:
		return tally.Schedule(snapshot), nil
	default:
		return nil, apperrors.NewContractBug(fmt.Sprintf("unknown poll type %q", poll.Type), nil)
	}
}

// emitWinner hands the winning time window to the schedule collaborator.
// The upsert is keyed on (origin, poll) so dynamic re-tallies update the
// event in place.
func (e *Engine) emitWinner(ctx context.Context, poll *domain.Poll, proposals []domain.Proposal, scores map[int64]int64) error {
	winner := tally.Winner(proposals, scores)
	if winner == nil || winner.EventStart == nil || winner.EventEnd == nil {
		return nil
	}
	event := &domain.ScheduleEvent{
		ID:          uuid.NewString(),
		Origin:      domain.ScheduleEventOrigin,
		PollID:      poll.ID,
		Start:       *winner.EventStart,
		End:         *winner.EventEnd,
		Title:       fmt.Sprintf("Poll %s result", poll.Name),
		Description: fmt.Sprintf("Winning window of poll %d", poll.ID),
	}
	if err := e.repo.UpsertScheduleEvent(ctx, event); err != nil {
		return err
	}
	if err := e.publisher.Publish(ctx, notify.Event{
		Kind:   notify.KindSchedule,
		PollID: poll.ID,
		At:     e.clock.Now(),
	}); err != nil {
		e.logger.Warn("failed to publish schedule event", zap.Error(err))
	}
	return nil
}

// aggregatePredictions computes combined bets for every statement of the
// poll from the tag area's decided history.
func (e *Engine) aggregatePredictions(ctx context.Context, poll *domain.Poll) error {
	statements, err := e.repo.ListStatements(ctx, poll.ID)
	if err != nil {
		return err
	}
	if len(statements) == 0 {
		return nil
	}
	bets, err := e.repo.ListBets(ctx, poll.ID)
	if err != nil {
		return err
	}
	var history []domain.HistoricalStatement
	if poll.Tag != "" {
		history, err = e.repo.History(ctx, poll.Tag, e.cfg.PredictionHistoryLimit)
		if err != nil {
			return err
		}
	}

	combined, err := e.aggregator.CombineAll(statements, bets, history)
	if err != nil {
		return err
	}
	return e.repo.SaveCombinedBets(ctx, poll.ID, combined)
}

// recordPhase persists the observed phase and publishes the transition
func (e *Engine) recordPhase(ctx context.Context, poll *domain.Poll, now time.Time) error {
	after := phase.Resolve(poll, now)
	if string(after) == poll.LastPhase {
		return nil
	}
	if err := e.repo.SavePollPhase(ctx, poll.ID, string(after)); err != nil {
		return err
	}
	if err := e.publisher.Publish(ctx, notify.Event{
		Kind:     notify.KindPhase,
		PollID:   poll.ID,
		OldPhase: poll.LastPhase,
		NewPhase: string(after),
		At:       now,
	}); err != nil {
		e.logger.Warn("failed to publish phase event", zap.Error(err))
	}
	poll.LastPhase = string(after)
	return nil
}
