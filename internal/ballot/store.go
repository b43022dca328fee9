package ballot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"flowback-engine/internal/config"
	"flowback-engine/internal/domain"
	"flowback-engine/internal/phase"
	"flowback-engine/internal/repository"
	"flowback-engine/pkg/clock"
	apperrors "flowback-engine/pkg/errors"
)

// RefreshFunc is invoked after a ballot write on a dynamic poll whose
// vote window has closed, to trigger a recount.
type RefreshFunc func(pollID int64)

// Store validates and persists ballots. Writes carry replace semantics:
// the prior ballot is deleted and the new one inserted atomically.
type Store struct {
	repo    repository.Store
	cfg     *config.Config
	clock   clock.Clock
	refresh RefreshFunc
	logger  *zap.Logger
}

// NewStore creates a ballot store
func NewStore(repo repository.Store, cfg *config.Config, clk clock.Clock, logger *zap.Logger) *Store {
	return &Store{
		repo:   repo,
		cfg:    cfg,
		clock:  clk,
		logger: logger,
	}
}

// OnRefresh registers the dynamic recount trigger
func (s *Store) OnRefresh(fn RefreshFunc) {
	s.refresh = fn
}

// PutDirect validates and stores a group member's ballot, replacing any
// prior one.
func (s *Store) PutDirect(ctx context.Context, pollID, memberID int64, entries []domain.BallotEntry) error {
	poll, err := s.repo.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	now := s.clock.Now()

	member, err := s.repo.GetMember(ctx, poll.GroupID, memberID)
	if err != nil {
		return err
	}
	if member == nil || !member.Active {
		return apperrors.NewPermissionViolation("not an active member of the poll's group")
	}
	if !member.VoteRight {
		return apperrors.NewPermissionViolation("member lacks vote right")
	}

	if err := s.requireVotingPhase(poll, now, true); err != nil {
		return err
	}
	if err := s.validate(ctx, poll, entries, true); err != nil {
		return err
	}

	ballot := &domain.DirectBallot{
		PollID:    pollID,
		MemberID:  memberID,
		Entries:   entries,
		UpdatedAt: now,
	}
	if err := s.repo.ReplaceDirectBallot(ctx, ballot); err != nil {
		return err
	}

	s.logger.Debug("direct ballot stored",
		zap.Int64("poll_id", pollID),
		zap.Int64("member_id", memberID),
		zap.Int("entries", len(entries)))

	s.maybeRefresh(poll, now)
	return nil
}

// PutPool validates and stores a delegate pool's ballot
func (s *Store) PutPool(ctx context.Context, pollID, poolID int64, entries []domain.BallotEntry) error {
	poll, err := s.repo.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	now := s.clock.Now()

	if err := s.requireVotingPhase(poll, now, false); err != nil {
		return err
	}
	if err := s.validate(ctx, poll, entries, false); err != nil {
		return err
	}

	ballot := &domain.PoolBallot{
		PollID:    pollID,
		PoolID:    poolID,
		Entries:   entries,
		UpdatedAt: now,
	}
	if err := s.repo.ReplacePoolBallot(ctx, ballot); err != nil {
		return err
	}

	s.logger.Debug("pool ballot stored",
		zap.Int64("poll_id", pollID),
		zap.Int64("pool_id", poolID),
		zap.Int("entries", len(entries)))

	s.maybeRefresh(poll, now)
	return nil
}

// ClearDirect removes a member's ballot; idempotent
func (s *Store) ClearDirect(ctx context.Context, pollID, memberID int64) error {
	poll, err := s.repo.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	if err := s.requireVotingPhase(poll, s.clock.Now(), true); err != nil {
		return err
	}
	return s.repo.ClearDirectBallot(ctx, pollID, memberID)
}

// ClearPool removes a pool's ballot; idempotent
func (s *Store) ClearPool(ctx context.Context, pollID, poolID int64) error {
	poll, err := s.repo.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	if err := s.requireVotingPhase(poll, s.clock.Now(), false); err != nil {
		return err
	}
	return s.repo.ClearPoolBallot(ctx, pollID, poolID)
}

// Snapshot yields a consistent read of all ballots for tallying
func (s *Store) Snapshot(ctx context.Context, pollID int64) (*domain.BallotSnapshot, error) {
	return s.repo.SnapshotBallots(ctx, pollID)
}

// requireVotingPhase gates writes on the poll's current phase. Direct
// ballots are accepted during the delegate vote window as well; both
// kinds stay mutable through the dynamic recount window.
func (s *Store) requireVotingPhase(poll *domain.Poll, now time.Time, direct bool) error {
	if poll.Type == domain.PollTypeSchedule {
		return phase.Require(poll, now, phase.Schedule)
	}
	allowed := []phase.Label{phase.DelegateVote}
	if direct {
		allowed = append(allowed, phase.Vote)
	}
	if poll.Dynamic && s.cfg.DynamicPollsEnabled {
		allowed = append(allowed, phase.ResultDefault)
	}
	return phase.Require(poll, now, allowed...)
}

// validate enforces the structural invariants of a ballot against the
// poll's type and proposal set.
func (s *Store) validate(ctx context.Context, poll *domain.Poll, entries []domain.BallotEntry, direct bool) error {
	if len(entries) == 0 {
		return apperrors.NewShapeViolation("ballot has no entries", nil)
	}

	proposals, err := s.repo.ListProposals(ctx, poll.ID)
	if err != nil {
		return err
	}
	known := make(map[int64]struct{}, len(proposals))
	for _, p := range proposals {
		known[p.ID] = struct{}{}
	}

	seen := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := known[e.ProposalID]; !ok {
			return apperrors.NewShapeViolation("proposal not in poll", map[string]interface{}{
				"proposal_id": e.ProposalID,
			})
		}
		if _, dup := seen[e.ProposalID]; dup {
			return apperrors.NewShapeViolation("duplicate proposal in ballot", map[string]interface{}{
				"proposal_id": e.ProposalID,
			})
		}
		seen[e.ProposalID] = struct{}{}
	}

	switch poll.Type {
	case domain.PollTypeRanking:
		return validateRanking(entries)
	case domain.PollTypeCardinal:
		return s.validateCardinal(entries)
	case domain.PollTypeSchedule:
		return validateSchedule(entries, direct)
	default:
		return apperrors.NewContractBug(fmt.Sprintf("unknown poll type %q", poll.Type), nil)
	}
}

// validateRanking requires priorities to form the exact descending run
// len..1, i.e. a complete ordering of the listed proposals.
func validateRanking(entries []domain.BallotEntry) error {
	for i, e := range entries {
		if want := len(entries) - i; e.Priority != want {
			return apperrors.NewShapeViolation("ranking priorities must descend from list length", map[string]interface{}{
				"index":    i,
				"priority": e.Priority,
			})
		}
	}
	return nil
}

func (s *Store) validateCardinal(entries []domain.BallotEntry) error {
	floor, ceiling := s.cfg.ScoreVoteFloor, s.cfg.ScoreVoteCeiling
	for _, e := range entries {
		if e.RawScore < floor || e.RawScore > ceiling {
			return apperrors.NewShapeViolation("raw score out of range", map[string]interface{}{
				"proposal_id": e.ProposalID,
				"raw_score":   e.RawScore,
				"floor":       floor,
				"ceiling":     ceiling,
			})
		}
	}
	return nil
}

// validateSchedule allows only approvals on direct ballots; pools may
// vote against proposals.
func validateSchedule(entries []domain.BallotEntry, direct bool) error {
	if !direct {
		return nil
	}
	for _, e := range entries {
		if !e.Vote {
			return apperrors.NewShapeViolation("direct schedule votes must be approvals", map[string]interface{}{
				"proposal_id": e.ProposalID,
			})
		}
	}
	return nil
}

// maybeRefresh triggers a recount after writes that land in the dynamic
// result window.
func (s *Store) maybeRefresh(poll *domain.Poll, now time.Time) {
	if s.refresh == nil || !poll.Dynamic || !s.cfg.DynamicPollsEnabled {
		return
	}
	if now.Before(poll.VoteEnd) || now.After(poll.End) {
		return
	}
	s.refresh(poll.ID)
}
