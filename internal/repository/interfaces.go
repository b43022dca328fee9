package repository

import (
	"context"
	"time"

	"flowback-engine/internal/domain"
)

// PollRepository defines poll and proposal data operations
type PollRepository interface {
	// GetPoll retrieves a poll by ID
	GetPoll(ctx context.Context, pollID int64) (*domain.Poll, error)

	// SavePollStatus persists a status transition together with the
	// participant count observed by the tally
	SavePollStatus(ctx context.Context, pollID int64, status domain.PollStatus, participants int) error

	// SavePollPhase records the last phase the engine observed for the poll
	SavePollPhase(ctx context.Context, pollID int64, phase string) error

	// SetPollTag sets the poll's tag after area selection
	SetPollTag(ctx context.Context, pollID int64, tag string) error

	// MarkResultComputed flags the poll's final tally as committed
	MarkResultComputed(ctx context.Context, pollID int64) error

	// ListDuePolls returns non-terminal polls with a phase boundary at or
	// before now, oldest boundary first
	ListDuePolls(ctx context.Context, now time.Time, limit int) ([]int64, error)

	// ListProposals returns the poll's proposals ordered by creation time
	ListProposals(ctx context.Context, pollID int64) ([]domain.Proposal, error)

	// SaveProposalScores writes all proposal scores of a poll in one batch
	SaveProposalScores(ctx context.Context, pollID int64, scores []domain.ProposalScore) error
}

// BallotRepository defines ballot persistence with replace semantics
type BallotRepository interface {
	// ReplaceDirectBallot atomically deletes any prior ballot of the
	// member and inserts the new one
	ReplaceDirectBallot(ctx context.Context, ballot *domain.DirectBallot) error

	// ReplacePoolBallot atomically replaces a delegate pool's ballot
	ReplacePoolBallot(ctx context.Context, ballot *domain.PoolBallot) error

	// ClearDirectBallot removes a member's ballot; idempotent
	ClearDirectBallot(ctx context.Context, pollID, memberID int64) error

	// ClearPoolBallot removes a pool's ballot; idempotent
	ClearPoolBallot(ctx context.Context, pollID, poolID int64) error

	// SnapshotBallots yields a consistent read of all ballots for tallying
	SnapshotBallots(ctx context.Context, pollID int64) (*domain.BallotSnapshot, error)

	// SavePoolMandates writes resolved mandates onto pool ballots in one batch
	SavePoolMandates(ctx context.Context, pollID int64, mandates []domain.PoolMandate) error
}

// GroupRepository defines group membership and delegation reads
type GroupRepository interface {
	// GetMember retrieves a group member, nil when not a member
	GetMember(ctx context.Context, groupID, memberID int64) (*domain.Member, error)

	// ActiveMemberCount returns the number of active members in the group
	ActiveMemberCount(ctx context.Context, groupID int64) (int, error)

	// ListDelegations returns all delegation edges in the group
	ListDelegations(ctx context.Context, groupID int64) ([]domain.Delegation, error)
}

// PredictionRepository defines prediction statement and bet operations
type PredictionRepository interface {
	// ListStatements returns the poll's prediction statements ordered by creation time
	ListStatements(ctx context.Context, pollID int64) ([]domain.PredictionStatement, error)

	// ListBets returns all bets on the poll's statements
	ListBets(ctx context.Context, pollID int64) ([]domain.PredictionBet, error)

	// History returns decided statements in the tag area, newest first,
	// with per-predictor probability-scaled bets
	History(ctx context.Context, tag string, limit int) ([]domain.HistoricalStatement, error)

	// SaveCombinedBets writes combined bets for a poll in one batch
	SaveCombinedBets(ctx context.Context, pollID int64, bets []domain.CombinedBet) error
}

// AreaRepository defines area statement operations
type AreaRepository interface {
	// ListAreaStatements returns the poll's area statements with vote counts
	ListAreaStatements(ctx context.Context, pollID int64) ([]domain.AreaStatement, error)

	// DeleteAreaStatements removes all area records of the poll after selection
	DeleteAreaStatements(ctx context.Context, pollID int64) error
}

// ScheduleRepository receives winning windows of finished schedule polls
type ScheduleRepository interface {
	// UpsertScheduleEvent inserts or updates the event keyed on (origin, poll)
	UpsertScheduleEvent(ctx context.Context, event *domain.ScheduleEvent) error
}

// Store aggregates every repository surface the engine reads or writes
type Store interface {
	PollRepository
	BallotRepository
	GroupRepository
	PredictionRepository
	AreaRepository
	ScheduleRepository
}
