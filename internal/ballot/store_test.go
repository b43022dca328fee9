package ballot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowback-engine/internal/config"
	"flowback-engine/internal/domain"
	"flowback-engine/internal/repository/memory"
	"flowback-engine/pkg/clock"
	apperrors "flowback-engine/pkg/errors"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		ScoreVoteFloor:      0,
		ScoreVoteCeiling:    100,
		DefaultQuorum:       50,
		DynamicPollsEnabled: true,
	}
}

func newPoll(pollType domain.PollType, dynamic bool) *domain.Poll {
	return &domain.Poll{
		ID:                     1,
		GroupID:                1,
		Name:                   "test poll",
		Type:                   pollType,
		Tag:                    "environment",
		Dynamic:                dynamic,
		Status:                 domain.StatusOngoing,
		Start:                  base,
		AreaVoteEnd:            base.Add(1 * time.Hour),
		ProposalEnd:            base.Add(2 * time.Hour),
		PredictionStatementEnd: base.Add(3 * time.Hour),
		PredictionBetEnd:       base.Add(4 * time.Hour),
		DelegateVoteEnd:        base.Add(5 * time.Hour),
		VoteEnd:                base.Add(6 * time.Hour),
		End:                    base.Add(7 * time.Hour),
	}
}

func setup(t *testing.T, pollType domain.PollType, dynamic bool) (*Store, *memory.Store, *clock.Manual) {
	t.Helper()
	repo := memory.NewStore()
	poll := newPoll(pollType, dynamic)
	repo.Polls[poll.ID] = poll
	repo.Proposals[poll.ID] = []domain.Proposal{
		{ID: 11, PollID: 1, CreatedAt: base},
		{ID: 12, PollID: 1, CreatedAt: base.Add(time.Minute)},
		{ID: 13, PollID: 1, CreatedAt: base.Add(2 * time.Minute)},
	}
	repo.Members[1] = map[int64]domain.Member{
		101: {ID: 101, GroupID: 1, Active: true, VoteRight: true},
		102: {ID: 102, GroupID: 1, Active: true, VoteRight: false},
		103: {ID: 103, GroupID: 1, Active: false, VoteRight: true},
	}

	// mid vote window for direct ballots
	clk := clock.NewManual(base.Add(330 * time.Minute))
	return NewStore(repo, testConfig(), clk, zap.NewNop()), repo, clk
}

func TestPutDirectReplacesPriorBallot(t *testing.T) {
	store, repo, _ := setup(t, domain.PollTypeRanking, false)
	ctx := context.Background()

	err := store.PutDirect(ctx, 1, 101, domain.RankedEntries([]int64{11, 12, 13}))
	require.NoError(t, err)

	err = store.PutDirect(ctx, 1, 101, domain.RankedEntries([]int64{13}))
	require.NoError(t, err)

	snapshot, err := repo.SnapshotBallots(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snapshot.Direct, 1)
	require.Len(t, snapshot.Direct[0].Entries, 1)
	assert.Equal(t, int64(13), snapshot.Direct[0].Entries[0].ProposalID)
	assert.Equal(t, 1, snapshot.Direct[0].Entries[0].Priority)
}

func TestPutDirectPermissionViolations(t *testing.T) {
	store, _, _ := setup(t, domain.PollTypeRanking, false)
	ctx := context.Background()
	entries := domain.RankedEntries([]int64{11})

	tests := []struct {
		name     string
		memberID int64
	}{
		{"not a member", 999},
		{"no vote right", 102},
		{"inactive member", 103},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.PutDirect(ctx, 1, tt.memberID, entries)
			assert.True(t, apperrors.IsKind(err, apperrors.KindPermissionViolation))
		})
	}
}

func TestPutDirectPhaseGate(t *testing.T) {
	store, _, clk := setup(t, domain.PollTypeRanking, false)
	ctx := context.Background()
	entries := domain.RankedEntries([]int64{11})

	// proposal phase: too early
	clk.Set(base.Add(90 * time.Minute))
	err := store.PutDirect(ctx, 1, 101, entries)
	assert.True(t, apperrors.IsKind(err, apperrors.KindPhaseViolation))

	// delegate vote window accepts direct ballots too
	clk.Set(base.Add(270 * time.Minute))
	assert.NoError(t, store.PutDirect(ctx, 1, 101, entries))

	// after vote end on a non-dynamic poll
	clk.Set(base.Add(390 * time.Minute))
	err = store.PutDirect(ctx, 1, 101, entries)
	assert.True(t, apperrors.IsKind(err, apperrors.KindPhaseViolation))
}

func TestPutDirectDynamicStaysMutable(t *testing.T) {
	store, _, clk := setup(t, domain.PollTypeRanking, true)
	ctx := context.Background()

	// between vote_end and end, dynamic polls still accept ballots
	clk.Set(base.Add(390 * time.Minute))
	assert.NoError(t, store.PutDirect(ctx, 1, 101, domain.RankedEntries([]int64{11})))
}

func TestPutDirectShapeViolations(t *testing.T) {
	store, _, _ := setup(t, domain.PollTypeRanking, false)
	ctx := context.Background()

	tests := []struct {
		name    string
		entries []domain.BallotEntry
	}{
		{"empty ballot", nil},
		{"unknown proposal", []domain.BallotEntry{{ProposalID: 999, Priority: 1}}},
		{"duplicate proposal", []domain.BallotEntry{
			{ProposalID: 11, Priority: 2},
			{ProposalID: 11, Priority: 1},
		}},
		{"priorities not descending from length", []domain.BallotEntry{
			{ProposalID: 11, Priority: 5},
			{ProposalID: 12, Priority: 4},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.PutDirect(ctx, 1, 101, tt.entries)
			assert.True(t, apperrors.IsKind(err, apperrors.KindShapeViolation))
		})
	}
}

func TestPutDirectCardinalBounds(t *testing.T) {
	store, repo, _ := setup(t, domain.PollTypeCardinal, false)
	ctx := context.Background()

	err := store.PutDirect(ctx, 1, 101, []domain.BallotEntry{
		{ProposalID: 11, RawScore: 101},
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindShapeViolation))

	err = store.PutDirect(ctx, 1, 101, []domain.BallotEntry{
		{ProposalID: 11, RawScore: 100},
		{ProposalID: 12, RawScore: 0},
	})
	require.NoError(t, err)

	snapshot, err := repo.SnapshotBallots(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snapshot.Direct, 1)
}

func TestScheduleBallots(t *testing.T) {
	store, repo, clk := setup(t, domain.PollTypeSchedule, false)
	ctx := context.Background()
	clk.Set(base.Add(3 * time.Hour))

	// direct schedule ballots may only approve
	err := store.PutDirect(ctx, 1, 101, []domain.BallotEntry{
		{ProposalID: 11, Vote: false},
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindShapeViolation))

	err = store.PutDirect(ctx, 1, 101, []domain.BallotEntry{
		{ProposalID: 11, Vote: true},
		{ProposalID: 12, Vote: true},
	})
	require.NoError(t, err)

	// pools may vote against
	err = store.PutPool(ctx, 1, 201, []domain.BallotEntry{
		{ProposalID: 11, Vote: true},
		{ProposalID: 12, Vote: false},
	})
	require.NoError(t, err)

	snapshot, err := repo.SnapshotBallots(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, snapshot.Direct, 1)
	assert.Len(t, snapshot.Pool, 1)
}

func TestPutPoolOnlyDuringDelegateVote(t *testing.T) {
	store, _, clk := setup(t, domain.PollTypeRanking, false)
	ctx := context.Background()
	entries := domain.RankedEntries([]int64{11, 12})

	// vote phase rejects pool ballots
	err := store.PutPool(ctx, 1, 201, entries)
	assert.True(t, apperrors.IsKind(err, apperrors.KindPhaseViolation))

	clk.Set(base.Add(270 * time.Minute))
	assert.NoError(t, store.PutPool(ctx, 1, 201, entries))
}

func TestClearDirectIdempotent(t *testing.T) {
	store, repo, _ := setup(t, domain.PollTypeRanking, false)
	ctx := context.Background()

	require.NoError(t, store.PutDirect(ctx, 1, 101, domain.RankedEntries([]int64{11})))
	require.NoError(t, store.ClearDirect(ctx, 1, 101))
	require.NoError(t, store.ClearDirect(ctx, 1, 101))

	snapshot, err := repo.SnapshotBallots(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Direct)
}

func TestDynamicRefreshTrigger(t *testing.T) {
	store, _, clk := setup(t, domain.PollTypeRanking, true)
	ctx := context.Background()

	var refreshed []int64
	store.OnRefresh(func(pollID int64) { refreshed = append(refreshed, pollID) })

	// mid vote window: no refresh yet
	require.NoError(t, store.PutDirect(ctx, 1, 101, domain.RankedEntries([]int64{11})))
	assert.Empty(t, refreshed)

	// inside the recount window the write triggers a refresh
	clk.Set(base.Add(390 * time.Minute))
	require.NoError(t, store.PutDirect(ctx, 1, 101, domain.RankedEntries([]int64{12})))
	assert.Equal(t, []int64{1}, refreshed)
}
