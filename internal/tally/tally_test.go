package tally

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowback-engine/internal/domain"
	apperrors "flowback-engine/pkg/errors"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRankingPositionalScores(t *testing.T) {
	// three voters, three proposals, a three-way tie
	snapshot := &domain.BallotSnapshot{
		Direct: []domain.DirectBallot{
			{MemberID: 101, Entries: domain.RankedEntries([]int64{11, 12, 13})},
			{MemberID: 102, Entries: domain.RankedEntries([]int64{12, 13, 11})},
			{MemberID: 103, Entries: domain.RankedEntries([]int64{13, 11, 12})},
		},
	}

	scores := Ranking(snapshot)
	assert.Equal(t, map[int64]int64{11: 6, 12: 6, 13: 6}, scores)
}

func TestRankingPoolMandateWeight(t *testing.T) {
	snapshot := &domain.BallotSnapshot{
		Direct: []domain.DirectBallot{
			{MemberID: 101, Entries: domain.RankedEntries([]int64{11, 12})},
		},
		Pool: []domain.PoolBallot{
			{PoolID: 201, Mandate: 3, Entries: domain.RankedEntries([]int64{12, 11})},
			{PoolID: 202, Mandate: 0, Entries: domain.RankedEntries([]int64{11, 12})},
		},
	}

	scores := Ranking(snapshot)
	// 11: 2 direct + 1*3 pool, zero-mandate pool contributes nothing
	assert.Equal(t, int64(5), scores[11])
	assert.Equal(t, int64(7), scores[12])
}

func TestRankOrdersByScoreThenCreation(t *testing.T) {
	proposals := []domain.Proposal{
		{ID: 11, CreatedAt: base},
		{ID: 12, CreatedAt: base.Add(time.Minute)},
		{ID: 13, CreatedAt: base.Add(2 * time.Minute)},
	}
	scores := map[int64]int64{11: 4, 12: 9, 13: 4}

	ranked := Rank(proposals, scores)
	require.Len(t, ranked, 3)
	assert.Equal(t, int64(12), ranked[0].ID)
	// tie between 11 and 13 breaks on creation time
	assert.Equal(t, int64(11), ranked[1].ID)
	assert.Equal(t, int64(13), ranked[2].ID)
}

func TestScoreBatchCoversUnvotedProposals(t *testing.T) {
	proposals := []domain.Proposal{{ID: 11}, {ID: 12}}
	batch := ScoreBatch(proposals, map[int64]int64{11: 7})
	assert.Equal(t, []domain.ProposalScore{
		{ProposalID: 11, Score: 7},
		{ProposalID: 12, Score: 0},
	}, batch)
}

func TestCardinal(t *testing.T) {
	snapshot := &domain.BallotSnapshot{
		Direct: []domain.DirectBallot{
			{MemberID: 101, Entries: []domain.BallotEntry{
				{ProposalID: 11, RawScore: 80},
				{ProposalID: 12, RawScore: 20},
			}},
		},
		Pool: []domain.PoolBallot{
			{PoolID: 201, Mandate: 2, Entries: []domain.BallotEntry{
				{ProposalID: 11, RawScore: 50},
			}},
		},
	}

	scores, err := Cardinal(snapshot, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{11: 180, 12: 20}, scores)
}

func TestCardinalRejectsOutOfRangeBeforeScoring(t *testing.T) {
	snapshot := &domain.BallotSnapshot{
		Direct: []domain.DirectBallot{
			{MemberID: 101, Entries: []domain.BallotEntry{{ProposalID: 11, RawScore: 50}}},
			{MemberID: 102, Entries: []domain.BallotEntry{{ProposalID: 12, RawScore: 101}}},
		},
	}

	scores, err := Cardinal(snapshot, 0, 100)
	assert.Nil(t, scores)
	assert.True(t, apperrors.IsKind(err, apperrors.KindShapeViolation))
}

func TestScheduleScoresAndWinner(t *testing.T) {
	w1 := base.Add(24 * time.Hour)
	w2 := base.Add(48 * time.Hour)
	end1 := w1.Add(time.Hour)
	end2 := w2.Add(time.Hour)

	proposals := []domain.Proposal{
		{ID: 11, EventStart: &w1, EventEnd: &end1, CreatedAt: base},
		{ID: 12, EventStart: &w2, EventEnd: &end2, CreatedAt: base.Add(time.Minute)},
	}

	snapshot := &domain.BallotSnapshot{
		Direct: []domain.DirectBallot{
			{MemberID: 101, Entries: []domain.BallotEntry{{ProposalID: 11, Vote: true}}},
			{MemberID: 102, Entries: []domain.BallotEntry{
				{ProposalID: 11, Vote: true},
				{ProposalID: 12, Vote: true},
			}},
		},
		Pool: []domain.PoolBallot{
			{PoolID: 201, Mandate: 2, Entries: []domain.BallotEntry{
				{ProposalID: 11, Vote: false},
				{ProposalID: 12, Vote: true},
			}},
		},
	}

	scores := Schedule(snapshot)
	// 11: 2 approvals - 2 mandates against; 12: 1 approval + 2 mandates
	assert.Equal(t, int64(0), scores[11])
	assert.Equal(t, int64(3), scores[12])

	winner := Winner(proposals, scores)
	require.NotNil(t, winner)
	assert.Equal(t, int64(12), winner.ID)
	assert.Equal(t, int64(3), winner.Score)
}

func TestWinnerTieBreaks(t *testing.T) {
	w1 := base.Add(24 * time.Hour)
	w2 := base.Add(48 * time.Hour)

	proposals := []domain.Proposal{
		{ID: 11, EventStart: &w1, CreatedAt: base},
		{ID: 12, EventStart: &w2, CreatedAt: base.Add(time.Minute)},
		{ID: 13, EventStart: &w2, CreatedAt: base.Add(2 * time.Minute)},
	}
	scores := map[int64]int64{11: 2, 12: 2, 13: 2}

	// all tied: the later window wins, and among equal windows the
	// earlier-created proposal
	winner := Winner(proposals, scores)
	require.NotNil(t, winner)
	assert.Equal(t, int64(12), winner.ID)
}

func TestWinnerEmpty(t *testing.T) {
	assert.Nil(t, Winner(nil, nil))
}

func TestParticipants(t *testing.T) {
	snapshot := &domain.BallotSnapshot{
		Direct: []domain.DirectBallot{{MemberID: 101}, {MemberID: 102}},
		Pool: []domain.PoolBallot{
			{PoolID: 201, Mandate: 3},
			{PoolID: 202, Mandate: 0},
		},
	}
	assert.Equal(t, 5, Participants(snapshot))
}

func TestQuorum(t *testing.T) {
	tests := []struct {
		name          string
		participants  int
		quorumPercent int
		activeMembers int
		want          domain.PollStatus
	}{
		{"threshold rounds up", 1, 50, 3, domain.StatusFailedQuorum}, // ceil(1.5) = 2
		{"exactly at threshold", 2, 50, 3, domain.StatusFinished},
		{"zero quorum always passes", 0, 0, 10, domain.StatusFinished},
		{"full quorum", 9, 100, 10, domain.StatusFailedQuorum},
		{"empty group", 0, 50, 0, domain.StatusFinished},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.participants, tt.quorumPercent, tt.activeMembers))
		})
	}
}
