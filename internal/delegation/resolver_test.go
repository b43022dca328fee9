package delegation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowback-engine/internal/domain"
	"flowback-engine/internal/repository/memory"
)

func taggedPoll(tag string) *domain.Poll {
	return &domain.Poll{ID: 1, GroupID: 1, Type: domain.PollTypeRanking, Tag: tag}
}

func snapshotWithPools(poolIDs ...int64) *domain.BallotSnapshot {
	s := &domain.BallotSnapshot{}
	for _, id := range poolIDs {
		s.Pool = append(s.Pool, domain.PoolBallot{PollID: 1, PoolID: id})
	}
	return s
}

func TestMandates(t *testing.T) {
	delegations := []domain.Delegation{
		{DelegatorID: 101, PoolID: 201, Tags: []string{"environment"}, Active: true},
		{DelegatorID: 102, PoolID: 201, Tags: []string{"environment", "budget"}, Active: true},
		{DelegatorID: 103, PoolID: 201, Tags: []string{"budget"}, Active: true},
		{DelegatorID: 104, PoolID: 201, Tags: []string{"environment"}, Active: false},
		{DelegatorID: 105, PoolID: 202, Tags: []string{"environment"}, Active: true},
	}

	t.Run("counts covering active delegators", func(t *testing.T) {
		m := Mandates(taggedPoll("environment"), delegations, snapshotWithPools(201, 202))
		assert.Equal(t, map[int64]int{201: 2, 202: 1}, m)
	})

	t.Run("direct ballot overrides delegation", func(t *testing.T) {
		snapshot := snapshotWithPools(201, 202)
		snapshot.Direct = []domain.DirectBallot{{PollID: 1, MemberID: 101}}
		m := Mandates(taggedPoll("environment"), delegations, snapshot)
		assert.Equal(t, map[int64]int{201: 1, 202: 1}, m)
	})

	t.Run("tag mismatch contributes nothing", func(t *testing.T) {
		m := Mandates(taggedPoll("housing"), delegations, snapshotWithPools(201, 202))
		assert.Equal(t, map[int64]int{201: 0, 202: 0}, m)
	})

	t.Run("pool without ballot is skipped", func(t *testing.T) {
		m := Mandates(taggedPoll("environment"), delegations, snapshotWithPools(202))
		assert.Equal(t, map[int64]int{202: 1}, m)
	})

	t.Run("tagless poll yields zero mandates", func(t *testing.T) {
		m := Mandates(taggedPoll(""), delegations, snapshotWithPools(201, 202))
		assert.Equal(t, map[int64]int{201: 0, 202: 0}, m)
	})
}

func TestResolvePersistsMandates(t *testing.T) {
	repo := memory.NewStore()
	poll := taggedPoll("environment")
	repo.Polls[poll.ID] = poll
	repo.Delegations[1] = []domain.Delegation{
		{DelegatorID: 101, PoolID: 201, Tags: []string{"environment"}, Active: true},
		{DelegatorID: 102, PoolID: 201, Tags: []string{"environment"}, Active: true},
	}
	repo.PoolBal[1] = map[int64]domain.PoolBallot{
		201: {PollID: 1, PoolID: 201, Entries: domain.RankedEntries([]int64{11}), UpdatedAt: time.Now()},
	}

	snapshot, err := repo.SnapshotBallots(context.Background(), 1)
	require.NoError(t, err)

	resolver := NewResolver(repo, zap.NewNop())
	mandates, err := resolver.Resolve(context.Background(), poll, snapshot)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{201: 2}, mandates)

	// mandates land both on the snapshot and in the store
	assert.Equal(t, 2, snapshot.Pool[0].Mandate)
	assert.Equal(t, 2, repo.PoolBal[1][201].Mandate)
}
