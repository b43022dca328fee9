package delegation

import (
	"context"

	"go.uber.org/zap"

	"flowback-engine/internal/domain"
	"flowback-engine/internal/repository"
)

// Mandates computes the effective mandate count per delegate pool for a
// poll. A delegator counts toward a pool when they are active, their
// delegation covers the poll's tag, and they cast no direct ballot in
// this poll. Pools without a ballot are skipped.
func Mandates(poll *domain.Poll, delegations []domain.Delegation, snapshot *domain.BallotSnapshot) map[int64]int {
	mandates := make(map[int64]int, len(snapshot.Pool))
	for _, b := range snapshot.Pool {
		mandates[b.PoolID] = 0
	}
	if poll.Tag == "" {
		return mandates
	}

	directVoters := snapshot.DirectVoters()
	for _, d := range delegations {
		if !d.Active {
			continue
		}
		if _, voted := directVoters[d.DelegatorID]; voted {
			// a direct ballot overrides delegation for this poll only
			continue
		}
		if !d.Covers(poll.Tag) {
			continue
		}
		if _, hasBallot := mandates[d.PoolID]; !hasBallot {
			continue
		}
		mandates[d.PoolID]++
	}
	return mandates
}

// Resolver applies mandate counts to a poll's pool ballots and persists
// them so downstream tally reads are local.
type Resolver struct {
	repo   repository.Store
	logger *zap.Logger
}

// NewResolver creates a delegation resolver
func NewResolver(repo repository.Store, logger *zap.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// Resolve computes mandates for the poll, writes them back onto the pool
// ballots in the snapshot and persists them.
func (r *Resolver) Resolve(ctx context.Context, poll *domain.Poll, snapshot *domain.BallotSnapshot) (map[int64]int, error) {
	delegations, err := r.repo.ListDelegations(ctx, poll.GroupID)
	if err != nil {
		return nil, err
	}

	mandates := Mandates(poll, delegations, snapshot)

	batch := make([]domain.PoolMandate, 0, len(mandates))
	for i := range snapshot.Pool {
		m := mandates[snapshot.Pool[i].PoolID]
		snapshot.Pool[i].Mandate = m
		batch = append(batch, domain.PoolMandate{PoolID: snapshot.Pool[i].PoolID, Mandate: m})
	}
	if err := r.repo.SavePoolMandates(ctx, poll.ID, batch); err != nil {
		return nil, err
	}

	r.logger.Debug("mandates resolved",
		zap.Int64("poll_id", poll.ID),
		zap.Int("pools", len(batch)))
	return mandates, nil
}
