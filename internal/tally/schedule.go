package tally

import (
	"flowback-engine/internal/domain"
)

// Schedule computes for/against scores for a schedule poll. Direct
// approvals contribute +1; pool approvals contribute +mandate and pool
// disapprovals -mandate.
func Schedule(snapshot *domain.BallotSnapshot) map[int64]int64 {
	scores := map[int64]int64{}
	for _, b := range snapshot.Direct {
		for _, e := range b.Entries {
			if e.Vote {
				scores[e.ProposalID]++
			}
		}
	}
	for _, b := range snapshot.Pool {
		for _, e := range b.Entries {
			if e.Vote {
				scores[e.ProposalID] += int64(b.Mandate)
			} else {
				scores[e.ProposalID] -= int64(b.Mandate)
			}
		}
	}
	return scores
}

// Winner selects the winning schedule proposal: maximum score, ties
// broken on the latest window start, then the earliest creation time.
// Returns nil when the poll has no proposals.
func Winner(proposals []domain.Proposal, scores map[int64]int64) *domain.Proposal {
	var winner *domain.Proposal
	for i := range proposals {
		p := &proposals[i]
		if winner == nil {
			winner = p
			continue
		}
		ps, ws := scores[p.ID], scores[winner.ID]
		switch {
		case ps > ws:
			winner = p
		case ps == ws:
			if laterStart(p, winner) {
				winner = p
			} else if sameStart(p, winner) && p.CreatedAt.Before(winner.CreatedAt) {
				winner = p
			}
		}
	}
	if winner == nil {
		return nil
	}
	clone := *winner
	clone.Score = scores[clone.ID]
	return &clone
}

func laterStart(a, b *domain.Proposal) bool {
	if a.EventStart == nil || b.EventStart == nil {
		return false
	}
	return a.EventStart.After(*b.EventStart)
}

func sameStart(a, b *domain.Proposal) bool {
	if a.EventStart == nil || b.EventStart == nil {
		return a.EventStart == b.EventStart
	}
	return a.EventStart.Equal(*b.EventStart)
}
