package tally

import (
	"sort"

	"flowback-engine/internal/domain"
)

// Ranking computes positional scores for a ranking poll. A direct entry
// at priority r contributes r; a pool entry contributes r times the
// pool's mandate.
func Ranking(snapshot *domain.BallotSnapshot) map[int64]int64 {
	scores := map[int64]int64{}
	for _, b := range snapshot.Direct {
		for _, e := range b.Entries {
			scores[e.ProposalID] += int64(e.Priority)
		}
	}
	for _, b := range snapshot.Pool {
		for _, e := range b.Entries {
			scores[e.ProposalID] += int64(e.Priority) * int64(b.Mandate)
		}
	}
	return scores
}

// Rank orders proposals by descending score, breaking ties on earlier
// creation time.
func Rank(proposals []domain.Proposal, scores map[int64]int64) []domain.Proposal {
	out := make([]domain.Proposal, len(proposals))
	copy(out, proposals)
	for i := range out {
		out[i].Score = scores[out[i].ID]
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ScoreBatch converts a score map into a batched write covering every
// proposal of the poll; unvoted proposals persist a zero score.
func ScoreBatch(proposals []domain.Proposal, scores map[int64]int64) []domain.ProposalScore {
	batch := make([]domain.ProposalScore, len(proposals))
	for i, p := range proposals {
		batch[i] = domain.ProposalScore{ProposalID: p.ID, Score: scores[p.ID]}
	}
	return batch
}
