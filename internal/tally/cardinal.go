package tally

import (
	"flowback-engine/internal/domain"
	apperrors "flowback-engine/pkg/errors"
)

// Cardinal computes score-vote sums for a cardinal poll. Direct raw
// scores contribute as-is; pool raw scores are weighted by mandate. Any
// raw score outside [floor, ceiling] fails the whole call before a
// single score is produced.
func Cardinal(snapshot *domain.BallotSnapshot, floor, ceiling int) (map[int64]int64, error) {
	check := func(raw int) error {
		if raw < floor || raw > ceiling {
			return apperrors.NewShapeViolation("raw score out of range", map[string]interface{}{
				"raw_score": raw,
				"floor":     floor,
				"ceiling":   ceiling,
			})
		}
		return nil
	}

	for _, b := range snapshot.Direct {
		for _, e := range b.Entries {
			if err := check(e.RawScore); err != nil {
				return nil, err
			}
		}
	}
	for _, b := range snapshot.Pool {
		for _, e := range b.Entries {
			if err := check(e.RawScore); err != nil {
				return nil, err
			}
		}
	}

	scores := map[int64]int64{}
	for _, b := range snapshot.Direct {
		for _, e := range b.Entries {
			scores[e.ProposalID] += int64(e.RawScore)
		}
	}
	for _, b := range snapshot.Pool {
		for _, e := range b.Entries {
			scores[e.ProposalID] += int64(e.RawScore) * int64(b.Mandate)
		}
	}
	return scores, nil
}
