package phase

import (
	"time"

	"flowback-engine/internal/domain"
	"flowback-engine/pkg/errors"
)

// Label identifies a poll phase
type Label string

const (
	Waiting             Label = "waiting"
	AreaVote            Label = "area_vote"
	Proposal            Label = "proposal"
	PredictionStatement Label = "prediction_statement"
	PredictionBet       Label = "prediction_bet"
	DelegateVote        Label = "delegate_vote"
	Vote                Label = "vote"
	PredictionVote      Label = "prediction_vote"
	ResultDefault       Label = "result_default"
	Schedule            Label = "schedule"
	Result              Label = "result"
)

// ordering positions for the monotonicity invariant; result_default and
// prediction_vote share the window between vote_end and end.
var order = map[Label]int{
	Waiting:             0,
	AreaVote:            1,
	Proposal:            2,
	PredictionStatement: 3,
	PredictionBet:       4,
	DelegateVote:        5,
	Vote:                6,
	PredictionVote:      7,
	ResultDefault:       7,
	Schedule:            1,
	Result:              8,
}

// Index returns the label's position in the phase ordering
func Index(l Label) int {
	return order[l]
}

// Resolve maps (poll, now) to a phase label. It is pure and total: a
// phase boundary belongs to the phase it ends, so at now == proposal_end
// the phase is still proposal.
func Resolve(p *domain.Poll, now time.Time) Label {
	if now.Before(p.Start) {
		return Waiting
	}
	if p.Type == domain.PollTypeSchedule {
		if now.After(p.End) {
			return Result
		}
		return Schedule
	}
	switch {
	case !now.After(p.AreaVoteEnd):
		return AreaVote
	case !now.After(p.ProposalEnd):
		return Proposal
	case !now.After(p.PredictionStatementEnd):
		return PredictionStatement
	case !now.After(p.PredictionBetEnd):
		return PredictionBet
	case !now.After(p.DelegateVoteEnd):
		return DelegateVote
	case !now.After(p.VoteEnd):
		return Vote
	case !now.After(p.End):
		if p.Dynamic {
			return ResultDefault
		}
		return PredictionVote
	default:
		return Result
	}
}

// Require returns a PhaseViolation unless the poll's current phase is one
// of the allowed labels. Mutating operations call this before writing.
func Require(p *domain.Poll, now time.Time, allowed ...Label) error {
	current := Resolve(p, now)
	for _, l := range allowed {
		if current == l {
			return nil
		}
	}
	return errors.NewPhaseViolation("operation not allowed in current phase", map[string]interface{}{
		"poll_id": p.ID,
		"phase":   string(current),
	})
}
