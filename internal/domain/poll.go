package domain

import (
	"fmt"
	"time"
)

// PollType determines the ballot shape and tally algorithm of a poll
type PollType string

const (
	PollTypeRanking  PollType = "ranking"
	PollTypeCardinal PollType = "cardinal"
	PollTypeSchedule PollType = "schedule"
)

// PollStatus is the observable lifecycle state of a poll
type PollStatus string

const (
	StatusOngoing      PollStatus = "ongoing"
	StatusProcessing   PollStatus = "processing"
	StatusFinished     PollStatus = "finished"
	StatusFailedQuorum PollStatus = "failed_quorum"
)

// Terminal reports whether the status allows no further transitions
func (s PollStatus) Terminal() bool {
	return s == StatusFinished || s == StatusFailedQuorum
}

// Poll represents a decision instance with phased timestamps.
// Ranking and cardinal polls carry all eight timestamps; schedule polls
// only use Start and End.
type Poll struct {
	ID             int64      `json:"id"`
	GroupID        int64      `json:"group_id"`
	Name           string     `json:"name"`
	Type           PollType   `json:"type"`
	Tag            string     `json:"tag"` // empty means no area selected
	Dynamic        bool       `json:"dynamic"`
	Quorum         *int       `json:"quorum,omitempty"` // percent; nil means group default
	Status         PollStatus `json:"status"`
	ResultComputed bool       `json:"result_computed"`
	Participants   int        `json:"participants"`
	LastPhase      string     `json:"last_phase"`

	Start                  time.Time `json:"start"`
	AreaVoteEnd            time.Time `json:"area_vote_end"`
	ProposalEnd            time.Time `json:"proposal_end"`
	PredictionStatementEnd time.Time `json:"prediction_statement_end"`
	PredictionBetEnd       time.Time `json:"prediction_bet_end"`
	DelegateVoteEnd        time.Time `json:"delegate_vote_end"`
	VoteEnd                time.Time `json:"vote_end"`
	End                    time.Time `json:"end"`

	CreatedAt time.Time `json:"created_at"`
}

// Timeline returns the poll's phase boundaries in order. Schedule polls
// have exactly two boundaries.
func (p *Poll) Timeline() []time.Time {
	if p.Type == PollTypeSchedule {
		return []time.Time{p.Start, p.End}
	}
	return []time.Time{
		p.Start,
		p.AreaVoteEnd,
		p.ProposalEnd,
		p.PredictionStatementEnd,
		p.PredictionBetEnd,
		p.DelegateVoteEnd,
		p.VoteEnd,
		p.End,
	}
}

// ValidateTimeline checks that the phase boundaries are strictly increasing
func (p *Poll) ValidateTimeline() error {
	ts := p.Timeline()
	for i := 1; i < len(ts); i++ {
		if !ts[i].After(ts[i-1]) {
			return fmt.Errorf("poll %d: phase timestamps not strictly increasing at index %d", p.ID, i)
		}
	}
	return nil
}

// QuorumPercent resolves the effective quorum, falling back to the group default
func (p *Poll) QuorumPercent(groupDefault int) int {
	if p.Quorum != nil {
		return *p.Quorum
	}
	return groupDefault
}

// Proposal is a candidate option in a poll. Schedule proposals carry a
// time window.
type Proposal struct {
	ID         int64      `json:"id"`
	PollID     int64      `json:"poll_id"`
	AuthorID   int64      `json:"author_id"`
	Score      int64      `json:"score"`
	EventStart *time.Time `json:"event_start,omitempty"`
	EventEnd   *time.Time `json:"event_end,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ProposalScore is one row of a batched score write
type ProposalScore struct {
	ProposalID int64 `json:"proposal_id"`
	Score      int64 `json:"score"`
}
