package domain

import "time"

// BallotEntry is one per-proposal row of a ballot. Which field is
// meaningful depends on the poll type: Priority for ranking, RawScore for
// cardinal, Vote for schedule for/against.
type BallotEntry struct {
	ProposalID int64 `json:"proposal_id"`
	Priority   int   `json:"priority,omitempty"`
	RawScore   int   `json:"raw_score,omitempty"`
	Vote       bool  `json:"vote,omitempty"`
}

// DirectBallot is the single ballot a group member holds in a poll.
// Replacing it swaps all entries atomically.
type DirectBallot struct {
	PollID    int64         `json:"poll_id"`
	MemberID  int64         `json:"member_id"`
	Entries   []BallotEntry `json:"entries"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PoolBallot is a ballot authored by a delegate pool. Mandate is the
// number of delegator mandates the ballot carries, written back by the
// delegation resolver before tallying.
type PoolBallot struct {
	PollID    int64         `json:"poll_id"`
	PoolID    int64         `json:"pool_id"`
	Entries   []BallotEntry `json:"entries"`
	Mandate   int           `json:"mandate"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// BallotSnapshot is a consistent read of every ballot in a poll, taken
// once per tally run.
type BallotSnapshot struct {
	Direct []DirectBallot `json:"direct"`
	Pool   []PoolBallot   `json:"pool"`
}

// DirectVoters returns the set of members holding a direct ballot
func (s *BallotSnapshot) DirectVoters() map[int64]struct{} {
	voters := make(map[int64]struct{}, len(s.Direct))
	for _, b := range s.Direct {
		voters[b.MemberID] = struct{}{}
	}
	return voters
}

// RankedEntries builds ranking ballot entries from an ordered proposal
// list, top choice first. Priority is list length minus index.
func RankedEntries(proposalIDs []int64) []BallotEntry {
	entries := make([]BallotEntry, len(proposalIDs))
	for i, id := range proposalIDs {
		entries[i] = BallotEntry{ProposalID: id, Priority: len(proposalIDs) - i}
	}
	return entries
}
