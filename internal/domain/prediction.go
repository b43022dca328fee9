package domain

import "time"

// PredictionScoreMax is the raw bet ceiling; raw scores map to
// probabilities as raw/5.
const PredictionScoreMax = 5

// PredictionSegment declares what a statement asserts about one proposal
type PredictionSegment struct {
	ProposalID int64 `json:"proposal_id"`
	IsTrue     bool  `json:"is_true"`
}

// PredictionStatement is an assertion about poll outcomes that predictors
// bet on. CombinedBet is the aggregator's output, nil when no combination
// could be produced.
type PredictionStatement struct {
	ID          int64               `json:"id"`
	PollID      int64               `json:"poll_id"`
	AuthorID    int64               `json:"author_id"`
	EndAt       time.Time           `json:"end_at"`
	Segments    []PredictionSegment `json:"segments"`
	CombinedBet *float64            `json:"combined_bet,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// PredictionBet is one predictor's raw score on a statement, in [0, 5]
type PredictionBet struct {
	StatementID int64 `json:"statement_id"`
	PredictorID int64 `json:"predictor_id"`
	Score       int   `json:"score"`
}

// Probability maps the raw score onto [0, 1]
func (b *PredictionBet) Probability() float64 {
	return float64(b.Score) / float64(PredictionScoreMax)
}

// PredictionOutcomeVote is one voter's agree/disagree on whether a
// statement came true.
type PredictionOutcomeVote struct {
	StatementID int64 `json:"statement_id"`
	VoterID     int64 `json:"voter_id"`
	Agree       bool  `json:"agree"`
}

// HistoricalStatement is a decided past statement in the same tag area,
// used to calibrate predictor weights. Bets maps predictor to their
// probability-scaled bet; absent predictors did not bet.
type HistoricalStatement struct {
	StatementID int64             `json:"statement_id"`
	Outcome     float64           `json:"outcome"` // 1, 0 or 0.5
	Bets        map[int64]float64 `json:"bets"`
}

// OutcomeFromVotes derives a historical outcome from agree/disagree
// counts: majority agree is 1, majority disagree is 0, a tie is 0.5.
func OutcomeFromVotes(agree, disagree int) float64 {
	switch {
	case agree > disagree:
		return 1
	case disagree > agree:
		return 0
	default:
		return 0.5
	}
}

// CombinedBet is one row of a batched combined-bet write. A nil value
// clears the statement's combination.
type CombinedBet struct {
	StatementID int64    `json:"statement_id"`
	Value       *float64 `json:"value,omitempty"`
}
