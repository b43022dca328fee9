package repository

import (
	"context"

	"flowback-engine/internal/domain"
	apperrors "flowback-engine/pkg/errors"
)

// ListStatements returns the poll's prediction statements with their
// segments, ordered by creation time.
func (r *Postgres) ListStatements(ctx context.Context, pollID int64) ([]domain.PredictionStatement, error) {
	query := `
		SELECT id, poll_id, author_id, end_at, combined_bet, created_at
		FROM prediction_statements
		WHERE poll_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, pollID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("failed to list prediction statements", err)
	}
	defer rows.Close()

	var statements []domain.PredictionStatement
	index := map[int64]int{}
	for rows.Next() {
		var s domain.PredictionStatement
		if err := rows.Scan(&s.ID, &s.PollID, &s.AuthorID, &s.EndAt, &s.CombinedBet, &s.CreatedAt); err != nil {
			return nil, apperrors.NewTransientStoreError("failed to scan prediction statement", err)
		}
		index[s.ID] = len(statements)
		statements = append(statements, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewTransientStoreError("failed to list prediction statements", err)
	}

	segRows, err := r.db.Pool.Query(ctx, `
		SELECT g.statement_id, g.proposal_id, g.is_true
		FROM prediction_segments g
		JOIN prediction_statements s ON s.id = g.statement_id
		WHERE s.poll_id = $1
		ORDER BY g.statement_id, g.proposal_id`, pollID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("failed to list prediction segments", err)
	}
	defer segRows.Close()

	for segRows.Next() {
		var statementID int64
		var seg domain.PredictionSegment
		if err := segRows.Scan(&statementID, &seg.ProposalID, &seg.IsTrue); err != nil {
			return nil, apperrors.NewTransientStoreError("failed to scan prediction segment", err)
		}
		if i, ok := index[statementID]; ok {
			statements[i].Segments = append(statements[i].Segments, seg)
		}
	}

	return statements, segRows.Err()
}

// ListBets returns all bets on the poll's statements
func (r *Postgres) ListBets(ctx context.Context, pollID int64) ([]domain.PredictionBet, error) {
	query := `
		SELECT b.statement_id, b.predictor_id, b.score
		FROM prediction_bets b
		JOIN prediction_statements s ON s.id = b.statement_id
		WHERE s.poll_id = $1
		ORDER BY b.statement_id, b.predictor_id
	`

	rows, err := r.db.Pool.Query(ctx, query, pollID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("failed to list prediction bets", err)
	}
	defer rows.Close()

	var bets []domain.PredictionBet
	for rows.Next() {
		var b domain.PredictionBet
		if err := rows.Scan(&b.StatementID, &b.PredictorID, &b.Score); err != nil {
			return nil, apperrors.NewTransientStoreError("failed to scan prediction bet", err)
		}
		bets = append(bets, b)
	}

	return bets, rows.Err()
}

// History returns decided statements in the tag area, newest first. A
// statement is decided once its poll has settled and outcome votes exist.
func (r *Postgres) History(ctx context.Context, tag string, limit int) ([]domain.HistoricalStatement, error) {
	query := `
		SELECT s.id,
		       COUNT(*) FILTER (WHERE v.agree),
		       COUNT(*) FILTER (WHERE NOT v.agree)
		FROM prediction_statements s
		JOIN polls p ON p.id = s.poll_id
		JOIN prediction_outcome_votes v ON v.statement_id = s.id
		WHERE p.tag = $1 AND p.status IN ('finished', 'failed_quorum')
		GROUP BY s.id, s.created_at
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, tag, limit)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("failed to load prediction history", err)
	}
	defer rows.Close()

	var history []domain.HistoricalStatement
	index := map[int64]int{}
	for rows.Next() {
		var h domain.HistoricalStatement
		var agree, disagree int
		if err := rows.Scan(&h.StatementID, &agree, &disagree); err != nil {
			return nil, apperrors.NewTransientStoreError("failed to scan historical statement", err)
		}
		h.Outcome = domain.OutcomeFromVotes(agree, disagree)
		h.Bets = map[int64]float64{}
		index[h.StatementID] = len(history)
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewTransientStoreError("failed to load prediction history", err)
	}
	if len(history) == 0 {
		return history, nil
	}

	ids := make([]int64, len(history))
	for i, h := range history {
		ids[i] = h.StatementID
	}

	betRows, err := r.db.Pool.Query(ctx, `
		SELECT statement_id, predictor_id, score
		FROM prediction_bets
		WHERE statement_id = ANY($1::bigint[])`, ids)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("failed to load historical bets", err)
	}
	defer betRows.Close()

	for betRows.Next() {
		var statementID, predictorID int64
		var score int
		if err := betRows.Scan(&statementID, &predictorID, &score); err != nil {
			return nil, apperrors.NewTransientStoreError("failed to scan historical bet", err)
		}
		if i, ok := index[statementID]; ok {
			history[i].Bets[predictorID] = float64(score) / float64(domain.PredictionScoreMax)
		}
	}

	return history, betRows.Err()
}

// SaveCombinedBets writes combined bets for a poll in one statement
func (r *Postgres) SaveCombinedBets(ctx context.Context, pollID int64, bets []domain.CombinedBet) error {
	if len(bets) == 0 {
		return nil
	}

	ids := make([]int64, len(bets))
	values := make([]*float64, len(bets))
	for i, b := range bets {
		ids[i] = b.StatementID
		values[i] = b.Value
	}

	query := `
		UPDATE prediction_statements s
		SET combined_bet = v.combined_bet
		FROM (SELECT unnest($2::bigint[]) AS id, unnest($3::float8[]) AS combined_bet) v
		WHERE s.id = v.id AND s.poll_id = $1
	`
	if _, err := r.db.Pool.Exec(ctx, query, pollID, ids, values); err != nil {
		return apperrors.NewTransientStoreError("failed to save combined bets", err)
	}
	return nil
}
