package repository

import (
	"context"

	"flowback-engine/internal/domain"
	apperrors "flowback-engine/pkg/errors"
)

// ListAreaStatements returns the poll's area statements with vote counts
// and per-tag vote tallies.
func (r *Postgres) ListAreaStatements(ctx context.Context, pollID int64) ([]domain.AreaStatement, error) {
	query := `
		SELECT id, poll_id, author_id, yes, no, created_at
		FROM area_statements
		WHERE poll_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, pollID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("failed to list area statements", err)
	}
	defer rows.Close()

	var statements []domain.AreaStatement
	index := map[int64]int{}
	for rows.Next() {
		var s domain.AreaStatement
		if err := rows.Scan(&s.ID, &s.PollID, &s.AuthorID, &s.Yes, &s.No, &s.CreatedAt); err != nil {
			return nil, apperrors.NewTransientStoreError("failed to scan area statement", err)
		}
		s.TagVotes = map[string]int{}
		index[s.ID] = len(statements)
		statements = append(statements, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewTransientStoreError("failed to list area statements", err)
	}
	if len(statements) == 0 {
		return statements, nil
	}

	tagRows, err := r.db.Pool.Query(ctx, `
		SELECT t.statement_id, t.tag, t.votes
		FROM area_statement_tags t
		JOIN area_statements s ON s.id = t.statement_id
		WHERE s.poll_id = $1
		ORDER BY t.statement_id, t.tag`, pollID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("failed to list area statement tags", err)
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var statementID int64
		var tag string
		var votes int
		if err := tagRows.Scan(&statementID, &tag, &votes); err != nil {
			return nil, apperrors.NewTransientStoreError("failed to scan area statement tag", err)
		}
		if i, ok := index[statementID]; ok {
			statements[i].Tags = append(statements[i].Tags, tag)
			statements[i].TagVotes[tag] = votes
		}
	}

	return statements, tagRows.Err()
}

// DeleteAreaStatements removes all area records of the poll after selection
func (r *Postgres) DeleteAreaStatements(ctx context.Context, pollID int64) error {
	if _, err := r.db.Pool.Exec(ctx, `
		DELETE FROM area_statement_tags
		WHERE statement_id IN (SELECT id FROM area_statements WHERE poll_id = $1)`, pollID); err != nil {
		return apperrors.NewTransientStoreError("failed to delete area statement tags", err)
	}
	if _, err := r.db.Pool.Exec(ctx,
		`DELETE FROM area_statements WHERE poll_id = $1`, pollID); err != nil {
		return apperrors.NewTransientStoreError("failed to delete area statements", err)
	}
	return nil
}
