package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"flowback-engine/internal/domain"
	apperrors "flowback-engine/pkg/errors"
)

// GetPoll retrieves a poll by ID
func (r *Postgres) GetPoll(ctx context.Context, pollID int64) (*domain.Poll, error) {
	var poll domain.Poll
	query := `
		SELECT id, group_id, name, poll_type, tag, dynamic, quorum, status,
		       result_computed, participants, last_phase,
		       start_at, area_vote_end, proposal_end, prediction_statement_end,
		       prediction_bet_end, delegate_vote_end, vote_end, end_at, created_at
		FROM polls
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, pollID).Scan(
		&poll.ID,
		&poll.GroupID,
		&poll.Name,
		&poll.Type,
		&poll.Tag,
		&poll.Dynamic,
		&poll.Quorum,
		&poll.Status,
		&poll.ResultComputed,
		&poll.Participants,
		&poll.LastPhase,
		&poll.Start,
		&poll.AreaVoteEnd,
		&poll.ProposalEnd,
		&poll.PredictionStatementEnd,
		&poll.PredictionBetEnd,
		&poll.DelegateVoteEnd,
		&poll.VoteEnd,
		&poll.End,
		&poll.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("poll not found")
	}
	if err != nil {
		return nil, apperrors.NewTransientStoreError("failed to get poll", err)
	}

	return &poll, nil
}

// SavePollStatus persists a status transition and the observed participant count
func (r *Postgres) SavePollStatus(ctx context.Context, pollID int64, status domain.PollStatus, participants int) error {
	query := `UPDATE polls SET status = $2, participants = $3 WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, pollID, status, participants); err != nil {
		return apperrors.NewTransientStoreError("failed to save poll status", err)
	}
	return nil
}

// SavePollPhase records the last phase the engine observed
func (r *Postgres) SavePollPhase(ctx context.Context, pollID int64, phase string) error {
	query := `UPDATE polls SET last_phase = $2 WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, pollID, phase); err != nil {
		return apperrors.NewTransientStoreError("failed to save poll phase", err)
	}
	return nil
}

// SetPollTag sets the poll's tag after area selection
func (r *Postgres) SetPollTag(ctx context.Context, pollID int64, tag string) error {
	query := `UPDATE polls SET tag = $2 WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, pollID, tag); err != nil {
		return apperrors.NewTransientStoreError("failed to set poll tag", err)
	}
	return nil
}

// MarkResultComputed flags the final tally as committed
func (r *Postgres) MarkResultComputed(ctx context.Context, pollID int64) error {
	query := `UPDATE polls SET result_computed = true WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, pollID); err != nil {
		return apperrors.NewTransientStoreError("failed to mark result computed", err)
	}
	return nil
}

// ListDuePolls returns non-terminal polls whose lifecycle has started,
// oldest end first. Advance itself is idempotent, so over-selection is
// harmless.
func (r *Postgres) ListDuePolls(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	query := `
		SELECT id
		FROM polls
		WHERE status IN ('ongoing', 'processing')
		  AND start_at <= $1
		ORDER BY end_at ASC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("failed to list due polls", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewTransientStoreError("failed to scan due poll", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ListProposals returns the poll's proposals ordered by creation time
func (r *Postgres) ListProposals(ctx context.Context, pollID int64) ([]domain.Proposal, error) {
	query := `
		SELECT id, poll_id, author_id, score, event_start, event_end, created_at
		FROM proposals
		WHERE poll_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, pollID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("failed to list proposals", err)
	}
	defer rows.Close()

	var proposals []domain.Proposal
	for rows.Next() {
		var p domain.Proposal
		err := rows.Scan(
			&p.ID,
			&p.PollID,
			&p.AuthorID,
			&p.Score,
			&p.EventStart,
			&p.EventEnd,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewTransientStoreError("failed to scan proposal", err)
		}
		proposals = append(proposals, p)
	}

	return proposals, rows.Err()
}

// SaveProposalScores writes all proposal scores of a poll in a single
// statement so concurrent readers never observe a half-written tally.
func (r *Postgres) SaveProposalScores(ctx context.Context, pollID int64, scores []domain.ProposalScore) error {
	if len(scores) == 0 {
		return nil
	}

	ids := make([]int64, len(scores))
	values := make([]int64, len(scores))
	for i, s := range scores {
		ids[i] = s.ProposalID
		values[i] = s.Score
	}

	query := `
		UPDATE proposals p
		SET score = v.score
		FROM (SELECT unnest($2::bigint[]) AS id, unnest($3::bigint[]) AS score) v
		WHERE p.id = v.id AND p.poll_id = $1
	`
	if _, err := r.db.Pool.Exec(ctx, query, pollID, ids, values); err != nil {
		return apperrors.NewTransientStoreError("failed to save proposal scores", err)
	}
	return nil
}
