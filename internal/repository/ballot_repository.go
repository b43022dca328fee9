package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"flowback-engine/internal/domain"
	apperrors "flowback-engine/pkg/errors"
)

// ReplaceDirectBallot atomically deletes the member's prior ballot and
// inserts the new one in a single transaction.
func (r *Postgres) ReplaceDirectBallot(ctx context.Context, ballot *domain.DirectBallot) error {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperrors.NewTransientStoreError("failed to begin ballot transaction", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM direct_ballot_entries WHERE poll_id = $1 AND member_id = $2`,
		ballot.PollID, ballot.MemberID)
	if err != nil {
		return apperrors.NewTransientStoreError("failed to delete prior ballot", err)
	}

	batch := &pgx.Batch{}
	for _, e := range ballot.Entries {
		batch.Queue(`
			INSERT INTO direct_ballot_entries (poll_id, member_id, proposal_id, priority, raw_score, vote, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ballot.PollID, ballot.MemberID, e.ProposalID, e.Priority, e.RawScore, e.Vote, ballot.UpdatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return apperrors.NewTransientStoreError("failed to insert ballot entries", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewTransientStoreError("failed to commit ballot", err)
	}
	return nil
}

// ReplacePoolBallot atomically replaces a delegate pool's ballot
func (r *Postgres) ReplacePoolBallot(ctx context.Context, ballot *domain.PoolBallot) error {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperrors.NewTransientStoreError("failed to begin pool ballot transaction", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM pool_ballot_entries WHERE poll_id = $1 AND pool_id = $2`,
		ballot.PollID, ballot.PoolID)
	if err != nil {
		return apperrors.NewTransientStoreError("failed to delete prior pool ballot", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO pool_ballots (poll_id, pool_id, mandate, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (poll_id, pool_id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		ballot.PollID, ballot.PoolID, ballot.Mandate, ballot.UpdatedAt)
	if err != nil {
		return apperrors.NewTransientStoreError("failed to upsert pool ballot", err)
	}

	batch := &pgx.Batch{}
	for _, e := range ballot.Entries {
		batch.Queue(`
			INSERT INTO pool_ballot_entries (poll_id, pool_id, proposal_id, priority, raw_score, vote)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			ballot.PollID, ballot.PoolID, e.ProposalID, e.Priority, e.RawScore, e.Vote)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return apperrors.NewTransientStoreError("failed to insert pool ballot entries", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewTransientStoreError("failed to commit pool ballot", err)
	}
	return nil
}

// ClearDirectBallot removes a member's ballot; idempotent
func (r *Postgres) ClearDirectBallot(ctx context.Context, pollID, memberID int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM direct_ballot_entries WHERE poll_id = $1 AND member_id = $2`,
		pollID, memberID)
	if err != nil {
		return apperrors.NewTransientStoreError("failed to clear ballot", err)
	}
	return nil
}

// ClearPoolBallot removes a pool's ballot; idempotent
func (r *Postgres) ClearPoolBallot(ctx context.Context, pollID, poolID int64) error {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperrors.NewTransientStoreError("failed to begin clear transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM pool_ballot_entries WHERE poll_id = $1 AND pool_id = $2`,
		pollID, poolID); err != nil {
		return apperrors.NewTransientStoreError("failed to clear pool ballot entries", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM pool_ballots WHERE poll_id = $1 AND pool_id = $2`,
		pollID, poolID); err != nil {
		return apperrors.NewTransientStoreError("failed to clear pool ballot", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewTransientStoreError("failed to commit clear", err)
	}
	return nil
}

// SnapshotBallots yields a consistent read of all ballots for a poll
// using a repeatable-read transaction.
func (r *Postgres) SnapshotBallots(ctx context.Context, pollID int64) (*domain.BallotSnapshot, error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, apperrors.NewTransientStoreError("failed to begin snapshot transaction", err)
	}
	defer tx.Rollback(ctx)

	snapshot := &domain.BallotSnapshot{}

	rows, err := tx.Query(ctx, `
		SELECT member_id, proposal_id, priority, raw_score, vote, updated_at
		FROM direct_ballot_entries
		WHERE poll_id = $1
		ORDER BY member_id, priority DESC, proposal_id`, pollID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("failed to read direct ballots", err)
	}
	direct := map[int64]*domain.DirectBallot{}
	var directOrder []int64
	for rows.Next() {
		var memberID int64
		var e domain.BallotEntry
		var updatedAt time.Time
		if err := rows.Scan(&memberID, &e.ProposalID, &e.Priority, &e.RawScore, &e.Vote, &updatedAt); err != nil {
			rows.Close()
			return nil, apperrors.NewTransientStoreError("failed to scan direct ballot entry", err)
		}
		b, ok := direct[memberID]
		if !ok {
			b = &domain.DirectBallot{PollID: pollID, MemberID: memberID, UpdatedAt: updatedAt}
			direct[memberID] = b
			directOrder = append(directOrder, memberID)
		}
		b.Entries = append(b.Entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewTransientStoreError("failed to read direct ballots", err)
	}
	for _, id := range directOrder {
		snapshot.Direct = append(snapshot.Direct, *direct[id])
	}

	rows, err = tx.Query(ctx, `
		SELECT b.pool_id, b.mandate, b.updated_at, e.proposal_id, e.priority, e.raw_score, e.vote
		FROM pool_ballots b
		JOIN pool_ballot_entries e ON e.poll_id = b.poll_id AND e.pool_id = b.pool_id
		WHERE b.poll_id = $1
		ORDER BY b.pool_id, e.priority DESC, e.proposal_id`, pollID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("failed to read pool ballots", err)
	}
	pools := map[int64]*domain.PoolBallot{}
	var poolOrder []int64
	for rows.Next() {
		var poolID int64
		var mandate int
		var updatedAt time.Time
		var e domain.BallotEntry
		if err := rows.Scan(&poolID, &mandate, &updatedAt, &e.ProposalID, &e.Priority, &e.RawScore, &e.Vote); err != nil {
			rows.Close()
			return nil, apperrors.NewTransientStoreError("failed to scan pool ballot entry", err)
		}
		pb, ok := pools[poolID]
		if !ok {
			pb = &domain.PoolBallot{PollID: pollID, PoolID: poolID, Mandate: mandate, UpdatedAt: updatedAt}
			pools[poolID] = pb
			poolOrder = append(poolOrder, poolID)
		}
		pb.Entries = append(pb.Entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewTransientStoreError("failed to read pool ballots", err)
	}
	for _, id := range poolOrder {
		snapshot.Pool = append(snapshot.Pool, *pools[id])
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.NewTransientStoreError("failed to commit snapshot", err)
	}
	return snapshot, nil
}

// SavePoolMandates writes resolved mandates onto pool ballots in one statement
func (r *Postgres) SavePoolMandates(ctx context.Context, pollID int64, mandates []domain.PoolMandate) error {
	if len(mandates) == 0 {
		return nil
	}

	ids := make([]int64, len(mandates))
	values := make([]int64, len(mandates))
	for i, m := range mandates {
		ids[i] = m.PoolID
		values[i] = int64(m.Mandate)
	}

	query := `
		UPDATE pool_ballots b
		SET mandate = v.mandate
		FROM (SELECT unnest($2::bigint[]) AS pool_id, unnest($3::bigint[]) AS mandate) v
		WHERE b.pool_id = v.pool_id AND b.poll_id = $1
	`
	if _, err := r.db.Pool.Exec(ctx, query, pollID, ids, values); err != nil {
		return apperrors.NewTransientStoreError("failed to save pool mandates", err)
	}
	return nil
}
