package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"flowback-engine/internal/domain"
	apperrors "flowback-engine/pkg/errors"
)

// GetMember retrieves a group member, nil when not a member
func (r *Postgres) GetMember(ctx context.Context, groupID, memberID int64) (*domain.Member, error) {
	var m domain.Member
	query := `
		SELECT member_id, group_id, active, vote_right
		FROM group_members
		WHERE group_id = $1 AND member_id = $2
	`

	err := r.db.Pool.QueryRow(ctx, query, groupID, memberID).Scan(
		&m.ID,
		&m.GroupID,
		&m.Active,
		&m.VoteRight,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewTransientStoreError("failed to get member", err)
	}

	return &m, nil
}

// ActiveMemberCount returns the number of active members in the group
func (r *Postgres) ActiveMemberCount(ctx context.Context, groupID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM group_members WHERE group_id = $1 AND active = true`

	if err := r.db.Pool.QueryRow(ctx, query, groupID).Scan(&count); err != nil {
		return 0, apperrors.NewTransientStoreError("failed to count active members", err)
	}
	return count, nil
}

// ListDelegations returns all delegation edges in the group, with the
// delegator's active flag folded in and tags aggregated per edge.
func (r *Postgres) ListDelegations(ctx context.Context, groupID int64) ([]domain.Delegation, error) {
	query := `
		SELECT d.delegator_id, d.pool_id, array_agg(d.tag ORDER BY d.tag), bool_and(m.active)
		FROM delegations d
		JOIN group_members m ON m.group_id = d.group_id AND m.member_id = d.delegator_id
		WHERE d.group_id = $1
		GROUP BY d.delegator_id, d.pool_id
		ORDER BY d.delegator_id, d.pool_id
	`

	rows, err := r.db.Pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, apperrors.NewTransientStoreError("failed to list delegations", err)
	}
	defer rows.Close()

	var delegations []domain.Delegation
	for rows.Next() {
		var d domain.Delegation
		if err := rows.Scan(&d.DelegatorID, &d.PoolID, &d.Tags, &d.Active); err != nil {
			return nil, apperrors.NewTransientStoreError("failed to scan delegation", err)
		}
		delegations = append(delegations, d)
	}

	return delegations, rows.Err()
}
