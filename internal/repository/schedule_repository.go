package repository

import (
	"context"

	"flowback-engine/internal/domain"
	apperrors "flowback-engine/pkg/errors"
)

// UpsertScheduleEvent inserts or updates the winning window of a schedule
// poll, keyed on (origin, poll_id) so dynamic re-tallies overwrite rather
// than duplicate.
func (r *Postgres) UpsertScheduleEvent(ctx context.Context, event *domain.ScheduleEvent) error {
	query := `
		INSERT INTO schedule_events (id, origin, poll_id, start_at, end_at, title, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (origin, poll_id) DO UPDATE
		SET start_at = EXCLUDED.start_at,
		    end_at = EXCLUDED.end_at,
		    title = EXCLUDED.title,
		    description = EXCLUDED.description
	`
	_, err := r.db.Pool.Exec(ctx, query,
		event.ID,
		event.Origin,
		event.PollID,
		event.Start,
		event.End,
		event.Title,
		event.Description,
	)
	if err != nil {
		return apperrors.NewTransientStoreError("failed to upsert schedule event", err)
	}
	return nil
}
