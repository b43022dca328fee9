package area

import (
	"context"

	"go.uber.org/zap"

	"flowback-engine/internal/domain"
	"flowback-engine/internal/repository"
)

// SelectTag picks the poll's tag from its area statements: the statement
// with the highest yes-minus-no margin wins, ties breaking on earlier
// creation time, and its most-voted tag is returned. The second return
// is false when no statement carries a tag.
func SelectTag(statements []domain.AreaStatement) (string, bool) {
	var winner *domain.AreaStatement
	for i := range statements {
		s := &statements[i]
		if len(s.Tags) == 0 {
			continue
		}
		if winner == nil ||
			s.Margin() > winner.Margin() ||
			(s.Margin() == winner.Margin() && s.CreatedAt.Before(winner.CreatedAt)) {
			winner = s
		}
	}
	if winner == nil {
		return "", false
	}

	best, bestVotes := "", -1
	for _, tag := range winner.Tags {
		votes := winner.TagVotes[tag]
		// ties on vote count break on tag order within the statement
		if votes > bestVotes {
			best, bestVotes = tag, votes
		}
	}
	return best, true
}

// Resolver applies area selection when the area vote window closes
type Resolver struct {
	repo   repository.Store
	logger *zap.Logger
}

// NewResolver creates an area resolver
func NewResolver(repo repository.Store, logger *zap.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// Apply selects the poll's tag from its area statements and deletes the
// area records. With no statements the creator-supplied tag stands, so
// re-running after deletion is a no-op.
func (r *Resolver) Apply(ctx context.Context, poll *domain.Poll) error {
	statements, err := r.repo.ListAreaStatements(ctx, poll.ID)
	if err != nil {
		return err
	}
	if len(statements) == 0 {
		return nil
	}

	if tag, ok := SelectTag(statements); ok {
		if err := r.repo.SetPollTag(ctx, poll.ID, tag); err != nil {
			return err
		}
		poll.Tag = tag
		r.logger.Info("area selected",
			zap.Int64("poll_id", poll.ID),
			zap.String("tag", tag))
	}

	return r.repo.DeleteAreaStatements(ctx, poll.ID)
}
