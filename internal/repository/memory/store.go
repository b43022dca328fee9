package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"flowback-engine/internal/domain"
	apperrors "flowback-engine/pkg/errors"
)

// Store is an in-memory Store implementation for tests and local runs.
// All slices returned are copies; mutations go through the same
// replace/batch semantics as the Postgres store.
type Store struct {
	mu sync.RWMutex

	Polls         map[int64]*domain.Poll
	Proposals     map[int64][]domain.Proposal // by poll
	Direct        map[int64]map[int64]domain.DirectBallot
	PoolBal       map[int64]map[int64]domain.PoolBallot
	Members       map[int64]map[int64]domain.Member // group -> member
	Delegations   map[int64][]domain.Delegation     // by group
	Statements    map[int64][]domain.PredictionStatement
	Bets          map[int64][]domain.PredictionBet // by poll
	Hist          map[string][]domain.HistoricalStatement
	AreaStmts     map[int64][]domain.AreaStatement
	ScheduleEvts  map[int64]domain.ScheduleEvent // by poll
	FailNextCalls int                            // injects transient store errors
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		Polls:        make(map[int64]*domain.Poll),
		Proposals:    make(map[int64][]domain.Proposal),
		Direct:       make(map[int64]map[int64]domain.DirectBallot),
		PoolBal:      make(map[int64]map[int64]domain.PoolBallot),
		Members:      make(map[int64]map[int64]domain.Member),
		Delegations:  make(map[int64][]domain.Delegation),
		Statements:   make(map[int64][]domain.PredictionStatement),
		Bets:         make(map[int64][]domain.PredictionBet),
		Hist:         make(map[string][]domain.HistoricalStatement),
		AreaStmts:    make(map[int64][]domain.AreaStatement),
		ScheduleEvts: make(map[int64]domain.ScheduleEvent),
	}
}

func (s *Store) failing() error {
	if s.FailNextCalls > 0 {
		s.FailNextCalls--
		return apperrors.NewTransientStoreError("injected store failure", nil)
	}
	return nil
}

// GetPoll retrieves a poll by ID
func (s *Store) GetPoll(ctx context.Context, pollID int64) (*domain.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failing(); err != nil {
		return nil, err
	}
	p, ok := s.Polls[pollID]
	if !ok {
		return nil, apperrors.NewNotFound("poll not found")
	}
	clone := *p
	return &clone, nil
}

// SavePollStatus persists a status transition and participant count
func (s *Store) SavePollStatus(ctx context.Context, pollID int64, status domain.PollStatus, participants int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failing(); err != nil {
		return err
	}
	p, ok := s.Polls[pollID]
	if !ok {
		return apperrors.NewNotFound("poll not found")
	}
	p.Status = status
	p.Participants = participants
	return nil
}

// SavePollPhase records the last observed phase
func (s *Store) SavePollPhase(ctx context.Context, pollID int64, phase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.Polls[pollID]; ok {
		p.LastPhase = phase
	}
	return nil
}

// SetPollTag sets the poll's tag after area selection
func (s *Store) SetPollTag(ctx context.Context, pollID int64, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.Polls[pollID]; ok {
		p.Tag = tag
	}
	return nil
}

// MarkResultComputed flags the final tally as committed
func (s *Store) MarkResultComputed(ctx context.Context, pollID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.Polls[pollID]; ok {
		p.ResultComputed = true
	}
	return nil
}

// ListDuePolls returns non-terminal polls whose lifecycle has started
func (s *Store) ListDuePolls(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for id, p := range s.Polls {
		if !p.Status.Terminal() && !p.Start.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// ListProposals returns the poll's proposals ordered by creation time
func (s *Store) ListProposals(ctx context.Context, pollID int64) ([]domain.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failing(); err != nil {
		return nil, err
	}
	out := make([]domain.Proposal, len(s.Proposals[pollID]))
	copy(out, s.Proposals[pollID])
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SaveProposalScores writes proposal scores in one batch
func (s *Store) SaveProposalScores(ctx context.Context, pollID int64, scores []domain.ProposalScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failing(); err != nil {
		return err
	}
	byID := make(map[int64]int64, len(scores))
	for _, sc := range scores {
		byID[sc.ProposalID] = sc.Score
	}
	props := s.Proposals[pollID]
	for i := range props {
		if v, ok := byID[props[i].ID]; ok {
			props[i].Score = v
		}
	}
	return nil
}

// ReplaceDirectBallot atomically replaces a member's ballot
func (s *Store) ReplaceDirectBallot(ctx context.Context, ballot *domain.DirectBallot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failing(); err != nil {
		return err
	}
	if s.Direct[ballot.PollID] == nil {
		s.Direct[ballot.PollID] = make(map[int64]domain.DirectBallot)
	}
	clone := *ballot
	clone.Entries = append([]domain.BallotEntry(nil), ballot.Entries...)
	s.Direct[ballot.PollID][ballot.MemberID] = clone
	return nil
}

// ReplacePoolBallot atomically replaces a pool's ballot
func (s *Store) ReplacePoolBallot(ctx context.Context, ballot *domain.PoolBallot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failing(); err != nil {
		return err
	}
	if s.PoolBal[ballot.PollID] == nil {
		s.PoolBal[ballot.PollID] = make(map[int64]domain.PoolBallot)
	}
	clone := *ballot
	clone.Entries = append([]domain.BallotEntry(nil), ballot.Entries...)
	s.PoolBal[ballot.PollID][ballot.PoolID] = clone
	return nil
}

// ClearDirectBallot removes a member's ballot; idempotent
func (s *Store) ClearDirectBallot(ctx context.Context, pollID, memberID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Direct[pollID], memberID)
	return nil
}

// ClearPoolBallot removes a pool's ballot; idempotent
func (s *Store) ClearPoolBallot(ctx context.Context, pollID, poolID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.PoolBal[pollID], poolID)
	return nil
}

// SnapshotBallots yields a consistent copy of all ballots for a poll
func (s *Store) SnapshotBallots(ctx context.Context, pollID int64) (*domain.BallotSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failing(); err != nil {
		return nil, err
	}
	snapshot := &domain.BallotSnapshot{}
	for _, b := range s.Direct[pollID] {
		clone := b
		clone.Entries = append([]domain.BallotEntry(nil), b.Entries...)
		snapshot.Direct = append(snapshot.Direct, clone)
	}
	sort.Slice(snapshot.Direct, func(i, j int) bool {
		return snapshot.Direct[i].MemberID < snapshot.Direct[j].MemberID
	})
	for _, b := range s.PoolBal[pollID] {
		clone := b
		clone.Entries = append([]domain.BallotEntry(nil), b.Entries...)
		snapshot.Pool = append(snapshot.Pool, clone)
	}
	sort.Slice(snapshot.Pool, func(i, j int) bool {
		return snapshot.Pool[i].PoolID < snapshot.Pool[j].PoolID
	})
	return snapshot, nil
}

// SavePoolMandates writes resolved mandates onto pool ballots
func (s *Store) SavePoolMandates(ctx context.Context, pollID int64, mandates []domain.PoolMandate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pools := s.PoolBal[pollID]
	for _, m := range mandates {
		if b, ok := pools[m.PoolID]; ok {
			b.Mandate = m.Mandate
			pools[m.PoolID] = b
		}
	}
	return nil
}

// GetMember retrieves a group member, nil when not a member
func (s *Store) GetMember(ctx context.Context, groupID, memberID int64) (*domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.Members[groupID][memberID]; ok {
		clone := m
		return &clone, nil
	}
	return nil, nil
}

// ActiveMemberCount returns the number of active members in the group
func (s *Store) ActiveMemberCount(ctx context.Context, groupID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, m := range s.Members[groupID] {
		if m.Active {
			count++
		}
	}
	return count, nil
}

// ListDelegations returns all delegation edges in the group
func (s *Store) ListDelegations(ctx context.Context, groupID int64) ([]domain.Delegation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Delegation, len(s.Delegations[groupID]))
	copy(out, s.Delegations[groupID])
	return out, nil
}

// ListStatements returns the poll's prediction statements
func (s *Store) ListStatements(ctx context.Context, pollID int64) ([]domain.PredictionStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PredictionStatement, len(s.Statements[pollID]))
	copy(out, s.Statements[pollID])
	return out, nil
}

// ListBets returns all bets on the poll's statements
func (s *Store) ListBets(ctx context.Context, pollID int64) ([]domain.PredictionBet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PredictionBet, len(s.Bets[pollID]))
	copy(out, s.Bets[pollID])
	return out, nil
}

// History returns decided statements in the tag area, newest first
func (s *Store) History(ctx context.Context, tag string, limit int) ([]domain.HistoricalStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hist := s.Hist[tag]
	if len(hist) > limit {
		hist = hist[:limit]
	}
	out := make([]domain.HistoricalStatement, len(hist))
	copy(out, hist)
	return out, nil
}

// SaveCombinedBets writes combined bets for a poll
func (s *Store) SaveCombinedBets(ctx context.Context, pollID int64, bets []domain.CombinedBet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := make(map[int64]*float64, len(bets))
	for _, b := range bets {
		byID[b.StatementID] = b.Value
	}
	statements := s.Statements[pollID]
	for i := range statements {
		if v, ok := byID[statements[i].ID]; ok {
			statements[i].CombinedBet = v
		}
	}
	return nil
}

// ListAreaStatements returns the poll's area statements
func (s *Store) ListAreaStatements(ctx context.Context, pollID int64) ([]domain.AreaStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AreaStatement, len(s.AreaStmts[pollID]))
	copy(out, s.AreaStmts[pollID])
	return out, nil
}

// DeleteAreaStatements removes all area records of the poll
func (s *Store) DeleteAreaStatements(ctx context.Context, pollID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.AreaStmts, pollID)
	return nil
}

// UpsertScheduleEvent inserts or updates the event keyed on (origin, poll)
func (s *Store) UpsertScheduleEvent(ctx context.Context, event *domain.ScheduleEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failing(); err != nil {
		return err
	}
	existing, ok := s.ScheduleEvts[event.PollID]
	clone := *event
	if ok {
		// Upsert keeps the original event ID stable across re-tallies
		clone.ID = existing.ID
	}
	s.ScheduleEvts[event.PollID] = clone
	return nil
}
