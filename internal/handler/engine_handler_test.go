package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowback-engine/internal/config"
	"flowback-engine/internal/domain"
	"flowback-engine/internal/engine"
	"flowback-engine/internal/notify"
	"flowback-engine/internal/repository/memory"
	"flowback-engine/internal/scheduler"
	"flowback-engine/pkg/clock"
	"flowback-engine/pkg/logger"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setupHandler(t *testing.T) (*chi.Mux, *memory.Store, *clock.Manual, *scheduler.Scheduler) {
	t.Helper()

	cfg := &config.Config{
		DefaultQuorum:       50,
		DynamicPollsEnabled: true,
		AdvanceWorkers:      2,
		AdvanceTimeout:      5 * time.Second,
		DueScanLimit:        10,
		SchedulerSpec:       "*/15 * * * * *",
	}
	repo := memory.NewStore()
	clk := clock.NewManual(base)
	eng := engine.New(repo, cfg, clk, notify.NewRecorder(), zap.NewNop())
	sched := scheduler.New(repo, eng, cfg, clk, zap.NewNop())

	log, err := logger.New("error")
	require.NoError(t, err)

	r := chi.NewRouter()
	NewEngineHandler(eng, sched, clk, log).RegisterRoutes(r)
	return r, repo, clk, sched
}

func seedFinishedPoll(repo *memory.Store) {
	repo.Polls[1] = &domain.Poll{
		ID:                     1,
		GroupID:                1,
		Name:                   "test poll",
		Type:                   domain.PollTypeRanking,
		Tag:                    "budget",
		Status:                 domain.StatusOngoing,
		Start:                  base.Add(-8 * time.Hour),
		AreaVoteEnd:            base.Add(-7 * time.Hour),
		ProposalEnd:            base.Add(-6 * time.Hour),
		PredictionStatementEnd: base.Add(-5 * time.Hour),
		PredictionBetEnd:       base.Add(-4 * time.Hour),
		DelegateVoteEnd:        base.Add(-3 * time.Hour),
		VoteEnd:                base.Add(-2 * time.Hour),
		End:                    base.Add(-1 * time.Hour),
	}
	repo.Proposals[1] = []domain.Proposal{{ID: 11, PollID: 1, CreatedAt: base.Add(-8 * time.Hour)}}
	repo.Members[1] = map[int64]domain.Member{
		101: {ID: 101, GroupID: 1, Active: true, VoteRight: true},
	}
	repo.Direct[1] = map[int64]domain.DirectBallot{
		101: {PollID: 1, MemberID: 101, Entries: domain.RankedEntries([]int64{11})},
	}
}

func TestAdvanceEndpoint(t *testing.T) {
	router, repo, _, sched := setupHandler(t)
	defer sched.Stop()
	seedFinishedPoll(repo)

	req := httptest.NewRequest(http.MethodPost, "/internal/polls/1/advance", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusFinished, repo.Polls[1].Status)
}

func TestAdvanceEndpointInvalidID(t *testing.T) {
	router, _, _, sched := setupHandler(t)
	defer sched.Stop()

	req := httptest.NewRequest(http.MethodPost, "/internal/polls/abc/advance", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdvanceEndpointUnknownPoll(t *testing.T) {
	router, _, _, sched := setupHandler(t)
	defer sched.Stop()

	req := httptest.NewRequest(http.MethodPost, "/internal/polls/99/advance", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResultsEndpointRanksProposals(t *testing.T) {
	router, repo, _, sched := setupHandler(t)
	defer sched.Stop()
	seedFinishedPoll(repo)
	repo.Polls[1].Status = domain.StatusFinished
	repo.Polls[1].Participants = 1
	created := base.Add(-8 * time.Hour)
	repo.Proposals[1] = []domain.Proposal{
		{ID: 11, PollID: 1, Score: 2, CreatedAt: created},
		{ID: 12, PollID: 1, Score: 5, CreatedAt: created.Add(time.Minute)},
	}

	req := httptest.NewRequest(http.MethodGet, "/internal/polls/1/results", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got ResultsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, domain.StatusFinished, got.Status)
	assert.Equal(t, 1, got.Participants)
	require.Len(t, got.Proposals, 2)
	assert.Equal(t, int64(12), got.Proposals[0].ID)
	assert.Equal(t, int64(11), got.Proposals[1].ID)
}

func TestResultsEndpointUnknownPoll(t *testing.T) {
	router, _, _, sched := setupHandler(t)
	defer sched.Stop()

	req := httptest.NewRequest(http.MethodGet, "/internal/polls/99/results", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshEndpointQueuesRecount(t *testing.T) {
	router, repo, clk, sched := setupHandler(t)
	seedFinishedPoll(repo)
	poll := repo.Polls[1]
	poll.Dynamic = true
	// move the clock into the recount window
	poll.VoteEnd = base.Add(-30 * time.Minute)
	poll.End = base.Add(30 * time.Minute)
	clk.Set(base)

	req := httptest.NewRequest(http.MethodPost, "/internal/polls/1/refresh", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	// drain the worker pool, then observe the recount
	sched.Stop()
	assert.Equal(t, domain.StatusOngoing, repo.Polls[1].Status)
	assert.Equal(t, int64(1), repo.Proposals[1][0].Score)
}
