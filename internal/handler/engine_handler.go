package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"flowback-engine/internal/domain"
	"flowback-engine/internal/engine"
	"flowback-engine/internal/scheduler"
	"flowback-engine/pkg/clock"
	apperrors "flowback-engine/pkg/errors"
	"flowback-engine/pkg/logger"
)

// EngineHandler exposes the ops surface for advancing polls. This is an
// internal hook for the host process, not a public API.
type EngineHandler struct {
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
	clock     clock.Clock
	log       *logger.Logger
}

// NewEngineHandler creates a new engine handler
func NewEngineHandler(eng *engine.Engine, sched *scheduler.Scheduler, clk clock.Clock, log *logger.Logger) *EngineHandler {
	return &EngineHandler{
		engine:    eng,
		scheduler: sched,
		clock:     clk,
		log:       log,
	}
}

// RegisterRoutes wires the internal endpoints
func (h *EngineHandler) RegisterRoutes(r chi.Router) {
	r.Route("/internal/polls/{pollID}", func(r chi.Router) {
		r.Post("/advance", h.Advance)
		r.Post("/refresh", h.Refresh)
		r.Get("/results", h.Results)
	})
}

// AdvanceResponse reports an advance call's outcome
type AdvanceResponse struct {
	PollID int64     `json:"poll_id"`
	At     time.Time `json:"at"`
}

// Advance handles POST /internal/polls/{pollID}/advance. The call is
// synchronous; at is the instant the lifecycle was evaluated against.
func (h *EngineHandler) Advance(w http.ResponseWriter, r *http.Request) {
	pollID, err := strconv.ParseInt(chi.URLParam(r, "pollID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid poll ID")
		return
	}

	now := h.clock.Now()
	if err := h.engine.Advance(r.Context(), pollID, now); err != nil {
		h.log.WithError(err).WithField("poll_id", pollID).Error("Advance failed")
		switch {
		case apperrors.IsKind(err, apperrors.KindNotFound):
			h.respondError(w, http.StatusNotFound, "Poll not found")
		case apperrors.IsKind(err, apperrors.KindTransientStore):
			h.respondError(w, http.StatusServiceUnavailable, "Storage unavailable, retry later")
		default:
			h.respondError(w, http.StatusInternalServerError, "Advance failed")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, AdvanceResponse{PollID: pollID, At: now})
}

// Refresh handles POST /internal/polls/{pollID}/refresh. The recount is
// queued on the worker pool and runs asynchronously.
func (h *EngineHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	pollID, err := strconv.ParseInt(chi.URLParam(r, "pollID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid poll ID")
		return
	}

	h.scheduler.TriggerRefresh(pollID)
	h.respondJSON(w, http.StatusAccepted, AdvanceResponse{PollID: pollID, At: h.clock.Now()})
}

// ResultsResponse reports a poll's standing with proposals in ranked order
type ResultsResponse struct {
	PollID       int64             `json:"poll_id"`
	Status       domain.PollStatus `json:"status"`
	Participants int               `json:"participants"`
	Proposals    []domain.Proposal `json:"proposals"`
}

// Results handles GET /internal/polls/{pollID}/results
func (h *EngineHandler) Results(w http.ResponseWriter, r *http.Request) {
	pollID, err := strconv.ParseInt(chi.URLParam(r, "pollID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid poll ID")
		return
	}

	poll, ranked, err := h.engine.Results(r.Context(), pollID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			h.respondError(w, http.StatusNotFound, "Poll not found")
			return
		}
		h.log.WithError(err).WithField("poll_id", pollID).Error("Failed to load results")
		h.respondError(w, http.StatusInternalServerError, "Failed to load results")
		return
	}

	h.respondJSON(w, http.StatusOK, ResultsResponse{
		PollID:       poll.ID,
		Status:       poll.Status,
		Participants: poll.Participants,
		Proposals:    ranked,
	})
}

func (h *EngineHandler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.WithError(err).Error("Failed to encode response")
	}
}

func (h *EngineHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
