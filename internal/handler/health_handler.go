package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"flowback-engine/internal/container"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	container *container.Container
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(container *container.Container) *HealthHandler {
	return &HealthHandler{
		container: container,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Database  string    `json:"database"`
	Redis     string    `json:"redis"`
}

// Check handles GET /healthz
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()
	ctx := r.Context()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Service:   "flowback-engine",
		Database:  "ok",
		Redis:     "ok",
	}
	code := http.StatusOK

	if db := h.container.GetDB(); db != nil {
		if err := db.Health(ctx); err != nil {
			logger.WithError(err).Warn("Database health check failed")
			response.Status = "degraded"
			response.Database = "unreachable"
			code = http.StatusServiceUnavailable
		}
	} else {
		response.Database = "not configured"
	}

	if rc := h.container.GetRedisClient(); rc != nil {
		if err := rc.Health(ctx); err != nil {
			logger.WithError(err).Warn("Redis health check failed")
			response.Status = "degraded"
			response.Redis = "unreachable"
			code = http.StatusServiceUnavailable
		}
	} else {
		response.Redis = "not configured"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.WithError(err).Error("Failed to encode health check response")
	}
}
