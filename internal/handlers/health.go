package handlers

import (
	"context"
	"net/http"
	"time"
)

type HealthChecker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db    HealthChecker
	redis HealthChecker
}

func NewHealthHandler(db, redis HealthChecker) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// Health pings Postgres and Redis and reports 503 if either is down.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:   "ok",
		Database: checkStatus(ctx, h.db),
		Redis:    checkStatus(ctx, h.redis),
	}
	status := http.StatusOK
	if resp.Database != "ok" || resp.Redis != "ok" {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func checkStatus(ctx context.Context, checker HealthChecker) string {
	if checker == nil {
		return "unconfigured"
	}
	if err := checker.Health(ctx); err != nil {
		return "error"
	}
	return "ok"
}
