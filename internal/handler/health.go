package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/usedplus/core/internal/persistence"
)

// HealthHandler reports liveness/readiness against the configured
// persistence.Store, adapted from the teacher's pgxpool-based health.go:
// live never depends on external state, ready pings the actual backend.
type HealthHandler struct {
	Store persistence.Store
}

// Live handles GET /healthz: the process is up and serving.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz: the persistence backend is reachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := h.Store.Load(ctx); err != nil && err != persistence.ErrNoSnapshot {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
