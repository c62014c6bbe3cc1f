package handler

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"time"
)

// healthCheckTimeout bounds each dependency probe.
const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one backing service.
type HealthCheck func(ctx context.Context) error

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	mode    string
	cryptos []string
	checks  map[string]HealthCheck
	started time.Time
}

// NewHealthHandler creates a HealthHandler reporting mode, the supported
// cryptos and the result of each named check.
func NewHealthHandler(mode string, cryptos []string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{mode: mode, cryptos: cryptos, checks: checks, started: time.Now()}
}

// HealthCheck always answers 200 while the process serves; status becomes
// "degraded" when a dependency probe fails.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	deps := make(map[string]string, len(h.checks))
	for _, name := range slices.Sorted(maps.Keys(h.checks)) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			deps[name] = err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"mode":           h.mode,
		"cryptos":        h.cryptos,
		"dependencies":   deps,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}
