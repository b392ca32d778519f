package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthCheckTimeout bounds the session store ping of the readiness probe.
const HealthCheckTimeout = 5 * time.Second

// StorePinger is the session store as seen by the readiness probe.
type StorePinger interface {
	Ping(ctx context.Context) error
	Backend() string
}

// PoolStats is the worker pool as seen by the readiness probe.
type PoolStats interface {
	Size() int
	Active() int
	Pending() int
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store     StorePinger
	pool      PoolStats
	startTime time.Time
}

// NewHealthHandler creates a new health handler. A nil store or pool makes
// the readiness probe fail.
func NewHealthHandler(store StorePinger, pool PoolStats) *HealthHandler {
	return &HealthHandler{store: store, pool: pool, startTime: time.Now()}
}

// Liveness handles GET /health. It succeeds as long as the process serves
// HTTP.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"service":    "thumbgate",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
	}))
}

// Readiness handles GET /health/ready: the session store answers a ping
// and the worker pool exists.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil || h.pool == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("session store: "+err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"session_store": map[string]interface{}{
			"backend": h.store.Backend(),
			"latency": time.Since(start).String(),
		},
		"workers": map[string]interface{}{
			"slots":   h.pool.Size(),
			"active":  h.pool.Active(),
			"pending": h.pool.Pending(),
		},
	}))
}
