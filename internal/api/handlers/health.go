package handlers

import (
	"net/http"
	"time"

	"github.com/bimhub/bimhub/pkg/content"
	"github.com/bimhub/bimhub/pkg/store"
)

// HealthResponse is the wrapper for health probe responses.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func healthyResponse(data any) HealthResponse {
	return HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

func unhealthyResponse(errMsg string, data any) HealthResponse {
	return HealthResponse{
		Status:    "unhealthy",
		Timestamp: time.Now().UTC(),
		Data:      data,
		Error:     errMsg,
	}
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	store   store.Store
	content content.Store
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(st store.Store, cs content.Store) *HealthHandler {
	return &HealthHandler{store: st, content: cs}
}

// Liveness handles GET /health.
// Always returns 200 while the process is serving requests.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, healthyResponse(nil))
}

// Readiness handles GET /health/ready.
// Verifies database connectivity.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Healthcheck(r.Context()); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("database unreachable", nil))
		return
	}
	WriteJSONOK(w, healthyResponse(nil))
}

// storeHealth is the per-backend detail reported by the stores probe.
type storeHealth struct {
	Healthy        bool   `json:"healthy"`
	Detail         string `json:"detail,omitempty"`
	AvailableBytes int64  `json:"available_bytes,omitempty"`
}

// Stores handles GET /health/stores.
// Probes the entity store and the content store individually.
func (h *HealthHandler) Stores(w http.ResponseWriter, r *http.Request) {
	detail := make(map[string]storeHealth, 2)
	healthy := true

	if err := h.store.Healthcheck(r.Context()); err != nil {
		detail["database"] = storeHealth{Healthy: false, Detail: err.Error()}
		healthy = false
	} else {
		detail["database"] = storeHealth{Healthy: true}
	}

	ch := h.content.CheckHealth(r.Context())
	detail["content"] = storeHealth{
		Healthy:        ch.Healthy,
		Detail:         ch.Detail,
		AvailableBytes: ch.AvailableBytes,
	}
	if !ch.Healthy {
		healthy = false
	}

	if !healthy {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("one or more stores are unhealthy", detail))
		return
	}
	WriteJSONOK(w, healthyResponse(detail))
}
