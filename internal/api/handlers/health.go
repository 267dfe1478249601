package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/mmynk/settleup/internal/api/dto"
)

// BreakerStater reports the upstream circuit breaker state.
type BreakerStater interface {
	BreakerState() string
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	upstream BreakerStater
}

// NewHealthHandler creates a new health handler. upstream may be nil.
func NewHealthHandler(upstream BreakerStater) *HealthHandler {
	return &HealthHandler{upstream: upstream}
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	var state string
	if h.upstream != nil {
		state = h.upstream.BreakerState()
	}
	_ = json.NewEncoder(w).Encode(dto.NewHealthResponse(state))
}
