package handlers

import (
	"log/slog"
	"net/http"

	"github.com/mmynk/settleup/internal/api/dto"
	"github.com/mmynk/settleup/internal/service"
)

// ConsistencyHandler compares local results with the upstream's.
type ConsistencyHandler struct {
	*Base
}

// NewConsistencyHandler creates a new consistency handler.
func NewConsistencyHandler(svc *service.BalanceService, logger *slog.Logger) *ConsistencyHandler {
	return &ConsistencyHandler{
		Base: NewBase(svc, logger),
	}
}

// Check handles GET /api/consistency.
func (h *ConsistencyHandler) Check(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Consistency(r.Context())
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.NewConsistencyResponse(report))
}
