package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mmynk/settleup/internal/api/dto"
	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/service"
)

const maxRecomputeBody = 1 << 20

// RecomputeHandler runs the engine over records posted by the client.
type RecomputeHandler struct {
	*Base
}

// NewRecomputeHandler creates a new recompute handler.
func NewRecomputeHandler(svc *service.BalanceService, logger *slog.Logger) *RecomputeHandler {
	return &RecomputeHandler{
		Base: NewBase(svc, logger),
	}
}

// Recompute handles POST /api/recompute. An optional ?strategy= overrides the configured one.
func (h *RecomputeHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	var req dto.RecomputeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecomputeBody))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.WriteError(w, http.StatusRequestEntityTooLarge, dto.BadRequestError("request body too large"))
			return
		}
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body: "+err.Error()))
		return
	}

	var strategy calculator.Strategy
	if raw := r.URL.Query().Get("strategy"); raw != "" {
		parsed, err := calculator.ParseStrategy(raw)
		if err != nil {
			h.WriteError(w, http.StatusUnprocessableEntity, dto.ValidationError(err.Error()))
			return
		}
		strategy = parsed
	}

	expenses := make([]models.Expense, len(req.Expenses))
	for i, rec := range req.Expenses {
		expenses[i] = rec.Model()
	}

	result := h.svc.Recompute(expenses, req.Settlements.Models(), strategy)
	setRejected(w, result.Rejected)
	h.WriteJSON(w, http.StatusOK, dto.NewRecomputeResponse(result))
}
