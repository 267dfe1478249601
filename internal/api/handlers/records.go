package handlers

import (
	"log/slog"
	"net/http"

	"github.com/mmynk/settleup/internal/service"
	"github.com/mmynk/settleup/internal/wire"
)

// RecordsHandler lists the raw expenses and settlements.
type RecordsHandler struct {
	*Base
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(svc *service.BalanceService, logger *slog.Logger) *RecordsHandler {
	return &RecordsHandler{
		Base: NewBase(svc, logger),
	}
}

// Expenses handles GET /api/expenses.
func (h *RecordsHandler) Expenses(w http.ResponseWriter, r *http.Request) {
	criteria, ok := h.parseCriteria(w, r)
	if !ok {
		return
	}

	list, err := h.svc.Expenses(r.Context(), criteria)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	setFreshness(w, list.Freshness)
	h.WriteJSON(w, http.StatusOK, wire.ExpensesFromModels(list.Expenses))
}

// Settlements handles GET /api/settlements. The body is a bare array.
func (h *RecordsHandler) Settlements(w http.ResponseWriter, r *http.Request) {
	criteria, ok := h.parseCriteria(w, r)
	if !ok {
		return
	}

	list, err := h.svc.Settlements(r.Context(), criteria)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	setFreshness(w, list.Freshness)
	h.WriteJSON(w, http.StatusOK, wire.SettlementsFromModels(list.Settlements))
}
