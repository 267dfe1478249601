package handlers

import (
	"log/slog"
	"net/http"

	"github.com/mmynk/settleup/internal/service"
	"github.com/mmynk/settleup/internal/wire"
)

// BalancesHandler serves computed balances and settlement suggestions.
type BalancesHandler struct {
	*Base
}

// NewBalancesHandler creates a new balances handler.
func NewBalancesHandler(svc *service.BalanceService, logger *slog.Logger) *BalancesHandler {
	return &BalancesHandler{
		Base: NewBase(svc, logger),
	}
}

// Balances handles GET /api/balances - returns each participant's net balance.
func (h *BalancesHandler) Balances(w http.ResponseWriter, r *http.Request) {
	criteria, ok := h.parseCriteria(w, r)
	if !ok {
		return
	}

	report, err := h.svc.Balances(r.Context(), criteria)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	setFreshness(w, report.Freshness)
	setRejected(w, report.Rejected)
	h.WriteJSON(w, http.StatusOK, wire.BalancesFrom(report.Balances))
}

// Suggestions handles GET /api/settlement-suggestions - returns the transfers that settle everyone up.
func (h *BalancesHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	criteria, ok := h.parseCriteria(w, r)
	if !ok {
		return
	}

	report, err := h.svc.Suggestions(r.Context(), criteria)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	setFreshness(w, report.Freshness)
	setRejected(w, report.Rejected)
	h.WriteJSON(w, http.StatusOK, wire.SuggestionsFrom(report.Suggestions))
}
