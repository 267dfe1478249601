// Package dto defines the gateway's own request and response bodies. Shapes shared
// with the upstream live in the wire package.
package dto

import (
	"time"

	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/service"
	"github.com/mmynk/settleup/internal/wire"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Upstream  string `json:"upstream,omitempty"` // Circuit breaker state
}

// NewHealthResponse creates a healthy response stamped with the current time.
func NewHealthResponse(upstream string) HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Upstream:  upstream,
	}
}

// RejectedRecord describes an input record left out of a computation.
type RejectedRecord struct {
	Kind   string `json:"kind"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// RejectedFrom converts service rejections. The result is never nil.
func RejectedFrom(rejected []service.Rejection) []RejectedRecord {
	out := make([]RejectedRecord, len(rejected))
	for i, r := range rejected {
		out[i] = RejectedRecord{Kind: string(r.Kind), ID: r.ID, Reason: r.Reason}
	}
	return out
}

// RecomputeRequest is the body of POST /api/recompute.
type RecomputeRequest struct {
	Expenses    []wire.ExpenseRecord `json:"expenses"`
	Settlements wire.SettlementList  `json:"settlements"`
}

// RecomputeResponse is returned by POST /api/recompute.
type RecomputeResponse struct {
	Balances    []wire.BalanceEntry    `json:"balances"`
	Suggestions []wire.SuggestionEntry `json:"suggestions"`
	AllSettled  bool                   `json:"all_settled"`
	Rejected    []RejectedRecord       `json:"rejected"`
}

// NewRecomputeResponse renders a recomputation.
func NewRecomputeResponse(r *service.Recomputation) RecomputeResponse {
	return RecomputeResponse{
		Balances:    wire.BalancesFrom(r.Balances).Balances,
		Suggestions: wire.SuggestionsFrom(r.Suggestions).Suggestions,
		AllSettled:  r.AllSettled,
		Rejected:    RejectedFrom(r.Rejected),
	}
}

// MismatchEntry is one participant whose local and upstream balances differ.
type MismatchEntry struct {
	UserName string      `json:"user_name"`
	Local    wire.Amount `json:"local"`
	Upstream wire.Amount `json:"upstream"`
}

// ConsistencyResponse is returned by GET /api/consistency.
type ConsistencyResponse struct {
	Consistent          bool                   `json:"consistent"`
	SuggestionsMatch    bool                   `json:"suggestions_match"`
	Mismatches          []MismatchEntry        `json:"mismatches"`
	LocalSuggestions    []wire.SuggestionEntry `json:"local_suggestions"`
	UpstreamSuggestions []wire.SuggestionEntry `json:"upstream_suggestions"`
}

// NewConsistencyResponse renders a consistency report.
func NewConsistencyResponse(r *service.ConsistencyReport) ConsistencyResponse {
	mismatches := make([]MismatchEntry, len(r.Mismatches))
	for i, m := range r.Mismatches {
		mismatches[i] = mismatchEntry(m)
	}
	return ConsistencyResponse{
		Consistent:          r.Consistent,
		SuggestionsMatch:    r.SuggestionsMatch,
		Mismatches:          mismatches,
		LocalSuggestions:    wire.SuggestionsFrom(r.LocalSuggestions).Suggestions,
		UpstreamSuggestions: wire.SuggestionsFrom(r.UpstreamSuggestions).Suggestions,
	}
}

func mismatchEntry(m calculator.Mismatch) MismatchEntry {
	return MismatchEntry{
		UserName: string(m.Participant),
		Local:    wire.NewAmount(m.Local.Round(2)),
		Upstream: wire.NewAmount(m.Remote.Round(2)),
	}
}
