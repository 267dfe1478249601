package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/filter"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/models"
)

// Rejection identifies a record the calculator skipped.
type Rejection struct {
	Kind   calculator.RecordKind
	ID     string
	Reason string
}

// BalanceReport is the outcome of Balances.
type BalanceReport struct {
	Freshness
	Balances calculator.Balances
	Rejected []Rejection
}

// SuggestionReport is the outcome of Suggestions.
type SuggestionReport struct {
	Freshness
	Balances    calculator.Balances
	Suggestions []calculator.Suggestion
	Rejected    []Rejection
}

// Recomputation is the outcome of Recompute over caller-supplied records.
type Recomputation struct {
	Balances    calculator.Balances
	Suggestions []calculator.Suggestion
	AllSettled  bool
	Rejected    []Rejection
}

// ConsistencyReport compares the local computation with the upstream's own results.
type ConsistencyReport struct {
	Consistent          bool
	Mismatches          []calculator.Mismatch
	SuggestionsMatch    bool
	LocalSuggestions    []calculator.Suggestion
	UpstreamSuggestions []calculator.Suggestion
}

// ExpenseList is the outcome of Expenses.
type ExpenseList struct {
	Freshness
	Expenses []models.Expense
}

// SettlementList is the outcome of Settlements.
type SettlementList struct {
	Freshness
	Settlements []models.Settlement
}

// Balances returns the balances over the records matching criteria. Without criteria
// the source's own balances are returned; they are recomputed from the records only
// when the source cannot provide them.
func (s *BalanceService) Balances(ctx context.Context, criteria filter.Criteria) (*BalanceReport, error) {
	s.logger.Debug("Balances request received", "filtered", !criteria.IsZero())

	if criteria.IsZero() {
		remote, err := s.source.GetBalances(ctx)
		if err == nil {
			s.refreshSnapshot(ctx)
			s.logger.Debug("Balances successful", "participants", len(remote), "source", "upstream")
			return &BalanceReport{
				Freshness: Freshness{FetchedAt: time.Now().UTC()},
				Balances:  remote,
			}, nil
		}
		s.logger.Warn("Upstream balances unavailable, recomputing", "error", err)
	}

	set, err := s.Records(ctx)
	if err != nil {
		s.logger.Error("Balances failed", "error", err)
		return nil, err
	}

	result, rejected := s.compute(criteria.Expenses(set.Expenses), criteria.Settlements(set.Settlements), origin(set))

	s.logger.Debug("Balances successful", "participants", len(result.Balances), "rejected", len(rejected))
	return &BalanceReport{
		Freshness: set.Freshness,
		Balances:  result.Balances,
		Rejected:  rejected,
	}, nil
}

// Suggestions returns the transfers that settle the balances of the records matching
// criteria. Without criteria the source's own suggestions are returned, and Balances
// is left nil; they are recomputed only when the source cannot provide them.
func (s *BalanceService) Suggestions(ctx context.Context, criteria filter.Criteria) (*SuggestionReport, error) {
	s.logger.Debug("Suggestions request received", "filtered", !criteria.IsZero())

	if criteria.IsZero() {
		remote, err := s.source.GetSuggestions(ctx)
		if err == nil {
			s.refreshSnapshot(ctx)
			s.logger.Debug("Suggestions successful", "suggestions", len(remote), "source", "upstream")
			return &SuggestionReport{
				Freshness:   Freshness{FetchedAt: time.Now().UTC()},
				Suggestions: remote,
			}, nil
		}
		s.logger.Warn("Upstream suggestions unavailable, recomputing", "error", err)
	}

	set, err := s.Records(ctx)
	if err != nil {
		s.logger.Error("Suggestions failed", "error", err)
		return nil, err
	}

	result, rejected := s.compute(criteria.Expenses(set.Expenses), criteria.Settlements(set.Settlements), origin(set))
	suggestions := s.suggest(result.Balances)

	s.logger.Debug("Suggestions successful", "suggestions", len(suggestions))
	return &SuggestionReport{
		Freshness:   set.Freshness,
		Balances:    result.Balances,
		Suggestions: suggestions,
		Rejected:    rejected,
	}, nil
}

// Recompute runs the engine over the given records without touching the source.
// An empty strategy uses the configured one.
func (s *BalanceService) Recompute(expenses []models.Expense, settlements []models.Settlement, strategy calculator.Strategy) *Recomputation {
	s.logger.Debug("Recompute request received", "expenses", len(expenses), "settlements", len(settlements))

	if strategy == "" {
		strategy = s.engine.Strategy
	}
	result, rejected := s.compute(expenses, settlements, metrics.OriginRequest)
	suggestions := calculator.SuggestSettlements(result.Balances, strategy)
	s.metrics.ObserveSuggestions(len(suggestions))

	return &Recomputation{
		Balances:    result.Balances,
		Suggestions: suggestions,
		AllSettled:  result.Balances.AllSettled(),
		Rejected:    rejected,
	}
}

// Expenses returns the expenses matching criteria.
func (s *BalanceService) Expenses(ctx context.Context, criteria filter.Criteria) (*ExpenseList, error) {
	set, err := s.Records(ctx)
	if err != nil {
		s.logger.Error("Expenses failed", "error", err)
		return nil, err
	}
	return &ExpenseList{Freshness: set.Freshness, Expenses: criteria.Expenses(set.Expenses)}, nil
}

// Settlements returns the settlements matching criteria.
func (s *BalanceService) Settlements(ctx context.Context, criteria filter.Criteria) (*SettlementList, error) {
	set, err := s.Records(ctx)
	if err != nil {
		s.logger.Error("Settlements failed", "error", err)
		return nil, err
	}
	return &SettlementList{Freshness: set.Freshness, Settlements: criteria.Settlements(set.Settlements)}, nil
}

// Consistency recomputes balances from live records and compares them with the
// balances and suggestions the upstream reports. Snapshots are never used here.
func (s *BalanceService) Consistency(ctx context.Context) (*ConsistencyReport, error) {
	s.logger.Debug("Consistency request received")

	set, err := s.fetch(ctx)
	if err != nil {
		s.logger.Error("Consistency failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	remote, err := s.source.GetBalances(ctx)
	if err != nil {
		s.logger.Error("Consistency failed", "error", err)
		return nil, fmt.Errorf("%w: get balances: %w", ErrUnavailable, err)
	}
	remoteSuggestions, err := s.source.GetSuggestions(ctx)
	if err != nil {
		s.logger.Error("Consistency failed", "error", err)
		return nil, fmt.Errorf("%w: get suggestions: %w", ErrUnavailable, err)
	}

	result, _ := s.compute(set.Expenses, set.Settlements, metrics.OriginUpstream)
	local := s.suggest(result.Balances)
	mismatches := calculator.CompareBalances(result.Balances, remote)

	report := &ConsistencyReport{
		Consistent:          len(mismatches) == 0,
		Mismatches:          mismatches,
		SuggestionsMatch:    calculator.SameSuggestions(local, remoteSuggestions),
		LocalSuggestions:    local,
		UpstreamSuggestions: remoteSuggestions,
	}
	if !report.Consistent {
		s.logger.Warn("Balances disagree with upstream", "mismatches", len(mismatches))
	}
	s.logger.Debug("Consistency successful", "consistent", report.Consistent, "suggestions_match", report.SuggestionsMatch)
	return report, nil
}

func (s *BalanceService) compute(expenses []models.Expense, settlements []models.Settlement, from string) (*calculator.Result, []Rejection) {
	var opts []calculator.Option
	if s.engine.DedupParticipants {
		opts = append(opts, calculator.WithDedupParticipants(true))
	}

	result := calculator.ComputeBalances(toExpenseInputs(expenses), toSettlementInputs(settlements), opts...)
	s.metrics.ObserveComputation(from)

	rejected := make([]Rejection, 0, len(result.Rejected))
	counts := map[calculator.RecordKind]int{}
	for _, rec := range result.Rejected {
		r := Rejection{Kind: rec.Kind, Reason: rec.Reason}
		switch rec.Kind {
		case calculator.KindExpense:
			r.ID = expenses[rec.Index].ID
		case calculator.KindSettlement:
			r.ID = settlements[rec.Index].ID
		}
		counts[rec.Kind]++
		rejected = append(rejected, r)
		s.logger.Warn("Record rejected", "kind", r.Kind, "id", r.ID, "reason", r.Reason)
	}
	for kind, n := range counts {
		s.metrics.ObserveRejected(string(kind), n)
	}
	return result, rejected
}

func (s *BalanceService) suggest(balances calculator.Balances) []calculator.Suggestion {
	suggestions := calculator.SuggestSettlements(balances, s.engine.Strategy)
	s.metrics.ObserveSuggestions(len(suggestions))
	return suggestions
}

func origin(set *RecordSet) string {
	if set.Stale {
		return metrics.OriginSnapshot
	}
	return metrics.OriginUpstream
}

func toExpenseInputs(expenses []models.Expense) []calculator.ExpenseForBalance {
	out := make([]calculator.ExpenseForBalance, len(expenses))
	for i, e := range expenses {
		participants := make([]calculator.ParticipantKey, len(e.Participants))
		for j, p := range e.Participants {
			participants[j] = calculator.ParticipantKey(p)
		}
		out[i] = calculator.ExpenseForBalance{
			Payer:        calculator.ParticipantKey(e.PayerName),
			Amount:       e.Amount,
			Participants: participants,
			AmountErr:    e.AmountErr,
		}
	}
	return out
}

func toSettlementInputs(settlements []models.Settlement) []calculator.SettlementForBalance {
	out := make([]calculator.SettlementForBalance, len(settlements))
	for i, st := range settlements {
		out[i] = calculator.SettlementForBalance{
			Payer:     calculator.ParticipantKey(st.PayerName),
			Receiver:  calculator.ParticipantKey(st.ReceiverName),
			Amount:    st.Amount,
			AmountErr: st.AmountErr,
		}
	}
	return out
}
