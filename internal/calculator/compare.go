package calculator

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Mismatch is a participant whose balance differs between two computations by more than Epsilon.
// A participant missing from one side counts as zero there.
type Mismatch struct {
	Participant ParticipantKey
	Local       decimal.Decimal
	Remote      decimal.Decimal
}

// CompareBalances returns the mismatches between local and remote, ordered by participant.
func CompareBalances(local, remote Balances) []Mismatch {
	keys := make(map[ParticipantKey]struct{}, len(local)+len(remote))
	for k := range local {
		keys[k] = struct{}{}
	}
	for k := range remote {
		keys[k] = struct{}{}
	}

	var mismatches []Mismatch
	for k := range keys {
		l, r := local.Get(k).Amount, remote.Get(k).Amount
		if l.Sub(r).Abs().GreaterThan(Epsilon) {
			mismatches = append(mismatches, Mismatch{Participant: k, Local: l, Remote: r})
		}
	}
	sort.Slice(mismatches, func(i, j int) bool {
		return mismatches[i].Participant < mismatches[j].Participant
	})
	return mismatches
}

// ApplySuggestions returns a copy of balances with every suggested transfer recorded as a settlement.
func ApplySuggestions(balances Balances, suggestions []Suggestion) Balances {
	out := balances.Clone()
	for _, s := range suggestions {
		out.add(s.From, s.Amount)
		out.add(s.To, s.Amount.Neg())
	}
	return out
}

// SameSuggestions reports whether two suggestion lists name the same transfers in the same order,
// with amounts equal within Epsilon.
func SameSuggestions(a, b []Suggestion) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].From != b[i].From || a[i].To != b[i].To {
			return false
		}
		if a[i].Amount.Sub(b[i].Amount).Abs().GreaterThan(Epsilon) {
			return false
		}
	}
	return true
}
