package calculator

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Strategy selects how the suggester orders its working queues.
type Strategy string

const (
	// FixedPass sorts creditors and debtors once and consumes them head-first.
	FixedPass Strategy = "fixed_pass"
	// Resort re-sorts both queues after every transfer so the current largest pair is always matched.
	Resort Strategy = "resort"
)

// ParseStrategy maps a config value to a Strategy. The empty string means FixedPass.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", FixedPass:
		return FixedPass, nil
	case Resort:
		return Resort, nil
	}
	return "", fmt.Errorf("unknown settlement strategy %q", s)
}

// Suggestion is a recommended transfer from a debtor to a creditor.
type Suggestion struct {
	From   ParticipantKey // Person who owes
	To     ParticipantKey // Person who is owed
	Amount decimal.Decimal
}

type party struct {
	key       ParticipantKey
	remaining decimal.Decimal // Always positive
}

// SuggestSettlements produces transfers that bring every balance to zero.
//
// Greedy matching: the largest creditor is paired with the largest debtor, the smaller
// side is paid off, and the settled party leaves its queue. Balances within Epsilon are
// ignored. Ties are broken by participant key so the output is deterministic.
func SuggestSettlements(balances Balances, strategy Strategy) []Suggestion {
	var creditors, debtors []*party
	for key, bal := range balances {
		switch {
		case bal.Amount.GreaterThan(Epsilon):
			creditors = append(creditors, &party{key: key, remaining: bal.Amount})
		case bal.Amount.LessThan(Epsilon.Neg()):
			debtors = append(debtors, &party{key: key, remaining: bal.Amount.Neg()})
		}
	}
	sortParties(creditors)
	sortParties(debtors)

	suggestions := []Suggestion{}
	for len(creditors) > 0 && len(debtors) > 0 {
		creditor, debtor := creditors[0], debtors[0]

		// Amount to settle is minimum of what debtor owes and creditor is owed
		amount := decimal.Min(creditor.remaining, debtor.remaining)
		if amount.GreaterThan(Epsilon) {
			suggestions = append(suggestions, Suggestion{
				From:   debtor.key,
				To:     creditor.key,
				Amount: amount,
			})
		}

		creditor.remaining = creditor.remaining.Sub(amount)
		debtor.remaining = debtor.remaining.Sub(amount)

		if creditor.remaining.LessThanOrEqual(Epsilon) {
			creditors = creditors[1:]
		}
		if debtor.remaining.LessThanOrEqual(Epsilon) {
			debtors = debtors[1:]
		}

		if strategy == Resort {
			sortParties(creditors)
			sortParties(debtors)
		}
	}

	return suggestions
}

// sortParties orders by remaining amount descending, then key ascending.
func sortParties(parties []*party) {
	sort.SliceStable(parties, func(i, j int) bool {
		if c := parties[i].remaining.Cmp(parties[j].remaining); c != 0 {
			return c > 0
		}
		return parties[i].key < parties[j].key
	})
}
