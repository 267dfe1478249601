package calculator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Epsilon is the currency-rounding tolerance. Balances within Epsilon of zero are settled.
var Epsilon = decimal.New(1, -2)

// ErrInvalidRecord is wrapped by every RecordError.
var ErrInvalidRecord = errors.New("invalid record")

// MaxAmount bounds the magnitude of a single record's amount.
var MaxAmount = decimal.New(1, 12)

// Exponent bounds for a representable amount. Outside them, arithmetic on the
// decimal is no longer constant time.
const (
	minAmountExp = -32
	maxAmountExp = 12
)

// AmountInRange reports whether d is usable as a record amount: at most MaxAmount in
// magnitude and at most 32 fractional digits. Checking is cheap for any input.
func AmountInRange(d decimal.Decimal) bool {
	if exp := d.Exponent(); exp < minAmountExp || exp > maxAmountExp {
		return false
	}
	return d.Abs().Cmp(MaxAmount) <= 0
}

// ParticipantKey identifies a participant. Keys are joined by exact, case-sensitive match.
type ParticipantKey string

// ExpenseForBalance represents an expense with the minimal information needed for balance calculations.
type ExpenseForBalance struct {
	Payer        ParticipantKey
	Amount       decimal.Decimal
	Participants []ParticipantKey // Empty means the payer is the sole participant

	// AmountErr is set when the source amount could not be parsed.
	AmountErr error
}

// SettlementForBalance represents a settlement with the minimal information needed for balance calculations.
type SettlementForBalance struct {
	Payer    ParticipantKey // Who paid (debtor settling up)
	Receiver ParticipantKey // Who received (creditor being paid)
	Amount   decimal.Decimal

	AmountErr error
}

// Balance is one participant's net position.
// Positive = the group owes them, negative = they owe the group.
type Balance struct {
	Participant ParticipantKey
	Amount      decimal.Decimal
}

// IsSettled reports whether the balance is within Epsilon of zero.
func (b Balance) IsSettled() bool {
	return b.Amount.Abs().LessThanOrEqual(Epsilon)
}

// Balances maps each participant to their net balance.
type Balances map[ParticipantKey]Balance

func (b Balances) add(key ParticipantKey, delta decimal.Decimal) {
	bal, ok := b[key]
	if !ok {
		bal = Balance{Participant: key}
	}
	bal.Amount = bal.Amount.Add(delta)
	b[key] = bal
}

// Get returns the balance for key, or a zero balance if key is unknown.
func (b Balances) Get(key ParticipantKey) Balance {
	if bal, ok := b[key]; ok {
		return bal
	}
	return Balance{Participant: key}
}

// Sum returns the total of all balances. It is zero (within Epsilon) for any computed set.
func (b Balances) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, bal := range b {
		sum = sum.Add(bal.Amount)
	}
	return sum
}

// AllSettled reports whether every balance is within Epsilon of zero.
func (b Balances) AllSettled() bool {
	for _, bal := range b {
		if !bal.IsSettled() {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (b Balances) Clone() Balances {
	out := make(Balances, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Sorted returns the balances ordered by amount descending, then by participant.
func (b Balances) Sorted() []Balance {
	out := make([]Balance, 0, len(b))
	for _, bal := range b {
		out = append(out, bal)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Participant < out[j].Participant
	})
	return out
}

// RecordKind names the kind of input record.
type RecordKind string

const (
	KindExpense    RecordKind = "expense"
	KindSettlement RecordKind = "settlement"
)

// RecordError describes one input record that was left out of a computation.
type RecordError struct {
	Kind   RecordKind
	Index  int // Position in the input slice
	Reason string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Kind, e.Index, e.Reason)
}

func (e *RecordError) Unwrap() error {
	return ErrInvalidRecord
}

// Result is the outcome of ComputeBalances.
type Result struct {
	Balances Balances
	Rejected []*RecordError
}

// Err joins every rejected record into one error, or returns nil.
func (r *Result) Err() error {
	if len(r.Rejected) == 0 {
		return nil
	}
	errs := make([]error, len(r.Rejected))
	for i, rec := range r.Rejected {
		errs[i] = rec
	}
	return errors.Join(errs...)
}

type options struct {
	dedupParticipants bool
}

// Option configures ComputeBalances.
type Option func(*options)

// WithDedupParticipants makes a participant listed twice on one expense count once.
// By default each listed entry takes a share.
func WithDedupParticipants(dedup bool) Option {
	return func(o *options) {
		o.dedupParticipants = dedup
	}
}

// ComputeBalances computes the net balance of every participant across expenses and settlements.
//
// Algorithm:
// - For each expense: payer is credited the amount, each participant is debited amount/n
// - For each settlement: payer's balance improves, receiver's balance decreases
//
// Malformed records (missing payer or receiver, blank participant, negative,
// unparseable or out-of-range amount) are skipped and reported in Result.Rejected; the rest are applied.
// The result does not depend on input order.
func ComputeBalances(expenses []ExpenseForBalance, settlements []SettlementForBalance, opts ...Option) *Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	result := &Result{Balances: make(Balances)}

	for i, expense := range expenses {
		if reason := validateExpense(expense); reason != "" {
			result.Rejected = append(result.Rejected, &RecordError{Kind: KindExpense, Index: i, Reason: reason})
			continue
		}

		participants := expense.Participants
		if len(participants) == 0 {
			participants = []ParticipantKey{expense.Payer}
		}
		if o.dedupParticipants {
			participants = dedup(participants)
		}

		share := expense.Amount.Div(decimal.NewFromInt(int64(len(participants))))

		result.Balances.add(expense.Payer, expense.Amount)
		for _, p := range participants {
			result.Balances.add(p, share.Neg())
		}
	}

	for i, s := range settlements {
		if reason := validateSettlement(s); reason != "" {
			result.Rejected = append(result.Rejected, &RecordError{Kind: KindSettlement, Index: i, Reason: reason})
			continue
		}
		result.Balances.add(s.Payer, s.Amount)
		result.Balances.add(s.Receiver, s.Amount.Neg())
	}

	return result
}

func validateExpense(e ExpenseForBalance) string {
	switch {
	case e.AmountErr != nil:
		return fmt.Sprintf("invalid amount: %v", e.AmountErr)
	case e.Payer == "":
		return "missing payer"
	case !AmountInRange(e.Amount):
		return "amount out of range"
	case e.Amount.IsNegative():
		return fmt.Sprintf("negative amount %s", e.Amount)
	}
	for _, p := range e.Participants {
		if p == "" {
			return "blank participant"
		}
	}
	return ""
}

func validateSettlement(s SettlementForBalance) string {
	switch {
	case s.AmountErr != nil:
		return fmt.Sprintf("invalid amount: %v", s.AmountErr)
	case s.Payer == "":
		return "missing payer"
	case s.Receiver == "":
		return "missing receiver"
	case !AmountInRange(s.Amount):
		return "amount out of range"
	case s.Amount.IsNegative():
		return fmt.Sprintf("negative amount %s", s.Amount)
	}
	return ""
}

func dedup(keys []ParticipantKey) []ParticipantKey {
	seen := make(map[ParticipantKey]bool, len(keys))
	out := make([]ParticipantKey, 0, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
