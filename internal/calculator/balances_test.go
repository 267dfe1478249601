package calculator

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func keys(names ...string) []ParticipantKey {
	out := make([]ParticipantKey, len(names))
	for i, n := range names {
		out[i] = ParticipantKey(n)
	}
	return out
}

func assertBalance(t *testing.T, balances Balances, key string, want float64) {
	t.Helper()
	got, ok := balances[ParticipantKey(key)]
	require.True(t, ok, "%s missing from balances", key)
	assert.InDelta(t, want, got.Amount.InexactFloat64(), 0.001, "%s balance", key)
}

func TestComputeBalances(t *testing.T) {
	tests := []struct {
		name         string
		expenses     []ExpenseForBalance
		settlements  []SettlementForBalance
		opts         []Option
		wantRejected int
		validateFunc func(t *testing.T, b Balances)
	}{
		{
			name: "payer splits three ways",
			expenses: []ExpenseForBalance{
				{Payer: "Alice", Amount: d("30"), Participants: keys("Alice", "Bob", "Carol")},
			},
			validateFunc: func(t *testing.T, b Balances) {
				// Alice: +30 paid, -10 share = +20
				assertBalance(t, b, "Alice", 20)
				assertBalance(t, b, "Bob", -10)
				assertBalance(t, b, "Carol", -10)
			},
		},
		{
			name: "settlement from Bob to Alice",
			expenses: []ExpenseForBalance{
				{Payer: "Alice", Amount: d("30"), Participants: keys("Alice", "Bob", "Carol")},
			},
			settlements: []SettlementForBalance{
				{Payer: "Bob", Receiver: "Alice", Amount: d("15")},
			},
			validateFunc: func(t *testing.T, b Balances) {
				assertBalance(t, b, "Alice", 5)
				assertBalance(t, b, "Bob", 5)
				assertBalance(t, b, "Carol", -10)
			},
		},
		{
			name: "self payment is neutral",
			expenses: []ExpenseForBalance{
				{Payer: "Alice", Amount: d("42.50"), Participants: keys("Alice")},
			},
			validateFunc: func(t *testing.T, b Balances) {
				assertBalance(t, b, "Alice", 0)
				assert.True(t, b.AllSettled())
			},
		},
		{
			name: "no participants falls back to payer",
			expenses: []ExpenseForBalance{
				{Payer: "Alice", Amount: d("12")},
			},
			validateFunc: func(t *testing.T, b Balances) {
				assert.Len(t, b, 1)
				assertBalance(t, b, "Alice", 0)
			},
		},
		{
			name: "payer not among participants",
			expenses: []ExpenseForBalance{
				{Payer: "Alice", Amount: d("20"), Participants: keys("Bob", "Carol")},
			},
			validateFunc: func(t *testing.T, b Balances) {
				assertBalance(t, b, "Alice", 20)
				assertBalance(t, b, "Bob", -10)
				assertBalance(t, b, "Carol", -10)
			},
		},
		{
			name: "zero amount expense still lists participants",
			expenses: []ExpenseForBalance{
				{Payer: "Alice", Amount: decimal.Zero, Participants: keys("Alice", "Bob")},
			},
			validateFunc: func(t *testing.T, b Balances) {
				assert.Len(t, b, 2)
				assert.True(t, b.AllSettled())
			},
		},
		{
			name: "duplicate participant is debited per entry",
			expenses: []ExpenseForBalance{
				{Payer: "Alice", Amount: d("30"), Participants: keys("Alice", "Bob", "Bob")},
			},
			validateFunc: func(t *testing.T, b Balances) {
				assertBalance(t, b, "Alice", 20)
				assertBalance(t, b, "Bob", -20)
			},
		},
		{
			name: "duplicate participant counted once when deduplicating",
			expenses: []ExpenseForBalance{
				{Payer: "Alice", Amount: d("30"), Participants: keys("Alice", "Bob", "Bob")},
			},
			opts: []Option{WithDedupParticipants(true)},
			validateFunc: func(t *testing.T, b Balances) {
				assertBalance(t, b, "Alice", 15)
				assertBalance(t, b, "Bob", -15)
			},
		},
		{
			name: "keys are case sensitive",
			expenses: []ExpenseForBalance{
				{Payer: "alice", Amount: d("10"), Participants: keys("Alice", "alice")},
			},
			validateFunc: func(t *testing.T, b Balances) {
				assertBalance(t, b, "alice", 5)
				assertBalance(t, b, "Alice", -5)
			},
		},
		{
			name: "malformed records are skipped",
			expenses: []ExpenseForBalance{
				{Payer: "Alice", Amount: d("30"), Participants: keys("Alice", "Bob", "Carol")},
				{Payer: "Bob", Amount: d("-5"), Participants: keys("Alice", "Bob")},
				{Payer: "", Amount: d("8"), Participants: keys("Alice")},
				{Payer: "Carol", AmountErr: errors.New("not a number"), Participants: keys("Carol", "Dave")},
				{Payer: "Carol", Amount: d("4"), Participants: keys("Carol", "")},
			},
			settlements: []SettlementForBalance{
				{Payer: "Bob", Receiver: "", Amount: d("5")},
				{Payer: "Bob", Receiver: "Alice", Amount: d("-1")},
			},
			wantRejected: 6,
			validateFunc: func(t *testing.T, b Balances) {
				assert.Len(t, b, 3)
				assertBalance(t, b, "Alice", 20)
				assertBalance(t, b, "Bob", -10)
				assertBalance(t, b, "Carol", -10)
				_, ok := b["Dave"]
				assert.False(t, ok, "rejected expense must not seed participants")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeBalances(tt.expenses, tt.settlements, tt.opts...)
			require.NotNil(t, result)
			assert.Len(t, result.Rejected, tt.wantRejected)
			assert.InDelta(t, 0, result.Balances.Sum().InexactFloat64(), 0.01, "balances must sum to zero")
			if tt.validateFunc != nil {
				tt.validateFunc(t, result.Balances)
			}
		})
	}
}

func TestComputeBalances_Empty(t *testing.T) {
	result := ComputeBalances(nil, nil)
	assert.Empty(t, result.Balances)
	assert.Empty(t, result.Rejected)
	assert.NoError(t, result.Err())
	assert.True(t, result.Balances.AllSettled())
}

func TestComputeBalances_RejectedErrors(t *testing.T) {
	result := ComputeBalances(
		[]ExpenseForBalance{{Payer: "Alice", Amount: d("-3")}},
		[]SettlementForBalance{{Payer: "Alice", Amount: d("3")}},
	)
	require.Len(t, result.Rejected, 2)

	assert.Equal(t, KindExpense, result.Rejected[0].Kind)
	assert.Equal(t, 0, result.Rejected[0].Index)
	assert.Equal(t, KindSettlement, result.Rejected[1].Kind)
	assert.Equal(t, "missing receiver", result.Rejected[1].Reason)

	err := result.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, KindExpense, recErr.Kind)
}

func TestAmountInRange(t *testing.T) {
	tests := []struct {
		amount string
		want   bool
	}{
		{"0", true},
		{"30", true},
		{"1200.50", true},
		{"0.30000000000000004", true},
		{"1000000000000", true},
		{"-1000000000000", true},
		{"1000000000000.01", false},
		{"1e13", false},
		{"1e10000000", false},
		{"1e-10000000", false},
		{"0e10000000", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, AmountInRange(d(tt.amount)))
		})
	}
}

func TestComputeBalances_HugeAmountsRejected(t *testing.T) {
	result := ComputeBalances(
		[]ExpenseForBalance{
			{Payer: "Alice", Amount: d("1e10000000"), Participants: keys("Alice", "Bob", "Carol")},
			{Payer: "Bob", Amount: d("1e-10000000"), Participants: keys("Alice", "Bob")},
			{Payer: "Carol", Amount: d("9"), Participants: keys("Alice", "Carol")},
		},
		[]SettlementForBalance{{Payer: "Bob", Receiver: "Alice", Amount: d("5e100")}},
	)

	require.Len(t, result.Rejected, 3)
	for _, rec := range result.Rejected {
		assert.Equal(t, "amount out of range", rec.Reason)
	}
	assert.Equal(t, 0, result.Rejected[0].Index)
	assert.Equal(t, 1, result.Rejected[1].Index)
	assert.Equal(t, KindSettlement, result.Rejected[2].Kind)

	assertBalance(t, result.Balances, "Alice", -4.5)
	assertBalance(t, result.Balances, "Carol", 4.5)
}

func TestComputeBalances_OrderIndependent(t *testing.T) {
	expenses := []ExpenseForBalance{
		{Payer: "Alice", Amount: d("100"), Participants: keys("Alice", "Bob", "Carol")},
		{Payer: "Bob", Amount: d("45.15"), Participants: keys("Bob", "Carol")},
		{Payer: "Carol", Amount: d("9.99"), Participants: keys("Alice", "Bob", "Carol", "Dave")},
		{Payer: "Dave", Amount: d("70"), Participants: keys("Alice", "Dave")},
	}
	settlements := []SettlementForBalance{
		{Payer: "Bob", Receiver: "Alice", Amount: d("20")},
		{Payer: "Carol", Receiver: "Dave", Amount: d("7.25")},
	}

	first := ComputeBalances(expenses, settlements).Balances
	again := ComputeBalances(expenses, settlements).Balances
	require.Len(t, again, len(first))
	for key, bal := range first {
		assert.True(t, bal.Amount.Equal(again[key].Amount), "%s: %s != %s", key, bal.Amount, again[key].Amount)
	}

	reversedExpenses := make([]ExpenseForBalance, len(expenses))
	for i, e := range expenses {
		reversedExpenses[len(expenses)-1-i] = e
	}
	reversedSettlements := []SettlementForBalance{settlements[1], settlements[0]}
	reversed := ComputeBalances(reversedExpenses, reversedSettlements).Balances

	require.Len(t, reversed, len(first))
	for key, bal := range first {
		assert.True(t, bal.Amount.Equal(reversed[key].Amount), "%s: %s != %s", key, bal.Amount, reversed[key].Amount)
	}
	assert.InDelta(t, 0, first.Sum().InexactFloat64(), 0.01)
}

func TestBalances_Sorted(t *testing.T) {
	b := Balances{
		"Carol": {Participant: "Carol", Amount: d("-10")},
		"Alice": {Participant: "Alice", Amount: d("20")},
		"Bob":   {Participant: "Bob", Amount: d("-10")},
		"Dave":  {Participant: "Dave", Amount: decimal.Zero},
	}

	sorted := b.Sorted()
	require.Len(t, sorted, 4)
	got := make([]ParticipantKey, len(sorted))
	for i, bal := range sorted {
		got[i] = bal.Participant
	}
	assert.Equal(t, keys("Alice", "Dave", "Bob", "Carol"), got)
}

func TestBalance_IsSettled(t *testing.T) {
	assert.True(t, Balance{Amount: d("0.01")}.IsSettled())
	assert.True(t, Balance{Amount: d("-0.004")}.IsSettled())
	assert.False(t, Balance{Amount: d("0.011")}.IsSettled())
	assert.False(t, Balance{Amount: d("-3")}.IsSettled())
}
