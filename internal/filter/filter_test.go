package filter

import (
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/settleup/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

var testExpenses = []models.Expense{
	{ID: "1", Description: "Weekly groceries", Category: "Food", Date: day("2024-03-01"), PayerName: "Alice", Amount: decimal.NewFromInt(30), Participants: []string{"Alice", "Bob", "Carol"}},
	{ID: "2", Description: "Cabin deposit", Category: "Travel", Date: day("2024-03-10"), PayerName: "Bob", Amount: decimal.NewFromInt(200), Participants: []string{"Alice", "Bob"}},
	{ID: "3", Description: "Pizza night", Category: "Food", Date: day("2024-04-02"), PayerName: "Carol", Amount: decimal.NewFromInt(45), Participants: []string{"Carol", "Dave"}},
	{ID: "4", Description: "Undated taxi", Category: "Travel", PayerName: "Dave", Amount: decimal.NewFromInt(18), Participants: []string{"Dave", "Alice"}},
	{ID: "5", Description: "Solo lunch", Category: "Food", Date: day("2024-04-05"), PayerName: "Erin", Amount: decimal.NewFromInt(12)},
}

var testSettlements = []models.Settlement{
	{ID: "s1", PayerName: "Bob", ReceiverName: "Alice", Amount: decimal.NewFromInt(15), Date: day("2024-03-05")},
	{ID: "s2", PayerName: "Dave", ReceiverName: "Carol", Amount: decimal.NewFromInt(20), Date: day("2024-04-03")},
}

func ids(expenses []models.Expense) []string {
	out := make([]string, len(expenses))
	for i, e := range expenses {
		out[i] = e.ID
	}
	return out
}

func TestCriteria_Expenses(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{name: "no criteria keeps everything", criteria: Criteria{}, want: []string{"1", "2", "3", "4", "5"}},
		{name: "payer multi-select", criteria: Criteria{Payers: []string{"Alice", "Carol"}}, want: []string{"1", "3"}},
		{name: "participant matches any listed person", criteria: Criteria{Participants: []string{"Dave"}}, want: []string{"3", "4"}},
		{name: "payer is the participant when none are listed", criteria: Criteria{Participants: []string{"Erin"}}, want: []string{"5"}},
		{name: "category", criteria: Criteria{Categories: []string{"Travel"}}, want: []string{"2", "4"}},
		{name: "date range is inclusive and drops undated", criteria: Criteria{From: ptr(day("2024-03-01")), To: ptr(day("2024-03-10"))}, want: []string{"1", "2"}},
		{name: "open-ended range", criteria: Criteria{From: ptr(day("2024-03-02"))}, want: []string{"2", "3", "5"}},
		{name: "search is case-insensitive", criteria: Criteria{Search: "PIZZA"}, want: []string{"3"}},
		{name: "criteria combine", criteria: Criteria{Categories: []string{"Food"}, Payers: []string{"Alice"}}, want: []string{"1"}},
		{name: "payer names are case sensitive", criteria: Criteria{Payers: []string{"alice"}}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.criteria.Expenses(testExpenses)))
		})
	}
}

func TestCriteria_Settlements(t *testing.T) {
	got := Criteria{Participants: []string{"Alice"}}.Settlements(testSettlements)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)

	got = Criteria{From: ptr(day("2024-04-01"))}.Settlements(testSettlements)
	require.Len(t, got, 1)
	assert.Equal(t, "s2", got[0].ID)

	got = Criteria{Categories: []string{"Food"}}.Settlements(testSettlements)
	assert.Len(t, got, 2)
}

func TestCriteria_IsZero(t *testing.T) {
	assert.True(t, Criteria{}.IsZero())
	assert.True(t, Criteria{Search: "  "}.IsZero())
	assert.False(t, Criteria{Payers: []string{"Alice"}}.IsZero())
	assert.False(t, Criteria{To: ptr(day("2024-01-01"))}.IsZero())
}

func TestParseQuery(t *testing.T) {
	q := url.Values{
		"payer":       {"Alice,Bob", "Carol"},
		"participant": {" Dave "},
		"category":    {""},
		"from":        {"2024-03-01"},
		"to":          {"2024-03-31"},
		"q":           {"pizza"},
	}

	c, err := ParseQuery(q)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, c.Payers)
	assert.Equal(t, []string{"Dave"}, c.Participants)
	assert.Empty(t, c.Categories)
	require.NotNil(t, c.From)
	assert.Equal(t, day("2024-03-01"), *c.From)
	assert.Equal(t, "pizza", c.Search)

	empty, err := ParseQuery(url.Values{})
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
}

func TestParseQuery_Errors(t *testing.T) {
	_, err := ParseQuery(url.Values{"from": {"03/01/2024"}})
	assert.Error(t, err)

	_, err = ParseQuery(url.Values{"from": {"2024-04-01"}, "to": {"2024-03-01"}})
	assert.Error(t, err)
}
