package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense represents one shared purchase.
type Expense struct {
	// ID is the upstream identifier of the expense.
	ID string

	// Description is the free-text label (e.g., "Groceries", "Cabin deposit").
	Description string

	// Category is the budgeting category the expense is filed under.
	Category string

	// Date is the calendar date of the expense. Zero if the upstream did not send one.
	Date time.Time

	// PayerName is the person who paid the full amount.
	PayerName string

	// Amount is the total paid.
	Amount decimal.Decimal

	// Participants are the people sharing the expense equally.
	// Empty means the payer carried it alone.
	Participants []string

	// AmountErr is set when the upstream amount could not be parsed.
	// Such expenses are kept so they can be reported, but never enter a balance.
	AmountErr error

	// RawAmount is the amount as the upstream sent it, kept when AmountErr is set.
	RawAmount string
}
