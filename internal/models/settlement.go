package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement represents a payment between group members to clear debts.
type Settlement struct {
	// ID is the upstream identifier of the settlement.
	ID string

	// PayerName is the person who paid (debtor settling up).
	PayerName string

	// ReceiverName is the person who received payment (creditor being paid).
	ReceiverName string

	// Amount is the payment amount.
	Amount decimal.Decimal

	// Date is the calendar date of the payment.
	Date time.Time

	// Note is an optional description for the settlement.
	Note string

	// AmountErr is set when the upstream amount could not be parsed.
	AmountErr error

	// RawAmount is the amount as the upstream sent it, kept when AmountErr is set.
	RawAmount string
}
