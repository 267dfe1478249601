package models

import "time"

// Snapshot is a complete upstream record set captured at one point in time.
type Snapshot struct {
	// ID is the unique identifier for the snapshot (UUID format).
	ID string

	// FetchedAt is when the records were read from upstream.
	FetchedAt time.Time

	Expenses    []Expense
	Settlements []Settlement
}
