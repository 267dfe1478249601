// Package models defines the domain records the gateway fetches, filters and caches.
//
// # Records
//
//   - Expense: a purchase paid by one person and shared by a list of participants
//   - Settlement: a direct payment already made between two people
//   - Snapshot: the last good copy of the upstream record set
//
// Participants are identified by name strings, exactly as the upstream expense
// server reports them. Names are the join key between expenses and settlements,
// so they are compared case-sensitively and never normalized.
//
// Balances and settlement suggestions are not models: they are derived on every
// request by the calculator package and never stored.
package models
