// Package filter narrows expense and settlement lists the way the UI's filter panels do.
package filter

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/wire"
)

// Criteria holds the active filter selections. Empty fields do not filter.
type Criteria struct {
	Payers       []string
	Participants []string
	Categories   []string
	From         *time.Time // Inclusive
	To           *time.Time // Inclusive
	Search       string     // Case-insensitive substring of the description
}

// IsZero reports whether no filter is active, i.e. the request covers the full data set.
func (c Criteria) IsZero() bool {
	return len(c.Payers) == 0 &&
		len(c.Participants) == 0 &&
		len(c.Categories) == 0 &&
		c.From == nil &&
		c.To == nil &&
		strings.TrimSpace(c.Search) == ""
}

// ParseQuery reads criteria from query parameters. Multi-select values may repeat
// (?payer=Alice&payer=Bob) or be comma separated (?payer=Alice,Bob).
func ParseQuery(q url.Values) (Criteria, error) {
	c := Criteria{
		Payers:       multi(q, "payer"),
		Participants: multi(q, "participant"),
		Categories:   multi(q, "category"),
		Search:       strings.TrimSpace(q.Get("q")),
	}

	var err error
	if c.From, err = date(q, "from"); err != nil {
		return Criteria{}, err
	}
	if c.To, err = date(q, "to"); err != nil {
		return Criteria{}, err
	}
	if c.From != nil && c.To != nil && c.From.After(*c.To) {
		return Criteria{}, fmt.Errorf("from %s is after to %s", wire.FormatDate(*c.From), wire.FormatDate(*c.To))
	}
	return c, nil
}

func multi(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func date(q url.Values, key string) (*time.Time, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(wire.DateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s date %q: want YYYY-MM-DD", key, v)
	}
	return &t, nil
}

// Expenses returns the expenses matching every active criterion.
func (c Criteria) Expenses(expenses []models.Expense) []models.Expense {
	payers := set(c.Payers)
	participants := set(c.Participants)
	categories := set(c.Categories)
	search := strings.ToLower(strings.TrimSpace(c.Search))

	out := make([]models.Expense, 0, len(expenses))
	for _, e := range expenses {
		if len(payers) > 0 && !payers[e.PayerName] {
			continue
		}
		if len(participants) > 0 && !anyIn(sharers(e), participants) {
			continue
		}
		if len(categories) > 0 && !categories[e.Category] {
			continue
		}
		if !c.inRange(e.Date) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Description), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Settlements returns the settlements in the date range that involve a selected person.
// Category and search criteria do not apply to settlements.
func (c Criteria) Settlements(settlements []models.Settlement) []models.Settlement {
	people := set(append(append([]string{}, c.Payers...), c.Participants...))

	out := make([]models.Settlement, 0, len(settlements))
	for _, s := range settlements {
		if len(people) > 0 && !people[s.PayerName] && !people[s.ReceiverName] {
			continue
		}
		if !c.inRange(s.Date) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// inRange treats undated records as outside any active date range.
func (c Criteria) inRange(t time.Time) bool {
	if c.From == nil && c.To == nil {
		return true
	}
	if t.IsZero() {
		return false
	}
	if c.From != nil && t.Before(*c.From) {
		return false
	}
	if c.To != nil && t.After(*c.To) {
		return false
	}
	return true
}

// sharers lists who shares an expense. With no participants listed, the payer carried it alone.
func sharers(e models.Expense) []string {
	if len(e.Participants) == 0 && e.PayerName != "" {
		return []string{e.PayerName}
	}
	return e.Participants
}

func set(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

func anyIn(values []string, s map[string]bool) bool {
	for _, v := range values {
		if s[v] {
			return true
		}
	}
	return false
}
