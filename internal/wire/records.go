package wire

import (
	"encoding/json"
	"fmt"

	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/models"
)

// ExpenseRecord is one expense as listed by GET /api/expenses.
type ExpenseRecord struct {
	ID           FlexString `json:"id"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	Date         string     `json:"date"`
	PayerName    string     `json:"payer_name"`
	Amount       Amount     `json:"amount"`
	Participants NameList   `json:"participants"`
}

// Model converts the record. An unreadable amount is carried on the model, not returned.
func (r ExpenseRecord) Model() models.Expense {
	amount, err := r.Amount.Resolve()
	return models.Expense{
		ID:           string(r.ID),
		Description:  r.Description,
		Category:     r.Category,
		Date:         ParseDate(r.Date),
		PayerName:    r.PayerName,
		Amount:       amount,
		Participants: []string(r.Participants),
		AmountErr:    err,
		RawAmount:    rawOnError(r.Amount, err),
	}
}

// ExpenseFromModel converts a model back to its wire shape.
func ExpenseFromModel(e models.Expense) ExpenseRecord {
	amount := NewAmount(e.Amount)
	if e.AmountErr != nil {
		amount = InvalidAmount(e.RawAmount, e.AmountErr)
	}
	participants := e.Participants
	if participants == nil {
		participants = []string{}
	}
	return ExpenseRecord{
		ID:           FlexString(e.ID),
		Description:  e.Description,
		Category:     e.Category,
		Date:         FormatDate(e.Date),
		PayerName:    e.PayerName,
		Amount:       amount,
		Participants: participants,
	}
}

// ExpensesResponse is the body of GET /api/expenses.
type ExpensesResponse struct {
	Expenses []ExpenseRecord `json:"expenses"`
}

// Models converts every record.
func (r ExpensesResponse) Models() []models.Expense {
	out := make([]models.Expense, len(r.Expenses))
	for i, rec := range r.Expenses {
		out[i] = rec.Model()
	}
	return out
}

// ExpensesFromModels builds a response body.
func ExpensesFromModels(expenses []models.Expense) ExpensesResponse {
	out := ExpensesResponse{Expenses: make([]ExpenseRecord, len(expenses))}
	for i, e := range expenses {
		out.Expenses[i] = ExpenseFromModel(e)
	}
	return out
}

// SettlementRecord is one recorded payment as listed by GET /api/settlements.
type SettlementRecord struct {
	ID           FlexString `json:"id"`
	PayerName    string     `json:"payer_name"`
	ReceiverName string     `json:"receiver_name"`
	Amount       Amount     `json:"amount"`
	Date         string     `json:"date"`
	Note         string     `json:"note,omitempty"`
}

// Model converts the record.
func (r SettlementRecord) Model() models.Settlement {
	amount, err := r.Amount.Resolve()
	return models.Settlement{
		ID:           string(r.ID),
		PayerName:    r.PayerName,
		ReceiverName: r.ReceiverName,
		Amount:       amount,
		Date:         ParseDate(r.Date),
		Note:         r.Note,
		AmountErr:    err,
		RawAmount:    rawOnError(r.Amount, err),
	}
}

func rawOnError(a Amount, err error) string {
	if err == nil {
		return ""
	}
	return a.Raw()
}

// SettlementFromModel converts a model back to its wire shape.
func SettlementFromModel(s models.Settlement) SettlementRecord {
	amount := NewAmount(s.Amount)
	if s.AmountErr != nil {
		amount = InvalidAmount(s.RawAmount, s.AmountErr)
	}
	return SettlementRecord{
		ID:           FlexString(s.ID),
		PayerName:    s.PayerName,
		ReceiverName: s.ReceiverName,
		Amount:       amount,
		Date:         FormatDate(s.Date),
		Note:         s.Note,
	}
}

// SettlementList is the body of GET /api/settlements. It decodes from a bare array
// or from {"settlements": [...]} and encodes as a bare array.
type SettlementList []SettlementRecord

func (l *SettlementList) UnmarshalJSON(b []byte) error {
	var records []SettlementRecord
	if err := json.Unmarshal(b, &records); err == nil {
		*l = records
		return nil
	}
	var wrapped struct {
		Settlements []SettlementRecord `json:"settlements"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return fmt.Errorf("settlements: expected array or object: %w", err)
	}
	*l = wrapped.Settlements
	return nil
}

// Models converts every record.
func (l SettlementList) Models() []models.Settlement {
	out := make([]models.Settlement, len(l))
	for i, rec := range l {
		out[i] = rec.Model()
	}
	return out
}

// SettlementsFromModels builds a response body.
func SettlementsFromModels(settlements []models.Settlement) SettlementList {
	out := make(SettlementList, len(settlements))
	for i, s := range settlements {
		out[i] = SettlementFromModel(s)
	}
	return out
}

// BalanceEntry is one row of GET /api/balances.
type BalanceEntry struct {
	UserName string `json:"user_name"`
	Balance  Amount `json:"balance"`
}

// BalancesResponse is the body of GET /api/balances.
type BalancesResponse struct {
	Balances []BalanceEntry `json:"balances"`
}

// BalancesFrom renders balances sorted for display, rounded to cents.
func BalancesFrom(b calculator.Balances) BalancesResponse {
	sorted := b.Sorted()
	out := BalancesResponse{Balances: make([]BalanceEntry, len(sorted))}
	for i, bal := range sorted {
		out.Balances[i] = BalanceEntry{
			UserName: string(bal.Participant),
			Balance:  NewAmount(bal.Amount.Round(2)),
		}
	}
	return out
}

// Calculator converts the response into a balance map.
func (r BalancesResponse) Calculator() (calculator.Balances, error) {
	out := make(calculator.Balances, len(r.Balances))
	for _, entry := range r.Balances {
		amount, err := entry.Balance.Resolve()
		if err != nil {
			return nil, fmt.Errorf("balance for %q: %w", entry.UserName, err)
		}
		key := calculator.ParticipantKey(entry.UserName)
		out[key] = calculator.Balance{Participant: key, Amount: amount}
	}
	return out, nil
}

// SuggestionEntry is one row of GET /api/settlement-suggestions.
type SuggestionEntry struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount Amount `json:"amount"`
}

// SuggestionsResponse is the body of GET /api/settlement-suggestions.
type SuggestionsResponse struct {
	Suggestions []SuggestionEntry `json:"suggestions"`
}

// SuggestionsFrom renders suggestions in order, rounded to cents.
func SuggestionsFrom(s []calculator.Suggestion) SuggestionsResponse {
	out := SuggestionsResponse{Suggestions: make([]SuggestionEntry, len(s))}
	for i, sug := range s {
		out.Suggestions[i] = SuggestionEntry{
			From:   string(sug.From),
			To:     string(sug.To),
			Amount: NewAmount(sug.Amount.Round(2)),
		}
	}
	return out
}

// Calculator converts the response into calculator suggestions.
func (r SuggestionsResponse) Calculator() ([]calculator.Suggestion, error) {
	out := make([]calculator.Suggestion, len(r.Suggestions))
	for i, entry := range r.Suggestions {
		amount, err := entry.Amount.Resolve()
		if err != nil {
			return nil, fmt.Errorf("suggestion %d: %w", i, err)
		}
		out[i] = calculator.Suggestion{
			From:   calculator.ParticipantKey(entry.From),
			To:     calculator.ParticipantKey(entry.To),
			Amount: amount,
		}
	}
	return out, nil
}
