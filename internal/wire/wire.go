// Package wire holds the JSON shapes exchanged with the upstream expense server.
// The gateway reproduces the same shapes so the UI renders server-computed and
// locally recomputed results with one code path.
//
// Decoding is tolerant: a record with an unreadable amount still decodes, and the
// problem is carried on the record so the calculator can reject it on its own.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/calculator"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// maxAmountLen caps the length of an amount cell before it is parsed.
const maxAmountLen = 64

var (
	ErrMissingAmount    = errors.New("missing amount")
	ErrInvalidAmount    = errors.New("non-numeric amount")
	ErrAmountOutOfRange = errors.New("amount out of range")
)

// amountCleaner strips the decorations a formatted table cell may carry.
var amountCleaner = strings.NewReplacer("$", "", ",", "", " ", "")

// Amount is a money value that decodes from a JSON number or a numeric string
// and always encodes as a JSON number. An unusable amount encodes as the value
// it was decoded from, or null if it was missing.
type Amount struct {
	Value decimal.Decimal
	Err   error

	set bool
	raw string
}

// NewAmount wraps a valid decimal.
func NewAmount(v decimal.Decimal) Amount {
	return Amount{Value: v, set: true}
}

// InvalidAmount carries an unusable amount together with the value it was read from.
func InvalidAmount(raw string, err error) Amount {
	return Amount{Err: err, set: true, raw: raw}
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	a.set = true
	a.raw = string(b)

	s := strings.TrimSpace(string(b))
	if s == "null" {
		a.raw = ""
		a.Err = ErrMissingAmount
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		a.raw = str
		s = amountCleaner.Replace(str)
	}

	if len(s) > maxAmountLen {
		a.Err = ErrAmountOutOfRange
		return nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		a.Err = fmt.Errorf("%w: %q", ErrInvalidAmount, a.raw)
		return nil
	}
	if !calculator.AmountInRange(v) {
		a.Err = fmt.Errorf("%w: %q", ErrAmountOutOfRange, a.raw)
		return nil
	}
	a.Value = v
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Err != nil {
		if a.raw == "" {
			return []byte("null"), nil
		}
		return json.Marshal(a.raw)
	}
	return []byte(a.Value.String()), nil
}

// Raw returns the value an unusable amount was decoded from.
func (a Amount) Raw() string {
	return a.raw
}

// Resolve returns the value, or the reason it is unusable.
func (a Amount) Resolve() (decimal.Decimal, error) {
	if !a.set {
		return decimal.Zero, ErrMissingAmount
	}
	if a.Err != nil {
		return decimal.Zero, a.Err
	}
	return a.Value, nil
}

// FlexString decodes from a JSON string or number. Upstream ids come as either.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// NameList decodes from a JSON array of names or a comma-separated string.
type NameList []string

func (l *NameList) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		var names []string
		for _, part := range strings.Split(s, ",") {
			if name := strings.TrimSpace(part); name != "" {
				names = append(names, name)
			}
		}
		*l = names
		return nil
	}
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	*l = names
	return nil
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp. Anything else yields the zero time.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}

// FormatDate renders t as a calendar date, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
