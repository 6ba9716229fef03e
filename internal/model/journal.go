package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tolerance is the largest debit/credit discrepancy treated as balanced.
// Validation and every statement cross-check compare against it.
var Tolerance = decimal.RequireFromString("0.01")

// DateFormat is the wire and storage format of entry dates.
const DateFormat = "2006-01-02"

// Side is the debit or credit side of a journal line.
type Side string

const (
	Debit  Side = "debit"
	Credit Side = "credit"
)

// ParseSide accepts "debit"/"credit" in any casing, plus "dr"/"cr".
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debit", "dr":
		return Debit, nil
	case "credit", "cr":
		return Credit, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// Entry is a committed journal entry. It exclusively owns its lines.
type Entry struct {
	ID          string    `json:"id"` // "YYYY-MM-NNN"
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Reference   string    `json:"reference,omitempty"`
	BatchID     string    `json:"batch_id,omitempty"` // set when the entry arrived through a file import
	CreatedAt   time.Time `json:"created_at"`
	Lines       []Line    `json:"lines"`
}

// Totals sums the entry's lines by side.
func (e Entry) Totals() Totals {
	var t Totals
	for _, l := range e.Lines {
		t.Add(l.Side, l.Amount)
	}
	return t
}

// Line is one debit or credit line of an entry.
type Line struct {
	LineNo        int             `json:"line_no"`
	AccountID     int64           `json:"-"`
	AccountNumber string          `json:"account"`
	Amount        decimal.Decimal `json:"amount"`
	Side          Side            `json:"side"`
	Description   string          `json:"description,omitempty"`
}

// PostedLine is a line joined with its parent entry.
type PostedLine struct {
	EntryID string
	Date    time.Time
	Line
}

// Totals accumulates debit and credit amounts.
type Totals struct {
	Debits  decimal.Decimal
	Credits decimal.Decimal
}

// Add records amount on the given side.
func (t *Totals) Add(side Side, amount decimal.Decimal) {
	if side == Debit {
		t.Debits = t.Debits.Add(amount)
		return
	}
	t.Credits = t.Credits.Add(amount)
}

// Difference returns Debits - Credits.
func (t Totals) Difference() decimal.Decimal {
	return t.Debits.Sub(t.Credits)
}

// Balanced reports whether debits and credits agree within Tolerance.
func (t Totals) Balanced() bool {
	return t.Difference().Abs().LessThanOrEqual(Tolerance)
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "YYYY-MM-DD" date. An empty string yields the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}
