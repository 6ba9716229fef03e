// Package journal turns submitted entries into committed ledger entries.
//
// Validate enforces the double-entry rules against the chart of accounts
// and Service hands validated entries to the store, one transaction each.
package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bookkeeper/internal/model"
)

// Submission is an entry as proposed by a caller, before validation.
type Submission struct {
	Date        time.Time
	Description string
	Reference   string
	BatchID     string
	Lines       []LineInput
}

// LineInput is one proposed line. Accounts are named by number.
type LineInput struct {
	AccountNumber string
	Amount        decimal.Decimal
	Side          model.Side
	Description   string
}

// Debit is shorthand for a debit line.
func Debit(number string, amount decimal.Decimal) LineInput {
	return LineInput{AccountNumber: number, Amount: amount, Side: model.Debit}
}

// Credit is shorthand for a credit line.
func Credit(number string, amount decimal.Decimal) LineInput {
	return LineInput{AccountNumber: number, Amount: amount, Side: model.Credit}
}

// AccountResolver resolves account numbers against the chart of accounts.
type AccountResolver interface {
	Lookup(number string) (model.Account, error)
}

// Validate checks sub and returns the entry ready to commit. Every line is
// checked and every account resolved before the balance test, so the first
// error reported is the first bad line in submission order.
func Validate(sub Submission, accounts AccountResolver) (model.Entry, error) {
	if len(sub.Lines) == 0 {
		return model.Entry{}, model.ErrEmptyEntry
	}
	if sub.Date.IsZero() {
		return model.Entry{}, fmt.Errorf("entry date is required: %w", model.ErrInvalidLine)
	}

	entry := model.Entry{
		Date:        model.Day(sub.Date),
		Description: strings.TrimSpace(sub.Description),
		Reference:   strings.TrimSpace(sub.Reference),
		BatchID:     sub.BatchID,
		Lines:       make([]model.Line, 0, len(sub.Lines)),
	}

	for i, in := range sub.Lines {
		line, err := resolveLine(in, accounts)
		if err != nil {
			return model.Entry{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		entry.Lines = append(entry.Lines, line)
	}

	totals := entry.Totals()
	if !totals.Balanced() {
		return model.Entry{}, &model.UnbalancedEntryError{Debits: totals.Debits, Credits: totals.Credits}
	}
	return entry, nil
}

func resolveLine(in LineInput, accounts AccountResolver) (model.Line, error) {
	number := strings.TrimSpace(in.AccountNumber)
	if number == "" {
		return model.Line{}, fmt.Errorf("account number is required: %w", model.ErrInvalidLine)
	}
	side, err := model.ParseSide(string(in.Side))
	if err != nil {
		return model.Line{}, fmt.Errorf("%v: %w", err, model.ErrInvalidLine)
	}
	if in.Amount.IsNegative() {
		return model.Line{}, fmt.Errorf("amount %s is negative: %w", in.Amount, model.ErrInvalidLine)
	}

	acct, err := accounts.Lookup(number)
	if err != nil {
		return model.Line{}, err
	}
	if !acct.Active {
		return model.Line{}, fmt.Errorf("account %s is inactive: %w", number, model.ErrInvalidLine)
	}

	return model.Line{
		AccountID:     acct.ID,
		AccountNumber: acct.Number,
		Amount:        in.Amount,
		Side:          side,
		Description:   strings.TrimSpace(in.Description),
	}, nil
}
