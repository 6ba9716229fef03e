package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bookkeeper/internal/journal"
)

// ChaseParser turns Chase checking CSV exports into two-line entries against
// Account. Deposits credit IncomeAccount; withdrawals debit ExpenseAccount.
type ChaseParser struct {
	Account        string
	IncomeAccount  string
	ExpenseAccount string
}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
	chaseColType    = 4
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV. Zero-amount rows are skipped.
func (p *ChaseParser) Parse(r io.Reader) ([]journal.Submission, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var subs []journal.Submission
	for i, rec := range records[1:] {
		sub, ok, err := p.parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if ok {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (p *ChaseParser) parseRow(rec []string) (journal.Submission, bool, error) {
	date, err := time.Parse(chaseDateFormat, rec[chaseColDate])
	if err != nil {
		return journal.Submission{}, false, fmt.Errorf("parsing date %q: %w", rec[chaseColDate], err)
	}

	amount, err := decimal.NewFromString(rec[chaseColAmount])
	if err != nil {
		return journal.Submission{}, false, fmt.Errorf("parsing amount %q: %w", rec[chaseColAmount], err)
	}
	if amount.IsZero() {
		return journal.Submission{}, false, nil
	}

	desc := rec[chaseColDesc]
	sub := journal.Submission{
		Date:        date,
		Description: desc,
		Reference:   makeChaseRef(date, desc),
	}

	abs := amount.Abs()
	memo := rec[chaseColType]
	if amount.IsPositive() {
		sub.Lines = []journal.LineInput{
			journal.Debit(p.Account, abs),
			journal.Credit(p.IncomeAccount, abs),
		}
	} else {
		sub.Lines = []journal.LineInput{
			journal.Debit(p.ExpenseAccount, abs),
			journal.Credit(p.Account, abs),
		}
	}
	for i := range sub.Lines {
		sub.Lines[i].Description = memo
	}
	return sub, true, nil
}

// makeChaseRef creates a reference like chase_20250103_GITHUB.
func makeChaseRef(date time.Time, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("chase_%s_%s", date.Format("20060102"), prefix)
}
