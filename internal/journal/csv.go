package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bookkeeper/internal/model"
)

// Header is the CSV header for entry files.
const Header = "entry,date,description,reference,account,debit,credit,memo"

const (
	numFields = 8
	colEntry  = 0
	colDate   = 1
	colDesc   = 2
	colRef    = 3
	colAcct   = 4
	colDebit  = 5
	colCredit = 6
	colMemo   = 7
)

// ReadSubmissions reads an entry CSV. Rows sharing an entry key form one
// submission; the first row of each key supplies date, description and
// reference. Submissions come back in first-seen order.
func ReadSubmissions(r io.Reader) ([]Submission, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading entry CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	first := 0
	if records[0][colEntry] == "entry" {
		first = 1
	}

	var (
		subs  []Submission
		index = make(map[string]int)
	)
	for i, rec := range records[first:] {
		row := i + first + 1
		key := strings.TrimSpace(rec[colEntry])
		if key == "" {
			return nil, fmt.Errorf("row %d: entry key is required", row)
		}

		line, err := UnmarshalLine(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		n, seen := index[key]
		if !seen {
			date, err := model.ParseDate(rec[colDate])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", row, err)
			}
			if date.IsZero() {
				return nil, fmt.Errorf("row %d: date is required", row)
			}
			subs = append(subs, Submission{
				Date:        date,
				Description: rec[colDesc],
				Reference:   rec[colRef],
			})
			n = len(subs) - 1
			index[key] = n
		}
		subs[n].Lines = append(subs[n].Lines, line)
	}
	return subs, nil
}

// UnmarshalLine converts the line columns of a CSV row. Exactly one of the
// debit and credit columns must be filled.
func UnmarshalLine(record []string) (LineInput, error) {
	if len(record) != numFields {
		return LineInput{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	debitStr := strings.TrimSpace(record[colDebit])
	creditStr := strings.TrimSpace(record[colCredit])
	if (debitStr == "") == (creditStr == "") {
		return LineInput{}, fmt.Errorf("line must have exactly one of debit or credit")
	}

	side, raw := model.Debit, debitStr
	if creditStr != "" {
		side, raw = model.Credit, creditStr
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return LineInput{}, fmt.Errorf("parsing %s %q: %w", side, raw, err)
	}

	return LineInput{
		AccountNumber: strings.TrimSpace(record[colAcct]),
		Amount:        amount,
		Side:          side,
		Description:   record[colMemo],
	}, nil
}

// WriteEntries writes committed entries in the same CSV layout, keyed by
// entry ID, so an export can be read back with ReadSubmissions.
func WriteEntries(w io.Writer, entries []model.Entry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, e := range entries {
		for _, l := range e.Lines {
			if err := cw.Write(MarshalLine(e, l)); err != nil {
				return fmt.Errorf("writing %s line %d: %w", e.ID, l.LineNo, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalLine converts one committed line to a CSV row.
func MarshalLine(e model.Entry, l model.Line) []string {
	row := make([]string, numFields)
	row[colEntry] = e.ID
	row[colDate] = e.Date.Format(model.DateFormat)
	row[colDesc] = e.Description
	row[colRef] = e.Reference
	row[colAcct] = l.AccountNumber
	if l.Side == model.Debit {
		row[colDebit] = formatAmount(l.Amount)
	} else {
		row[colCredit] = formatAmount(l.Amount)
	}
	row[colMemo] = l.Description
	return row
}

// formatAmount prints at least two decimal places without dropping any.
func formatAmount(d decimal.Decimal) string {
	places := max(int32(2), -d.Exponent())
	return d.StringFixed(places)
}
