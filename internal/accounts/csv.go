package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/cleared-dev/bookkeeper/internal/model"
)

const (
	numFields     = 6
	colNumber     = 0
	colName       = 1
	colType       = 2
	colNormal     = 3
	colDesc       = 4
	colActive     = 5
	headerNumber  = "account_number"
	headerActive  = "active"
	defaultActive = true
)

// ReadAccounts reads a chart-of-accounts CSV.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}
	if records[0][colNumber] == headerNumber {
		records = records[1:]
	}

	var accounts []model.Account
	for i, rec := range records {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes a chart-of-accounts CSV.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{headerNumber, "account_name", "account_type", "normal_balance", "description", headerActive}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colNumber] = acct.Number
	row[colName] = acct.Name
	row[colType] = string(acct.Type)
	row[colNormal] = string(acct.NormalBalance)
	row[colDesc] = acct.Description
	row[colActive] = strconv.FormatBool(acct.Active)
	return row
}

// UnmarshalAccount converts a CSV row to an Account. Blank normal balance
// and active columns take the defaults.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	typ, err := model.ParseAccountType(record[colType])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing account_type: %w", err)
	}

	nb := model.DefaultNormalBalance(typ)
	if record[colNormal] != "" {
		nb, err = model.ParseNormalBalance(record[colNormal])
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing normal_balance: %w", err)
		}
	}

	active := defaultActive
	if record[colActive] != "" {
		active, err = strconv.ParseBool(record[colActive])
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing active %q: %w", record[colActive], err)
		}
	}

	return model.Account{
		Number:        record[colNumber],
		Name:          record[colName],
		Type:          typ,
		NormalBalance: nb,
		Description:   record[colDesc],
		Active:        active,
	}, nil
}
