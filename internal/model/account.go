package model

import (
	"fmt"
	"strings"
	"time"
)

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// AccountTypes lists every account type in statement order.
var AccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeRevenue,
	AccountTypeExpense,
}

// ParseAccountType accepts any casing ("Asset", "asset", "ASSET").
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AccountTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown account type %q", s)
}

// NormalBalance is the side on which an account's balance is positive.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "debit"
	NormalCredit NormalBalance = "credit"
)

// ParseNormalBalance accepts any casing ("Debit", "credit").
func ParseNormalBalance(s string) (NormalBalance, error) {
	switch NormalBalance(strings.ToLower(strings.TrimSpace(s))) {
	case NormalDebit:
		return NormalDebit, nil
	case NormalCredit:
		return NormalCredit, nil
	}
	return "", fmt.Errorf("unknown normal balance %q", s)
}

// DefaultNormalBalance returns the conventional polarity for an account type.
// Assets and expenses are debit-normal; everything else is credit-normal.
func DefaultNormalBalance(t AccountType) NormalBalance {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return NormalDebit
	default:
		return NormalCredit
	}
}

// Account is one row of the chart of accounts.
type Account struct {
	ID            int64         `json:"-"` // storage identifier, never shown to collaborators
	Number        string        `json:"number"`
	Name          string        `json:"name"`
	Type          AccountType   `json:"type"`
	NormalBalance NormalBalance `json:"normal_balance"`
	Description   string        `json:"description,omitempty"`
	Active        bool          `json:"active"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
