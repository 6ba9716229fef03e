package model

import "github.com/shopspring/decimal"

// AccountBalance is one account's activity inside a window, with the balance
// signed by the account's normal balance.
type AccountBalance struct {
	Account      Account         `json:"account"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	Balance      decimal.Decimal `json:"balance"`
}
