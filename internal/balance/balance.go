// Package balance derives account balances from the journal.
//
// Balances are never stored. Every figure is recomputed from committed lines,
// so the same ledger always yields the same numbers regardless of how or in
// what order the entries were posted.
package balance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bookkeeper/internal/model"
	"github.com/cleared-dev/bookkeeper/internal/store"
)

// Signed applies the sign convention: debit-normal accounts report
// debits minus credits, credit-normal accounts credits minus debits.
func Signed(nb model.NormalBalance, t model.Totals) decimal.Decimal {
	if nb == model.NormalCredit {
		return t.Credits.Sub(t.Debits)
	}
	return t.Debits.Sub(t.Credits)
}

// Row builds an AccountBalance from an account and its totals.
func Row(a model.Account, t model.Totals) model.AccountBalance {
	return model.AccountBalance{
		Account:      a,
		TotalDebits:  t.Debits,
		TotalCredits: t.Credits,
		Balance:      Signed(a.NormalBalance, t),
	}
}

// Of returns the balance of account number from every line dated on or
// before asOf (the whole ledger when asOf is zero). An account with no lines
// has a zero balance.
func Of(ctx context.Context, r store.Reader, number string, asOf time.Time) (model.AccountBalance, error) {
	acct, err := r.AccountByNumber(ctx, number)
	if err != nil {
		return model.AccountBalance{}, err
	}

	var t model.Totals
	for pl, err := range r.LinesForAccount(ctx, acct.ID, asOf) {
		if err != nil {
			return model.AccountBalance{}, fmt.Errorf("summing account %s: %w", number, err)
		}
		t.Add(pl.Side, pl.Amount)
	}
	return Row(acct, t), nil
}

// All returns one cumulative balance per account as of asOf, in chart order.
func All(ctx context.Context, r store.Reader, asOf time.Time, activeOnly bool) ([]model.AccountBalance, error) {
	return InWindow(ctx, r, model.AsOf(asOf), activeOnly)
}

// InWindow returns one balance per account over the lines in w, in chart
// order. Accounts with no lines in w report zero.
func InWindow(ctx context.Context, r store.Reader, w model.Window, activeOnly bool) ([]model.AccountBalance, error) {
	accts, err := r.Accounts(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	totals, err := r.Totals(ctx, w)
	if err != nil {
		return nil, err
	}

	rows := make([]model.AccountBalance, len(accts))
	for i, a := range accts {
		rows[i] = Row(a, totals[a.ID])
	}
	return rows, nil
}

// Viewer runs a function against one consistent snapshot. *store.DB
// implements it.
type Viewer interface {
	View(ctx context.Context, fn func(store.Reader) error) error
}

// Engine answers balance queries for callers that hold no snapshot.
type Engine struct {
	db Viewer
}

// NewEngine creates an Engine over db.
func NewEngine(db Viewer) *Engine {
	return &Engine{db: db}
}

// Balance is Of inside its own snapshot.
func (e *Engine) Balance(ctx context.Context, number string, asOf time.Time) (model.AccountBalance, error) {
	var b model.AccountBalance
	err := e.db.View(ctx, func(r store.Reader) error {
		var err error
		b, err = Of(ctx, r, number, asOf)
		return err
	})
	return b, err
}

// Balances is All inside its own snapshot.
func (e *Engine) Balances(ctx context.Context, asOf time.Time, activeOnly bool) ([]model.AccountBalance, error) {
	var rows []model.AccountBalance
	err := e.db.View(ctx, func(r store.Reader) error {
		var err error
		rows, err = All(ctx, r, asOf, activeOnly)
		return err
	})
	return rows, err
}
