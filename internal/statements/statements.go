// Package statements composes account balances into financial statements.
//
// Every public method reads one store snapshot, so a statement that derives
// a figure from another statement (the balance sheet's year-to-date net
// income) sees the same ledger as the rest of its rows.
package statements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/bookkeeper/internal/accounts"
	"github.com/cleared-dev/bookkeeper/internal/balance"
	"github.com/cleared-dev/bookkeeper/internal/metrics"
	"github.com/cleared-dev/bookkeeper/internal/model"
	"github.com/cleared-dev/bookkeeper/internal/store"
)

// Statement names, used in logs and as the metrics label.
const (
	NameTrialBalance    = "trial_balance"
	NameIncomeStatement = "income_statement"
	NameBalanceSheet    = "balance_sheet"
	NameCashFlow        = "cash_flow"
)

// MonthDay is a day of the year, such as a fiscal year start.
type MonthDay struct {
	Month time.Month
	Day   int
}

// Options configures a Generator.
type Options struct {
	// YearStart is the first day of the fiscal year. Zero means January 1.
	YearStart MonthDay
	// CashAccounts are the accounts the cash-flow statement treats as cash
	// affecting. Nil means DefaultCashAccounts.
	CashAccounts []string
}

// DefaultCashAccounts are cash, receivables and payables in the default chart.
var DefaultCashAccounts = []string{
	accounts.NumberCash,
	accounts.NumberAccountsReceivable,
	accounts.NumberAccountsPayable,
}

// YearStartFor returns the first day of the fiscal year containing d.
func (o Options) YearStartFor(d time.Time) time.Time {
	md := o.YearStart
	if md.Month == 0 {
		md = MonthDay{Month: time.January, Day: 1}
	}
	d = model.Day(d)
	start := time.Date(d.Year(), md.Month, md.Day, 0, 0, 0, 0, time.UTC)
	if start.After(d) {
		start = start.AddDate(-1, 0, 0)
	}
	return start
}

// Row is one account line of a statement.
type Row struct {
	Number  string            `json:"number"`
	Name    string            `json:"name"`
	Type    model.AccountType `json:"type"`
	Debits  decimal.Decimal   `json:"debits"`
	Credits decimal.Decimal   `json:"credits"`
	Balance decimal.Decimal   `json:"balance"`
}

func rowOf(b model.AccountBalance) Row {
	return Row{
		Number:  b.Account.Number,
		Name:    b.Account.Name,
		Type:    b.Account.Type,
		Debits:  b.TotalDebits,
		Credits: b.TotalCredits,
		Balance: b.Balance,
	}
}

// TrialBalance lists every account's cumulative activity as of a date.
type TrialBalance struct {
	AsOf         time.Time       `json:"as_of"`
	Rows         []Row           `json:"rows"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	IsBalanced   bool            `json:"is_balanced"`
}

// IncomeStatement covers revenue and expense activity in a period.
type IncomeStatement struct {
	Start         time.Time       `json:"start"`
	End           time.Time       `json:"end"`
	Revenue       []Row           `json:"revenue"`
	Expenses      []Row           `json:"expenses"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetIncome     decimal.Decimal `json:"net_income"`
}

// BalanceSheet is the cumulative position as of a date. TotalEquity equals
// RetainedEarnings: the equity balances plus year-to-date net income.
type BalanceSheet struct {
	AsOf             time.Time       `json:"as_of"`
	YearStart        time.Time       `json:"year_start"`
	Assets           []Row           `json:"assets"`
	Liabilities      []Row           `json:"liabilities"`
	Equity           []Row           `json:"equity"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	NetIncomeYTD     decimal.Decimal `json:"net_income_ytd"`
	RetainedEarnings decimal.Decimal `json:"retained_earnings"`
	TotalEquity      decimal.Decimal `json:"total_equity"`
	IsBalanced       bool            `json:"is_balanced"`
}

// CashFlowRow is one cash-affecting account's movement in the period.
type CashFlowRow struct {
	Number  string          `json:"number"`
	Name    string          `json:"name"`
	Debits  decimal.Decimal `json:"debits"`
	Credits decimal.Decimal `json:"credits"`
	Net     decimal.Decimal `json:"net"`
}

// CashFlow is the simplified cash-flow statement. Only the operating section
// is computed; investing and financing are always zero.
type CashFlow struct {
	Start            time.Time       `json:"start"`
	End              time.Time       `json:"end"`
	Operating        []CashFlowRow   `json:"operating"`
	NetCashOperating decimal.Decimal `json:"net_cash_operating"`
	NetCashInvesting decimal.Decimal `json:"net_cash_investing"`
	NetCashFinancing decimal.Decimal `json:"net_cash_financing"`
	NetChange        decimal.Decimal `json:"net_change"`
}

// Generator produces statements from a ledger.
type Generator struct {
	db      balance.Viewer
	opts    Options
	metrics *metrics.Metrics
	log     *zap.Logger
}

// New creates a Generator. m and log may be nil.
func New(db balance.Viewer, opts Options, m *metrics.Metrics, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.CashAccounts == nil {
		opts.CashAccounts = DefaultCashAccounts
	}
	return &Generator{db: db, opts: opts, metrics: m, log: log}
}

// view runs fn in one snapshot and records how long it took.
func (g *Generator) view(ctx context.Context, name string, fn func(store.Reader) error) error {
	start := time.Now()
	defer g.metrics.ObserveStatement(name, start)

	if err := g.db.View(ctx, fn); err != nil {
		return fmt.Errorf("generating %s: %w", name, err)
	}
	g.log.Debug("statement generated", zap.String("statement", name), zap.Duration("took", time.Since(start)))
	return nil
}

// TrialBalance lists cumulative balances as of asOf (the whole ledger when
// asOf is zero).
func (g *Generator) TrialBalance(ctx context.Context, asOf time.Time, activeOnly bool) (TrialBalance, error) {
	var tb TrialBalance
	err := g.view(ctx, NameTrialBalance, func(r store.Reader) error {
		var err error
		tb, err = trialBalance(ctx, r, asOf, activeOnly)
		return err
	})
	return tb, err
}

func trialBalance(ctx context.Context, r store.Reader, asOf time.Time, activeOnly bool) (TrialBalance, error) {
	balances, err := balance.All(ctx, r, asOf, activeOnly)
	if err != nil {
		return TrialBalance{}, err
	}

	tb := TrialBalance{AsOf: model.Day(asOf), Rows: make([]Row, 0, len(balances))}
	for _, b := range balances {
		tb.Rows = append(tb.Rows, rowOf(b))
		tb.TotalDebits = tb.TotalDebits.Add(b.TotalDebits)
		tb.TotalCredits = tb.TotalCredits.Add(b.TotalCredits)
	}
	tb.IsBalanced = within(tb.TotalDebits, tb.TotalCredits)
	return tb, nil
}

// IncomeStatement reports revenue and expenses over [start, end].
func (g *Generator) IncomeStatement(ctx context.Context, start, end time.Time, activeOnly bool) (IncomeStatement, error) {
	var is IncomeStatement
	err := g.view(ctx, NameIncomeStatement, func(r store.Reader) error {
		var err error
		is, err = incomeStatement(ctx, r, start, end, activeOnly)
		return err
	})
	return is, err
}

func incomeStatement(ctx context.Context, r store.Reader, start, end time.Time, activeOnly bool) (IncomeStatement, error) {
	balances, err := balance.InWindow(ctx, r, model.Period(start, end), activeOnly)
	if err != nil {
		return IncomeStatement{}, err
	}

	is := IncomeStatement{Start: model.Day(start), End: model.Day(end)}
	for _, b := range balances {
		switch b.Account.Type {
		case model.AccountTypeRevenue:
			is.Revenue = append(is.Revenue, rowOf(b))
			is.TotalRevenue = is.TotalRevenue.Add(b.TotalCredits.Sub(b.TotalDebits))
		case model.AccountTypeExpense:
			is.Expenses = append(is.Expenses, rowOf(b))
			is.TotalExpenses = is.TotalExpenses.Add(b.TotalDebits.Sub(b.TotalCredits))
		}
	}
	is.NetIncome = is.TotalRevenue.Sub(is.TotalExpenses)
	return is, nil
}

// BalanceSheet reports the position as of asOf. Net income from the start of
// the fiscal year through asOf is folded into retained earnings.
func (g *Generator) BalanceSheet(ctx context.Context, asOf time.Time, activeOnly bool) (BalanceSheet, error) {
	if asOf.IsZero() {
		return BalanceSheet{}, errors.New("balance sheet requires an as-of date")
	}

	var bs BalanceSheet
	err := g.view(ctx, NameBalanceSheet, func(r store.Reader) error {
		tb, err := trialBalance(ctx, r, asOf, activeOnly)
		if err != nil {
			return err
		}
		yearStart := g.opts.YearStartFor(asOf)
		ytd, err := incomeStatement(ctx, r, yearStart, asOf, activeOnly)
		if err != nil {
			return err
		}
		bs = balanceSheet(tb, yearStart, ytd.NetIncome)
		return nil
	})
	return bs, err
}

func balanceSheet(tb TrialBalance, yearStart time.Time, netIncome decimal.Decimal) BalanceSheet {
	bs := BalanceSheet{AsOf: tb.AsOf, YearStart: yearStart, NetIncomeYTD: netIncome}

	equity := decimal.Zero
	for _, row := range tb.Rows {
		switch row.Type {
		case model.AccountTypeAsset:
			bs.Assets = append(bs.Assets, row)
			bs.TotalAssets = bs.TotalAssets.Add(row.Balance)
		case model.AccountTypeLiability:
			bs.Liabilities = append(bs.Liabilities, row)
			bs.TotalLiabilities = bs.TotalLiabilities.Add(row.Balance)
		case model.AccountTypeEquity:
			bs.Equity = append(bs.Equity, row)
			equity = equity.Add(row.Balance)
		}
	}

	bs.RetainedEarnings = equity.Add(netIncome)
	bs.TotalEquity = bs.RetainedEarnings
	bs.IsBalanced = within(bs.TotalAssets, bs.TotalLiabilities.Add(bs.RetainedEarnings))
	return bs
}

// CashFlow reports movement on the cash-affecting accounts over [start, end].
// Configured accounts missing from the chart are skipped.
func (g *Generator) CashFlow(ctx context.Context, start, end time.Time) (CashFlow, error) {
	var cf CashFlow
	err := g.view(ctx, NameCashFlow, func(r store.Reader) error {
		totals, err := r.Totals(ctx, model.Period(start, end))
		if err != nil {
			return err
		}

		cf = CashFlow{Start: model.Day(start), End: model.Day(end)}
		for _, number := range g.opts.CashAccounts {
			acct, err := r.AccountByNumber(ctx, number)
			if errors.Is(err, model.ErrUnknownAccount) {
				g.log.Debug("cash-flow account not in chart", zap.String("number", number))
				continue
			}
			if err != nil {
				return err
			}
			t := totals[acct.ID]
			row := CashFlowRow{
				Number:  acct.Number,
				Name:    acct.Name,
				Debits:  t.Debits,
				Credits: t.Credits,
				Net:     t.Difference(),
			}
			cf.Operating = append(cf.Operating, row)
			cf.NetCashOperating = cf.NetCashOperating.Add(row.Net)
		}
		cf.NetChange = cf.NetCashOperating.Add(cf.NetCashInvesting).Add(cf.NetCashFinancing)
		return nil
	})
	return cf, err
}

// within reports whether a and b differ by strictly less than the tolerance.
func within(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(model.Tolerance)
}
