package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/bookkeeper/internal/model"
	"github.com/cleared-dev/bookkeeper/internal/statements"
)

func newReportCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate financial statements",
	}
	cmd.AddCommand(
		newTrialBalanceCommand(opts),
		newIncomeStatementCommand(opts),
		newBalanceSheetCommand(opts),
		newCashFlowCommand(opts),
	)
	return cmd
}

// asOfDate parses --as-of, defaulting to today.
func asOfDate(s string) (time.Time, error) {
	d, err := model.ParseDate(s)
	if err != nil || !d.IsZero() {
		return d, err
	}
	return model.Day(time.Now()), nil
}

// period parses --from and --to. To defaults to today and from to the start
// of the fiscal year containing to.
func period(l *ledger, from, to string) (time.Time, time.Time, error) {
	end, err := asOfDate(to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := model.ParseDate(from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start.IsZero() {
		start = l.stmtOpts.YearStartFor(end)
	}
	return start, end, nil
}

func newTrialBalanceCommand(opts *options) *cobra.Command {
	var asOf string
	var all bool

	cmd := &cobra.Command{
		Use:     "trial-balance",
		Aliases: []string{"tb"},
		Short:   "Debit and credit totals for every account",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := asOfDate(asOf)
			if err != nil {
				return err
			}
			return opts.withLedger(cmd.Context(), func(l *ledger) error {
				tb, err := l.reports.TrialBalance(cmd.Context(), d, !all)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), tb)
				}
				return printTrialBalance(cmd.OutOrStdout(), tb)
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&all, "all", false, "include inactive accounts")
	return cmd
}

func newIncomeStatementCommand(opts *options) *cobra.Command {
	var from, to string
	var all bool

	cmd := &cobra.Command{
		Use:     "income",
		Aliases: []string{"income-statement", "pnl"},
		Short:   "Revenue, expenses and net income for a period",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withLedger(cmd.Context(), func(l *ledger) error {
				start, end, err := period(l, from, to)
				if err != nil {
					return err
				}
				is, err := l.reports.IncomeStatement(cmd.Context(), start, end, !all)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), is)
				}
				return printIncomeStatement(cmd.OutOrStdout(), is)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "YYYY-MM-DD (default fiscal year start)")
	cmd.Flags().StringVar(&to, "to", "", "YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&all, "all", false, "include inactive accounts")
	return cmd
}

func newBalanceSheetCommand(opts *options) *cobra.Command {
	var asOf string
	var all bool

	cmd := &cobra.Command{
		Use:     "balance-sheet",
		Aliases: []string{"bs"},
		Short:   "Assets, liabilities and equity at a date",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := asOfDate(asOf)
			if err != nil {
				return err
			}
			return opts.withLedger(cmd.Context(), func(l *ledger) error {
				bs, err := l.reports.BalanceSheet(cmd.Context(), d, !all)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), bs)
				}
				return printBalanceSheet(cmd.OutOrStdout(), bs)
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&all, "all", false, "include inactive accounts")
	return cmd
}

func newCashFlowCommand(opts *options) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "cash-flow",
		Short: "Net change in the configured cash accounts for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withLedger(cmd.Context(), func(l *ledger) error {
				start, end, err := period(l, from, to)
				if err != nil {
					return err
				}
				cf, err := l.reports.CashFlow(cmd.Context(), start, end)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), cf)
				}
				return printCashFlow(cmd.OutOrStdout(), cf)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "YYYY-MM-DD (default fiscal year start)")
	cmd.Flags().StringVar(&to, "to", "", "YYYY-MM-DD (default today)")
	return cmd
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func printTrialBalance(w io.Writer, tb statements.TrialBalance) error {
	fmt.Fprintf(w, "Trial Balance as of %s\n\n", tb.AsOf.Format(model.DateFormat))
	tw := table(w)
	fmt.Fprintln(tw, "NUMBER\tNAME\tDEBITS\tCREDITS\tBALANCE")
	for _, r := range tb.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Number, r.Name, money(r.Debits), money(r.Credits), money(r.Balance))
	}
	fmt.Fprintf(tw, "\tTotal\t%s\t%s\t\n", money(tb.TotalDebits), money(tb.TotalCredits))
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nBalanced: %t\n", tb.IsBalanced)
	return nil
}

// section prints a titled group of rows followed by its total.
func section(tw *tabwriter.Writer, title string, rows []statements.Row, total decimal.Decimal) {
	fmt.Fprintf(tw, "%s\t\t\n", title)
	for _, r := range rows {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", r.Number, r.Name, money(r.Balance))
	}
	fmt.Fprintf(tw, "  \tTotal %s\t%s\n", title, money(total))
}

func printIncomeStatement(w io.Writer, is statements.IncomeStatement) error {
	fmt.Fprintf(w, "Income Statement %s to %s\n\n", is.Start.Format(model.DateFormat), is.End.Format(model.DateFormat))
	tw := table(w)
	section(tw, "Revenue", is.Revenue, is.TotalRevenue)
	section(tw, "Expenses", is.Expenses, is.TotalExpenses)
	fmt.Fprintf(tw, "\tNet Income\t%s\n", money(is.NetIncome))
	return tw.Flush()
}

func printBalanceSheet(w io.Writer, bs statements.BalanceSheet) error {
	fmt.Fprintf(w, "Balance Sheet as of %s (fiscal year from %s)\n\n",
		bs.AsOf.Format(model.DateFormat), bs.YearStart.Format(model.DateFormat))
	tw := table(w)
	section(tw, "Assets", bs.Assets, bs.TotalAssets)
	section(tw, "Liabilities", bs.Liabilities, bs.TotalLiabilities)
	fmt.Fprintf(tw, "Equity\t\t\n")
	for _, r := range bs.Equity {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", r.Number, r.Name, money(r.Balance))
	}
	fmt.Fprintf(tw, "  \tNet Income (YTD)\t%s\n", money(bs.NetIncomeYTD))
	fmt.Fprintf(tw, "  \tRetained Earnings\t%s\n", money(bs.RetainedEarnings))
	fmt.Fprintf(tw, "  \tTotal Equity\t%s\n", money(bs.TotalEquity))
	fmt.Fprintf(tw, "\tLiabilities + Equity\t%s\n", money(bs.TotalLiabilities.Add(bs.TotalEquity)))
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nBalanced: %t\n", bs.IsBalanced)
	return nil
}

func printCashFlow(w io.Writer, cf statements.CashFlow) error {
	fmt.Fprintf(w, "Cash Flow %s to %s\n\n", cf.Start.Format(model.DateFormat), cf.End.Format(model.DateFormat))
	tw := table(w)
	fmt.Fprintln(tw, "NUMBER\tNAME\tDEBITS\tCREDITS\tNET")
	for _, r := range cf.Operating {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Number, r.Name, money(r.Debits), money(r.Credits), money(r.Net))
	}
	fmt.Fprintf(tw, "\tOperating\t\t\t%s\n", money(cf.NetCashOperating))
	fmt.Fprintf(tw, "\tInvesting\t\t\t%s\n", money(cf.NetCashInvesting))
	fmt.Fprintf(tw, "\tFinancing\t\t\t%s\n", money(cf.NetCashFinancing))
	fmt.Fprintf(tw, "\tNet Change\t\t\t%s\n", money(cf.NetChange))
	return tw.Flush()
}
