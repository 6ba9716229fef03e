package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bookkeeper/internal/balance"
	"github.com/cleared-dev/bookkeeper/internal/model"
)

func newBalanceCommand(opts *options) *cobra.Command {
	var asOf string
	var all bool

	cmd := &cobra.Command{
		Use:   "balance [number]",
		Short: "Show account balances signed by normal balance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := model.ParseDate(asOf)
			if err != nil {
				return err
			}

			return opts.withLedger(cmd.Context(), func(l *ledger) error {
				engine := balance.NewEngine(l.db)
				var rows []model.AccountBalance
				if len(args) == 1 {
					b, err := engine.Balance(cmd.Context(), args[0], d)
					if err != nil {
						return err
					}
					rows = []model.AccountBalance{b}
				} else if rows, err = engine.Balances(cmd.Context(), d, !all); err != nil {
					return err
				}

				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), rows)
				}
				return printBalances(cmd.OutOrStdout(), rows)
			})
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "balance as of this date, YYYY-MM-DD (default: all lines)")
	cmd.Flags().BoolVar(&all, "all", false, "include inactive accounts")

	return cmd
}

func printBalances(w io.Writer, rows []model.AccountBalance) error {
	tw := table(w)
	fmt.Fprintln(tw, "NUMBER\tNAME\tDEBITS\tCREDITS\tBALANCE")
	for _, b := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.Account.Number, b.Account.Name,
			b.TotalDebits.StringFixed(2), b.TotalCredits.StringFixed(2), b.Balance.StringFixed(2))
	}
	return tw.Flush()
}
