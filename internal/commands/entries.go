package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bookkeeper/internal/journal"
	"github.com/cleared-dev/bookkeeper/internal/model"
)

func newEntriesCommand(opts *options) *cobra.Command {
	var from, to, batch string
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "entries [id]",
		Short: "Show posted journal entries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := model.ParseDate(from)
			if err != nil {
				return err
			}
			end, err := model.ParseDate(to)
			if err != nil {
				return err
			}

			return opts.withLedger(cmd.Context(), func(l *ledger) error {
				r := l.db.Reader()
				var entries []model.Entry
				switch {
				case len(args) == 1:
					e, err := r.Entry(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					entries = []model.Entry{e}
				case batch != "":
					entries, err = l.db.EntriesInBatch(cmd.Context(), batch)
				default:
					entries, err = r.EntriesInRange(cmd.Context(), start, end)
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				switch {
				case asCSV:
					return journal.WriteEntries(out, entries)
				case opts.jsonOut:
					return printJSON(out, entries)
				}
				return printEntries(out, entries)
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().StringVar(&batch, "batch", "", "only entries from this import batch")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "write the entry CSV format")

	return cmd
}

func printEntries(w io.Writer, entries []model.Entry) error {
	tw := table(w)
	fmt.Fprintln(tw, "ENTRY\tDATE\tACCOUNT\tDEBIT\tCREDIT\tDESCRIPTION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t\t\t\t%s\n", e.ID, e.Date.Format(model.DateFormat), e.Description)
		for _, l := range e.Lines {
			debit, credit := "", ""
			if l.Side == model.Debit {
				debit = l.Amount.StringFixed(2)
			} else {
				credit = l.Amount.StringFixed(2)
			}
			fmt.Fprintf(tw, "\t\t%s\t%s\t%s\t%s\n", l.AccountNumber, debit, credit, l.Description)
		}
	}
	return tw.Flush()
}
