package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleared-dev/bookkeeper/internal/config"
	"github.com/cleared-dev/bookkeeper/internal/importer"
	"github.com/cleared-dev/bookkeeper/internal/journal"
	"github.com/cleared-dev/bookkeeper/internal/model"
)

func newPostCommand(opts *options) *cobra.Command {
	var (
		format      string
		inbox       bool
		date        string
		description string
		reference   string
		debits      []string
		credits     []string
	)

	cmd := &cobra.Command{
		Use:   "post [file...]",
		Short: "Post journal entries",
		Long: `Post journal entries from CSV files, from the import/ inbox, or a single
entry given with --debit and --credit.

Each file is posted under its own batch ID and commits as a whole: if any
entry in a file is rejected, nothing from that file is posted, so the
corrected file can be posted again. Files before it stay posted.`,
		Example: `  bookkeeper post entries.csv
  bookkeeper post --format chase statement.csv
  bookkeeper post --inbox
  bookkeeper post --date 2024-01-15 --description "Invoice 1042" --debit 1010=1000 --credit 4000=1000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			single := len(debits) > 0 || len(credits) > 0
			switch {
			case single && (inbox || len(args) > 0):
				return errors.New("--debit/--credit cannot be combined with files or --inbox")
			case !single && !inbox && len(args) == 0:
				return errors.New("nothing to post: give files, --inbox or --debit/--credit")
			}

			return opts.withLedger(cmd.Context(), func(l *ledger) error {
				out := cmd.OutOrStdout()
				if single {
					sub, err := buildSubmission(date, description, reference, debits, credits)
					if err != nil {
						return err
					}
					e, err := l.journal.PostEntry(cmd.Context(), sub)
					if err != nil {
						return err
					}
					if opts.jsonOut {
						return printJSON(out, e)
					}
					fmt.Fprintf(out, "Posted %s\n", e.ID)
					return nil
				}

				reg, err := parserRegistry(l.cfg)
				if err != nil {
					return err
				}

				var results []importer.Result
				for _, path := range args {
					p := reg.ForFile(path)
					if format != "" {
						if p = reg.Get(format); p == nil {
							return fmt.Errorf("unknown format %q", format)
						}
					}
					res, err := importer.ImportFile(cmd.Context(), l.journal, p, path)
					results = append(results, res)
					if err != nil {
						_ = opts.printResults(out, results)
						return err
					}
				}
				if inbox {
					res, err := postInbox(cmd, l, reg)
					results = append(results, res...)
					if err != nil {
						_ = opts.printResults(out, results)
						return err
					}
				}
				return opts.printResults(out, results)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "parser for the given files (default: from the file name prefix, else journal)")
	cmd.Flags().BoolVar(&inbox, "inbox", false, "post every CSV in import/ and move it to import/processed/")
	cmd.Flags().StringVar(&date, "date", "", "entry date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&description, "description", "", "entry description")
	cmd.Flags().StringVar(&reference, "reference", "", "external reference")
	cmd.Flags().StringArrayVar(&debits, "debit", nil, "debit line as ACCOUNT=AMOUNT (repeatable)")
	cmd.Flags().StringArrayVar(&credits, "credit", nil, "credit line as ACCOUNT=AMOUNT (repeatable)")

	return cmd
}

// bankParsers builds a parser for each supported bank export format.
var bankParsers = map[string]func(config.BankAccount) importer.Parser{
	"chase": func(b config.BankAccount) importer.Parser {
		return &importer.ChaseParser{
			Account:        b.Account,
			IncomeAccount:  b.IncomeAccount,
			ExpenseAccount: b.ExpenseAccount,
		}
	},
}

// parserRegistry returns the built-in parsers plus one bank parser per
// configured bank format. When two bank accounts share a format the first
// one wins.
func parserRegistry(cfg *config.Config) (*importer.Registry, error) {
	for _, b := range cfg.BankAccounts {
		if _, ok := bankParsers[strings.ToLower(b.Format)]; !ok {
			return nil, fmt.Errorf("bank account %q: unsupported format %q", b.Name, b.Format)
		}
	}

	reg := importer.DefaultRegistry()
	for format, build := range bankParsers {
		if b, ok := cfg.BankAccount(format); ok {
			reg.Register(build(b))
		}
	}
	return reg, nil
}

// postInbox posts each CSV in import/ and moves it aside once it is
// committed. A file that fails stays in the inbox with none of its entries
// posted.
func postInbox(cmd *cobra.Command, l *ledger, reg *importer.Registry) ([]importer.Result, error) {
	files, err := importer.Scan(l.root)
	if err != nil {
		return nil, err
	}

	var results []importer.Result
	for _, f := range files {
		res, err := importer.ImportFile(cmd.Context(), l.journal, reg.ForFile(f.Name), f.Path)
		results = append(results, res)
		if err != nil {
			return results, err
		}
		if err := importer.MarkProcessed(l.root, f.Name); err != nil {
			return results, err
		}
		l.log.Info("inbox file posted",
			zap.String("file", f.Name),
			zap.String("batch_id", res.BatchID),
			zap.Int("entries", len(res.EntryIDs)))
	}
	return results, nil
}

// buildSubmission assembles a single entry from --debit and --credit flags.
func buildSubmission(date, description, reference string, debits, credits []string) (journal.Submission, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return journal.Submission{}, err
	}
	if d.IsZero() {
		d = model.Day(time.Now())
	}

	sub := journal.Submission{Date: d, Description: description, Reference: reference}
	for _, group := range []struct {
		side  model.Side
		pairs []string
	}{{model.Debit, debits}, {model.Credit, credits}} {
		for _, pair := range group.pairs {
			number, amount, err := parseLinePair(pair)
			if err != nil {
				return journal.Submission{}, fmt.Errorf("--%s %q: %w", group.side, pair, err)
			}
			sub.Lines = append(sub.Lines, journal.LineInput{AccountNumber: number, Amount: amount, Side: group.side})
		}
	}
	return sub, nil
}

func parseLinePair(pair string) (string, decimal.Decimal, error) {
	number, raw, ok := strings.Cut(pair, "=")
	if !ok {
		return "", decimal.Decimal{}, errors.New("want ACCOUNT=AMOUNT")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "", decimal.Decimal{}, fmt.Errorf("parsing amount: %w", err)
	}
	return strings.TrimSpace(number), amount, nil
}

func (o *options) printResults(w io.Writer, results []importer.Result) error {
	if o.jsonOut {
		return printJSON(w, results)
	}
	tw := table(w)
	fmt.Fprintln(tw, "FILE\tFORMAT\tBATCH\tENTRIES")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.File, r.Format, r.BatchID, len(r.EntryIDs))
	}
	return tw.Flush()
}
