package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bookkeeper/internal/accounts"
	"github.com/cleared-dev/bookkeeper/internal/model"
)

func newAccountsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "Manage the chart of accounts",
	}
	cmd.AddCommand(
		newAccountsListCommand(opts),
		newAccountsAddCommand(opts),
		newAccountsSearchCommand(opts),
		newAccountsUpdateCommand(opts),
		newAccountsActiveCommand(opts, "activate", true),
		newAccountsActiveCommand(opts, "deactivate", false),
		newAccountsRemoveCommand(opts),
		newAccountsImportCommand(opts),
		newAccountsExportCommand(opts),
		newAccountsSeedCommand(opts),
	)
	return cmd
}

func newAccountsListCommand(opts *options) *cobra.Command {
	var all bool
	var accountType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts in number order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withLedger(cmd.Context(), func(l *ledger) error {
				list := l.chart.List(!all)
				if accountType != "" {
					t, err := model.ParseAccountType(accountType)
					if err != nil {
						return err
					}
					list = l.chart.ByType(t)
				}
				return opts.printAccounts(cmd.OutOrStdout(), list)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include inactive accounts")
	cmd.Flags().StringVar(&accountType, "type", "", "only accounts of this type")
	return cmd
}

func newAccountsSearchCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Find accounts by number, name or type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withLedger(cmd.Context(), func(l *ledger) error {
				return opts.printAccounts(cmd.OutOrStdout(), l.chart.Search(args[0]))
			})
		},
	}
}

// accountFlags are the editable account fields.
type accountFlags struct {
	name          string
	accountType   string
	normalBalance string
	description   string
}

func (f *accountFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "account name")
	cmd.Flags().StringVar(&f.accountType, "type", "", "asset, liability, equity, revenue or expense")
	cmd.Flags().StringVar(&f.normalBalance, "normal", "", "debit or credit (defaults from type)")
	cmd.Flags().StringVar(&f.description, "description", "", "free-form description")
}

// apply overlays the flags the user set onto reg.
func (f *accountFlags) apply(cmd *cobra.Command, reg *accounts.Registration) error {
	changed := cmd.Flags().Changed
	if changed("name") {
		reg.Name = f.name
	}
	if changed("type") {
		t, err := model.ParseAccountType(f.accountType)
		if err != nil {
			return err
		}
		reg.Type = t
	}
	if changed("normal") {
		nb, err := model.ParseNormalBalance(f.normalBalance)
		if err != nil {
			return err
		}
		reg.NormalBalance = nb
	}
	if changed("description") {
		reg.Description = f.description
	}
	return nil
}

func newAccountsAddCommand(opts *options) *cobra.Command {
	var f accountFlags
	var inactive bool

	cmd := &cobra.Command{
		Use:   "add <number>",
		Short: "Register a new account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := accounts.Registration{Number: args[0], Active: !inactive}
			if err := f.apply(cmd, &reg); err != nil {
				return err
			}
			return opts.withLedger(cmd.Context(), func(l *ledger) error {
				acct, err := l.chart.Register(cmd.Context(), reg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%s, %s-normal)\n", acct.Number, acct.Name, acct.Type, acct.NormalBalance)
				return nil
			})
		},
	}
	f.bind(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "register the account as inactive")
	return cmd
}

func newAccountsUpdateCommand(opts *options) *cobra.Command {
	var f accountFlags
	var newNumber string

	cmd := &cobra.Command{
		Use:   "update <number>",
		Short: "Edit an account's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withLedger(cmd.Context(), func(l *ledger) error {
				cur, err := l.chart.Lookup(args[0])
				if err != nil {
					return err
				}
				reg := accounts.Registration{
					Number:        cur.Number,
					Name:          cur.Name,
					Type:          cur.Type,
					NormalBalance: cur.NormalBalance,
					Description:   cur.Description,
					Active:        cur.Active,
				}
				if err := f.apply(cmd, &reg); err != nil {
					return err
				}
				if cmd.Flags().Changed("type") && !cmd.Flags().Changed("normal") {
					reg.NormalBalance = ""
				}
				if newNumber != "" {
					reg.Number = newNumber
				}

				acct, err := l.chart.Update(cmd.Context(), cur.Number, reg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %s\n", acct.Number, acct.Name)
				return nil
			})
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&newNumber, "number", "", "renumber the account (only while it has no lines)")
	return cmd
}

func newAccountsActiveCommand(opts *options, verb string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <number>",
		Short: fmt.Sprintf("Mark an account %sd", verb),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withLedger(cmd.Context(), func(l *ledger) error {
				acct, err := l.chart.SetActive(cmd.Context(), args[0], active)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: active=%t\n", acct.Number, acct.Name, acct.Active)
				return nil
			})
		},
	}
}

func newAccountsRemoveCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <number>",
		Short: "Delete an account that has no journal lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withLedger(cmd.Context(), func(l *ledger) error {
				if err := l.chart.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}

func newAccountsImportCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <csv>",
		Short: "Register every account in a chart CSV that is not already present",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chart, err := readChart(args[0])
			if err != nil {
				return err
			}
			return opts.withLedger(cmd.Context(), func(l *ledger) error {
				added, err := l.chart.Seed(cmd.Context(), chart)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d accounts\n", added, len(chart))
				return nil
			})
		},
	}
}

func newAccountsSeedCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Add any missing default accounts for the configured entity type",
		Long: `Register every account of the default chart for business.entity_type in
the config that is not already present. Existing accounts are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withLedger(cmd.Context(), func(l *ledger) error {
				entityType := l.cfg.Business.EntityType
				chart := accounts.DefaultChart(entityType)
				added, err := l.chart.Seed(cmd.Context(), chart)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %d of %d default accounts (%s)\n", added, len(chart), entityType)
				return nil
			})
		},
	}
}

func newAccountsExportCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the chart as CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withLedger(cmd.Context(), func(l *ledger) error {
				var w io.Writer = cmd.OutOrStdout()
				if len(args) > 0 {
					f, err := os.Create(args[0])
					if err != nil {
						return fmt.Errorf("creating %s: %w", args[0], err)
					}
					defer f.Close()
					w = f
				}
				return accounts.WriteAccounts(w, l.chart.All())
			})
		},
	}
}

func (o *options) printAccounts(w io.Writer, list []model.Account) error {
	if o.jsonOut {
		return printJSON(w, list)
	}
	tw := table(w)
	fmt.Fprintln(tw, "NUMBER\tNAME\tTYPE\tNORMAL\tACTIVE")
	for _, a := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", a.Number, a.Name, a.Type, a.NormalBalance, a.Active)
	}
	return tw.Flush()
}
