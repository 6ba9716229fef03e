package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleared-dev/bookkeeper/internal/accounts"
	"github.com/cleared-dev/bookkeeper/internal/buildinfo"
	"github.com/cleared-dev/bookkeeper/internal/config"
	"github.com/cleared-dev/bookkeeper/internal/journal"
	"github.com/cleared-dev/bookkeeper/internal/logging"
	"github.com/cleared-dev/bookkeeper/internal/metrics"
	"github.com/cleared-dev/bookkeeper/internal/statements"
	"github.com/cleared-dev/bookkeeper/internal/store"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	configPath string
	logLevel   string
	jsonOut    bool
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:     "bookkeeper",
		Short:   "Double-entry bookkeeping for small businesses",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", config.FileName, "path to "+config.FileName)
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (overrides the config file)")
	flags.BoolVar(&opts.jsonOut, "json", false, "print JSON instead of tables")

	rootCmd.AddCommand(
		newInitCommand(opts),
		newAccountsCommand(opts),
		newPostCommand(opts),
		newEntriesCommand(opts),
		newBalanceCommand(opts),
		newReportCommand(opts),
		newServeCommand(opts),
	)

	return rootCmd
}

// ledger is an opened project: config, database and the services on top.
type ledger struct {
	root     string
	cfg      *config.Config
	log      *zap.Logger
	db       *store.DB
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	chart    *accounts.Service
	journal  *journal.Service
	reports  *statements.Generator
	stmtOpts statements.Options
}

// open loads the config named by --config and wires the ledger services.
func (o *options) open(ctx context.Context) (*ledger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config (run 'bookkeeper init' first?): %w", err)
	}

	level := o.logLevel
	if level == "" {
		level = cfg.Log.Level
	}
	log, err := logging.New(level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	month, day, err := cfg.YearStart()
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.DatabasePath(o.configPath), log)
	if err != nil {
		return nil, err
	}

	chart, err := accounts.NewService(ctx, db, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	stmtOpts := statements.Options{
		YearStart:    statements.MonthDay{Month: month, Day: day},
		CashAccounts: cfg.CashFlow.Accounts,
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.SetActiveAccounts(len(chart.List(true)))

	return &ledger{
		root:     filepath.Dir(o.configPath),
		cfg:      cfg,
		log:      log,
		db:       db,
		registry: reg,
		metrics:  m,
		chart:    chart,
		journal:  journal.NewService(chart, db, log, m),
		reports:  statements.New(db, stmtOpts, m, log),
		stmtOpts: stmtOpts,
	}, nil
}

func (l *ledger) Close() error {
	_ = l.log.Sync()
	return l.db.Close()
}

// withLedger opens the ledger for the duration of fn.
func (o *options) withLedger(ctx context.Context, fn func(*ledger) error) (err error) {
	l, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, l.Close())
	}()
	return fn(l)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table returns a tabwriter for aligned columns; call Flush when done.
func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
