package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bookkeeper/internal/accounts"
	"github.com/cleared-dev/bookkeeper/internal/config"
	"github.com/cleared-dev/bookkeeper/internal/model"
)

func newInitCommand(opts *options) *cobra.Command {
	var name string
	var entityType string
	var chartPath string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.Context(), cmd.OutOrStdout(), opts, absDir, name, entityType, chartPath)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&entityType, "entity-type", "small_business", "entity type")
	cmd.Flags().StringVar(&chartPath, "chart", "", "seed the chart from this CSV instead of the default chart")

	return cmd
}

func runInit(ctx context.Context, out io.Writer, opts *options, dir, name, entityType, chartPath string) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", cfgPath, err)
	}

	chart := accounts.DefaultChart(entityType)
	if chartPath != "" {
		var err error
		if chart, err = readChart(chartPath); err != nil {
			return err
		}
	}

	// Create directory structure.
	for _, d := range []string{"import", filepath.Join("import", "processed")} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default(name, entityType)
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	opts.configPath = cfgPath
	return opts.withLedger(ctx, func(l *ledger) error {
		added, err := l.chart.Seed(ctx, chart)
		if err != nil {
			return fmt.Errorf("seeding chart of accounts: %w", err)
		}
		fmt.Fprintf(out, "Initialized ledger at %s (%d accounts)\n", dir, added)
		return nil
	})
}

func readChart(path string) ([]model.Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening chart: %w", err)
	}
	defer f.Close()

	chart, err := accounts.ReadAccounts(f)
	if err != nil {
		return nil, fmt.Errorf("reading chart %s: %w", path, err)
	}
	return chart, nil
}
