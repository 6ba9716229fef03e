package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleared-dev/bookkeeper/internal/api"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(opts *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return opts.withLedger(ctx, func(l *ledger) error {
				if addr == "" {
					addr = l.cfg.Server.Addr
				}
				ln, err := net.Listen("tcp", addr)
				if err != nil {
					return fmt.Errorf("listening on %s: %w", addr, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", l.cfg.Business.Name, ln.Addr())
				return serve(ctx, l, ln)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

// serve runs the API on ln until ctx is cancelled, then drains in-flight
// requests.
func serve(ctx context.Context, l *ledger, ln net.Listener) error {
	srv := api.NewServer(api.Deps{
		Chart:      l.chart,
		Journal:    l.journal,
		DB:         l.db,
		Statements: l.reports,
		Metrics:    l.metrics,
		Log:        l.log,
	})
	if l.cfg.Server.Metrics {
		l.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		srv.EnableMetrics(l.registry)
	}

	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.log.Info("http server starting", zap.String("addr", ln.Addr().String()))
		errCh <- httpSrv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		l.log.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
