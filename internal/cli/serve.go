package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/headline-goat/split-goat/internal/server"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		port    int
		noSweep bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the split-goat HTTP server.

The server provides:
  - POST /assign, /events and /conversions for senders
  - Token-protected campaign API under /api/campaigns
  - Health check and Prometheus metrics

Unless --no-sweep is set, the auto-completion sweep runs in the background
at the configured interval.

Example:
  split-goat serve --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if cmd.Flags().Changed("port") {
					a.cfg.Server.Port = port
				}

				srv := server.New(a.engine, a.cfg.Server.Port, a.cfg.Server.Token,
					server.WithLogger(a.logger),
					server.WithGatherer(a.registry),
				)

				out := cmd.OutOrStdout()
				fmt.Fprintln(out)
				fmt.Fprintf(out, "split-goat running on http://localhost:%d\n", a.cfg.Server.Port)
				if a.cfg.Server.Token == "" {
					if err := writeTokenFile(a.cfg.Database.Path, srv.Token()); err != nil {
						a.logger.Warn("token file not written", zap.Error(err))
					}
					fmt.Fprintf(out, "API token: %s (run 'split-goat token' to see it again)\n", srv.Token())
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Press Ctrl+C to stop")

				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					return srv.Run(ctx)
				})
				if !noSweep {
					g.Go(func() error {
						return a.engine.RunSweeps(ctx, a.cfg.Sweep.Interval, nil)
					})
				}

				err := g.Wait()
				a.logger.Info("split-goat stopped", zap.Error(err))
				return err
			})
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on (default from config)")
	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "do not run the background sweep")
	return cmd
}
