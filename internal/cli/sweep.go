package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/headline-goat/split-goat/internal/engine"
)

func newSweepCmd(opts *globalOptions) *cobra.Command {
	var (
		once     bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Analyse running campaigns and promote significant winners",
		Long: `Analyse every running campaign with auto-completion enabled and
complete the ones whose analysis recommends a winner.

Runs once with --once, otherwise repeats every --interval until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				out := cmd.OutOrStdout()

				if once {
					report, err := a.engine.SweepAndAutoComplete(context.Background())
					if err != nil {
						return fmt.Errorf("sweep failed: %w", err)
					}
					printSweepReport(out, report)
					return nil
				}

				every := a.cfg.Sweep.Interval
				if cmd.Flags().Changed("interval") {
					every = interval
				}
				if every <= 0 {
					return fmt.Errorf("--interval must be positive")
				}

				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				fmt.Fprintf(out, "Sweeping every %s. Press Ctrl+C to stop\n", every)
				return a.engine.RunSweeps(ctx, every, func(r engine.SweepReport) {
					printSweepReport(out, r)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit")
	cmd.Flags().DurationVar(&interval, "interval", 15*time.Minute, "time between sweeps (default from config)")
	return cmd
}

func printSweepReport(out io.Writer, r engine.SweepReport) {
	fmt.Fprintf(out, "Analyzed %d, promoted %d, skipped %d, failed %d\n",
		r.Analyzed, len(r.Promoted), r.Skipped, r.Failed)
	for _, p := range r.Promoted {
		fmt.Fprintf(out, "  %s: winner %s (%s)\n", p.CampaignName, p.Winner, p.TemplateID)
	}
}
