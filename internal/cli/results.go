package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/headline-goat/split-goat/internal/engine"
	"github.com/headline-goat/split-goat/internal/stats"
	"github.com/headline-goat/split-goat/internal/store"
)

func newResultsCmd(opts *globalOptions) *cobra.Command {
	var analyze bool

	cmd := &cobra.Command{
		Use:   "results <campaign>",
		Short: "Show variant statistics and the latest analysis",
		Long: `Show per-variant counters, conversion rates with Wilson confidence
intervals, and the most recent stored analysis. With --analyze a fresh
analysis is run and stored first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				ctx := context.Background()
				out := cmd.OutOrStdout()

				c, err := a.findCampaign(ctx, args[0])
				if err != nil {
					return err
				}

				if analyze {
					if _, err := a.engine.Analyze(ctx, c.ID); err != nil {
						if !engine.IsInsufficientData(err) {
							return fmt.Errorf("failed to analyze: %w", err)
						}
						fmt.Fprintf(out, "Analysis skipped: %v\n\n", err)
					}
				}

				variants, err := a.engine.CampaignVariants(ctx, c.ID)
				if err != nil {
					return fmt.Errorf("failed to get variants: %w", err)
				}
				history, err := a.engine.ResultHistory(ctx, c.ID)
				if err != nil {
					return fmt.Errorf("failed to get results: %w", err)
				}

				printCampaignHeader(out, c)
				if err := printVariantTable(out, c, variants); err != nil {
					return err
				}
				fmt.Fprintln(out)

				if len(history) == 0 {
					fmt.Fprintln(out, "No analysis yet. Run with --analyze to compute one.")
					return nil
				}
				printAnalysis(out, history[len(history)-1], len(history))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&analyze, "analyze", false, "run and store a fresh analysis first")
	return cmd
}

func printCampaignHeader(out io.Writer, c *store.Campaign) {
	fmt.Fprintf(out, "CAMPAIGN: %s (%s)\n", c.Name, c.ID)
	fmt.Fprintf(out, "STATUS: %s\n", c.Status)
	if c.Description != "" {
		fmt.Fprintf(out, "DESCRIPTION: %s\n", c.Description)
	}
	fmt.Fprintf(out, "TRAFFIC: %g%%  CONFIDENCE: %g\n", c.TrafficSplitPercentage, c.ConfidenceLevel)
	if c.ActualStartDate != nil {
		fmt.Fprintf(out, "STARTED: %s\n", c.ActualStartDate.Format("2006-01-02"))
	}
	if c.WinnerVariant != "" {
		fmt.Fprintf(out, "WINNER: %s\n", c.WinnerVariant)
	}
	fmt.Fprintln(out)
}

func printVariantTable(out io.Writer, c *store.Campaign, variants []*store.Variant) error {
	ciLabel := fmt.Sprintf("%g%% CI", c.ConfidenceLevel*100)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "VARIANT\tTEMPLATE\tPARTICIPANTS\tSENT\tOPENED\tCLICKED\tCONVERSIONS\tRATE\t%s\n", ciLabel)

	for _, v := range variants {
		label := v.Label
		if v.IsControl {
			label += " (control)"
		}
		if v.Label == c.WinnerVariant {
			label += " ← WINNER"
		}

		ci := "N/A"
		if v.ParticipantsAssigned > 0 {
			lo, hi := stats.WilsonInterval(v.Conversions, v.ParticipantsAssigned, c.ConfidenceLevel)
			ci = fmt.Sprintf("[%.1f%%, %.1f%%]", lo*100, hi*100)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			label,
			v.TemplateID,
			formatNumber(v.ParticipantsAssigned),
			formatNumber(v.EmailsSent),
			formatNumber(v.EmailsOpened),
			formatNumber(v.EmailsClicked),
			formatNumber(v.Conversions),
			formatPercent(v.ConversionRate()),
			ci,
		)
	}
	return w.Flush()
}

func printAnalysis(out io.Writer, r *store.StatisticalResult, runs int) {
	fmt.Fprintf(out, "LATEST ANALYSIS (%s, %d stored)\n", r.CreatedAt.Format("2006-01-02 15:04"), runs)
	fmt.Fprintln(out, strings.Repeat("─", 60))
	fmt.Fprintf(out, "Control %s: %s   Treatment %s: %s   Lift: %+.1f%%\n",
		r.ControlVariant, formatPercent(r.ControlRate),
		r.TestVariant, formatPercent(r.TestRate),
		r.LiftPercentage,
	)
	fmt.Fprintf(out, "z = %.3f   p = %.4f   difference CI [%.2f%%, %.2f%%]\n",
		r.ZScore, r.PValue, r.ConfidenceIntervalLower*100, r.ConfidenceIntervalUpper*100)

	switch r.RecommendedAction {
	case store.ActionStopAndImplementWinner:
		fmt.Fprintf(out, "Recommendation: stop and implement \"%s\" (significant at %g)\n", r.RecommendedWinner, r.ConfidenceLevel)
	case store.ActionStopInconclusive:
		fmt.Fprintln(out, "Recommendation: stop, the test is inconclusive")
	default:
		fmt.Fprintf(out, "Recommendation: continue (%s participants so far)\n", formatNumber(r.TotalParticipants))
	}
}
