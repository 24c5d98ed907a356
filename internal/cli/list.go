package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/headline-goat/split-goat/internal/store"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		Long:  `List campaigns with their status and participant counts, newest first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				ctx := context.Background()

				filter := make([]store.CampaignStatus, 0, len(statuses))
				for _, s := range statuses {
					filter = append(filter, store.CampaignStatus(s))
				}

				campaigns, err := a.engine.Campaigns(ctx, filter...)
				if err != nil {
					return fmt.Errorf("failed to list campaigns: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(campaigns) == 0 {
					fmt.Fprintln(out, "No campaigns yet.")
					fmt.Fprintln(out)
					fmt.Fprintln(out, "Create one with:")
					fmt.Fprintln(out, "  split-goat create welcome --variant A=tmpl-a:50:control --variant B=tmpl-b:50")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tSTATUS\tVARIANTS\tPARTICIPANTS\tCONVERSIONS\tWINNER\tCREATED")

				for _, c := range campaigns {
					variants, err := a.engine.CampaignVariants(ctx, c.ID)
					if err != nil {
						return fmt.Errorf("failed to get variants for %s: %w", c.Name, err)
					}

					var totals store.Counters
					for _, v := range variants {
						totals = totals.Add(v.Counters)
					}

					winner := c.WinnerVariant
					if winner == "" {
						winner = "-"
					}

					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
						c.ID,
						c.Name,
						strings.ToUpper(string(c.Status)),
						len(variants),
						formatNumber(totals.ParticipantsAssigned),
						formatNumber(totals.Conversions),
						winner,
						c.CreatedAt.Format("2006-01-02"),
					)
				}

				return w.Flush()
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "only show campaigns with these statuses")
	return cmd
}
