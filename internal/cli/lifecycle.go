package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/headline-goat/split-goat/internal/store"
)

// newStatusCmd builds one of the start/pause/resume/complete/cancel commands.
func newStatusCmd(opts *globalOptions, use, short string, to store.CampaignStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <campaign>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				ctx := context.Background()

				c, err := a.findCampaign(ctx, args[0])
				if err != nil {
					return err
				}
				from := c.Status

				c, err = a.engine.TransitionStatus(ctx, c.ID, to)
				if err != nil {
					return fmt.Errorf("failed to %s campaign: %w", use, err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Campaign '%s': %s -> %s\n", c.Name, from, c.Status)
				return nil
			})
		},
	}
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <campaign>",
		Short: "Delete a draft or cancelled campaign",
		Long: `Delete a draft or cancelled campaign together with its variants,
assignments and stored analyses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				ctx := context.Background()

				c, err := a.findCampaign(ctx, args[0])
				if err != nil {
					return err
				}
				if err := a.engine.DeleteCampaign(ctx, c.ID); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Deleted campaign '%s'\n", c.Name)
				return nil
			})
		},
	}
}
