package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/headline-goat/split-goat/internal/store"
)

func newWinnerCmd(opts *globalOptions) *cobra.Command {
	var (
		variant string
		yes     bool
	)

	cmd := &cobra.Command{
		Use:   "winner <campaign>",
		Short: "Declare a winner and complete the campaign",
		Long: `Declare a winning variant for a running or paused campaign and
complete it. Without --variant you are asked to pick one.

Example:
  split-goat winner welcome --variant B`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				ctx := context.Background()

				c, err := a.findCampaign(ctx, args[0])
				if err != nil {
					return err
				}

				if variant == "" {
					variants, err := a.engine.CampaignVariants(ctx, c.ID)
					if err != nil {
						return fmt.Errorf("failed to get variants: %w", err)
					}
					variant, err = promptVariant(variants)
					if err != nil {
						return err
					}
					if !yes {
						if err := confirmWinner(c.Name, variant); err != nil {
							return err
						}
					}
				}

				if err := a.engine.PromoteWinner(ctx, c.ID, variant); err != nil {
					return fmt.Errorf("failed to declare winner: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Declared winner for campaign '%s': variant %s\n", c.Name, variant)
				fmt.Fprintln(cmd.OutOrStdout(), "Campaign has been marked as completed.")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variant, "variant", "v", "", "winning variant label")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func promptVariant(variants []*store.Variant) (string, error) {
	items := make([]string, len(variants))
	for i, v := range variants {
		items[i] = fmt.Sprintf("%s  %s  %s conversion (%s participants)",
			v.Label, v.TemplateID, formatPercent(v.ConversionRate()), formatNumber(v.ParticipantsAssigned))
	}

	prompt := promptui.Select{
		Label: "Winning variant",
		Items: items,
		Size:  len(items),
	}

	idx, _, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}
	return variants[idx].Label, nil
}

func confirmWinner(name, label string) error {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Complete '%s' with winner %s", name, label),
		IsConfirm: true,
	}

	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
			return errors.New("aborted")
		}
		return err
	}
	return nil
}
