package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/headline-goat/split-goat/internal/engine"
	"github.com/headline-goat/split-goat/internal/metrics"
)

func newAssignCmd(opts *globalOptions) *cobra.Command {
	var defaultTemplate string

	cmd := &cobra.Command{
		Use:   "assign <campaign> <subject>",
		Short: "Assign a subject and print the template to send",
		Long: `Assign a subject to a variant of a running campaign and print the
template id to send. Subjects outside the experiment get --default.

Example:
  split-goat assign welcome user-42 --default tmpl-welcome-v1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				ctx := context.Background()

				c, err := a.findCampaign(ctx, args[0])
				if err != nil {
					return err
				}

				templateID, err := a.engine.AssignSubject(ctx, c.ID, args[1], defaultTemplate)
				if err != nil {
					return fmt.Errorf("failed to assign subject: %w", err)
				}

				fmt.Fprintln(cmd.OutOrStdout(), templateID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&defaultTemplate, "default", "d", "", "template for subjects outside the experiment")
	return cmd
}

func newEventCmd(opts *globalOptions) *cobra.Command {
	var (
		byDelivery bool
		at         string
	)

	cmd := &cobra.Command{
		Use:   "event <assignment> <sent|delivered|opened|clicked>",
		Short: "Record a delivery event for an assignment",
		Long: `Record a delivery event. The reference is an assignment id, or a
delivery id with --delivery.

Examples:
  split-goat event 6f1c... opened
  split-goat event msg-881 clicked --delivery`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := metrics.ParseKind(args[1])
			if err != nil {
				return err
			}

			var when time.Time
			if at != "" {
				when, err = time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			ref := engine.AssignmentRef{AssignmentID: args[0]}
			if byDelivery {
				ref = engine.AssignmentRef{DeliveryID: args[0]}
			}

			return withApp(opts, func(a *app) error {
				a.engine.RecordEvent(context.Background(), ref, kind, when)
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s\n", kind, ref)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&byDelivery, "delivery", false, "treat the reference as a delivery id")
	cmd.Flags().StringVar(&at, "at", "", "event time (RFC 3339, default now)")
	return cmd
}

func newConvertCmd(opts *globalOptions) *cobra.Command {
	var (
		conversionType string
		value          float64
	)

	cmd := &cobra.Command{
		Use:   "convert <subject>",
		Short: "Record a conversion for a subject",
		Long: `Record a conversion for every campaign the subject is assigned to.
Subjects already converted are not counted again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v *float64
			if cmd.Flags().Changed("value") {
				v = &value
			}

			return withApp(opts, func(a *app) error {
				n := a.engine.RecordConversion(context.Background(), args[0], conversionType, v)
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d conversion(s) for %s\n", n, args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&conversionType, "type", "t", "qualified", "conversion type")
	cmd.Flags().Float64Var(&value, "value", 0, "conversion value")
	return cmd
}
