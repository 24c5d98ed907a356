package cli

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "split-goat",
		Short: "Split Goat - experiment assignment and decision engine for email templates",
		Long: `🐐 Split Goat assigns subjects to template variants, tracks delivery
and conversion outcomes, and decides when an experiment has a winner.
Single Go binary, embedded SQLite.`,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database path (overrides config and SG_DB_PATH)")

	cmd.AddCommand(
		newCreateCmd(opts),
		newListCmd(opts),
		newStatusCmd(opts, "start", "Start a draft campaign", "running"),
		newStatusCmd(opts, "pause", "Pause a running campaign", "paused"),
		newStatusCmd(opts, "resume", "Resume a paused campaign", "running"),
		newStatusCmd(opts, "complete", "Complete a campaign without declaring a winner", "completed"),
		newStatusCmd(opts, "cancel", "Cancel a campaign", "cancelled"),
		newDeleteCmd(opts),
		newAssignCmd(opts),
		newEventCmd(opts),
		newConvertCmd(opts),
		newResultsCmd(opts),
		newWinnerCmd(opts),
		newExportCmd(opts),
		newSweepCmd(opts),
		newServeCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

func Execute() error {
	return newRootCmd().Execute()
}
