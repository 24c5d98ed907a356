package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/headline-goat/split-goat/internal/engine"
)

func newCreateCmd(opts *globalOptions) *cobra.Command {
	var (
		file           string
		variants       []string
		description    string
		traffic        float64
		confidence     float64
		minSample      int
		maxDays        int
		noAutoComplete bool
		noAutoPromote  bool
	)

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a draft campaign",
		Long: `Create a draft campaign from flags or from a YAML file.

Variants are given as label=template:percentage, with ":control" appended
to the control variant. Percentages must sum to 100.

Examples:
  split-goat create welcome --variant A=tmpl-welcome-v1:50:control --variant B=tmpl-welcome-v2:50
  split-goat create welcome --variant A=t1:34:control --variant B=t2:33 --variant C=t3:33 --traffic 20
  split-goat create --file welcome.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var spec engine.CampaignSpec

			switch {
			case file != "":
				if len(args) > 0 || len(variants) > 0 {
					return fmt.Errorf("use --file OR a name with --variant flags, not both")
				}
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				if err := yaml.Unmarshal(data, &spec); err != nil {
					return fmt.Errorf("failed to parse %s: %w", file, err)
				}
			case len(args) == 1:
				spec.Name = args[0]
				spec.Description = description
				for _, raw := range variants {
					v, err := parseVariantFlag(raw)
					if err != nil {
						return err
					}
					spec.Variants = append(spec.Variants, v)
				}
			default:
				return fmt.Errorf("need a campaign name or --file")
			}

			flags := cmd.Flags()
			if flags.Changed("traffic") {
				spec.TrafficSplitPercentage = &traffic
			}
			if flags.Changed("confidence") {
				spec.ConfidenceLevel = &confidence
			}
			if flags.Changed("min-sample") {
				spec.MinimumSampleSize = &minSample
			}
			if flags.Changed("max-days") {
				spec.MaxDurationDays = &maxDays
			}
			if noAutoComplete {
				off := false
				spec.AutoCompleteOnSignificance = &off
			}
			if noAutoPromote {
				off := false
				spec.AutoPromoteWinner = &off
			}

			return withApp(opts, func(a *app) error {
				c, vs, err := a.engine.CreateCampaign(context.Background(), spec)
				if err != nil {
					return fmt.Errorf("failed to create campaign: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created campaign '%s' (%s) with %d variants:\n", c.Name, c.ID, len(vs))
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				for _, v := range vs {
					control := ""
					if v.IsControl {
						control = "control"
					}
					fmt.Fprintf(w, "  %s\t%s\t%g%%\t%s\n", v.Label, v.TemplateID, v.TrafficPercentage, control)
				}
				w.Flush()
				fmt.Fprintf(out, "Traffic: %g%%  Confidence: %g  Min sample: %d/variant  Max duration: %d days\n",
					c.TrafficSplitPercentage, c.ConfidenceLevel, c.MinimumSampleSize, c.MaxDurationDays)
				fmt.Fprintf(out, "Status: %s (run 'split-goat start %s' to begin)\n", c.Status, c.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML campaign definition")
	cmd.Flags().StringArrayVarP(&variants, "variant", "v", nil, "variant as label=template:percentage[:control] (repeatable)")
	cmd.Flags().StringVar(&description, "description", "", "campaign description")
	cmd.Flags().Float64Var(&traffic, "traffic", engine.DefaultTrafficSplit, "percentage of subjects entering the experiment")
	cmd.Flags().Float64Var(&confidence, "confidence", engine.DefaultConfidenceLevel, "confidence level (0.90, 0.95 or 0.99)")
	cmd.Flags().IntVar(&minSample, "min-sample", engine.DefaultMinimumSampleSize, "minimum participants per variant before deciding")
	cmd.Flags().IntVar(&maxDays, "max-days", engine.DefaultMaxDurationDays, "days after which a non-significant test stops")
	cmd.Flags().BoolVar(&noAutoComplete, "no-auto-complete", false, "exclude the campaign from sweeps")
	cmd.Flags().BoolVar(&noAutoPromote, "no-auto-promote", false, "do not switch downstream templates on promotion")

	return cmd
}

// parseVariantFlag parses label=template:percentage[:control].
func parseVariantFlag(raw string) (engine.VariantSpec, error) {
	label, rest, ok := strings.Cut(raw, "=")
	if !ok || label == "" {
		return engine.VariantSpec{}, fmt.Errorf("invalid --variant %q: want label=template:percentage[:control]", raw)
	}

	parts := strings.Split(rest, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
		return engine.VariantSpec{}, fmt.Errorf("invalid --variant %q: want label=template:percentage[:control]", raw)
	}

	pct, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return engine.VariantSpec{}, fmt.Errorf("invalid percentage in --variant %q: %w", raw, err)
	}

	v := engine.VariantSpec{
		Label:             strings.TrimSpace(label),
		TemplateID:        parts[0],
		TrafficPercentage: pct,
	}
	if len(parts) == 3 {
		if parts[2] != "control" {
			return engine.VariantSpec{}, fmt.Errorf("invalid --variant %q: last field must be \"control\"", raw)
		}
		v.IsControl = true
	}
	return v, nil
}
