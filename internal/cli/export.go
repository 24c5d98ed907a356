package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/headline-goat/split-goat/internal/store"
)

func newExportCmd(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export <campaign>",
		Short: "Export the stored analysis history",
		Long: `Export every stored analysis of a campaign in CSV or JSON format,
oldest first.

Examples:
  split-goat export welcome --format csv > welcome-results.csv
  split-goat export welcome --format json > welcome-results.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "csv" && format != "json" {
				return fmt.Errorf("invalid format: must be 'csv' or 'json'")
			}

			return withApp(opts, func(a *app) error {
				ctx := context.Background()

				c, err := a.findCampaign(ctx, args[0])
				if err != nil {
					return err
				}
				results, err := a.engine.ResultHistory(ctx, c.ID)
				if err != nil {
					return fmt.Errorf("failed to get results: %w", err)
				}

				if format == "csv" {
					return exportCSV(cmd.OutOrStdout(), results)
				}
				return exportJSON(cmd.OutOrStdout(), c, results)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format (csv or json)")
	return cmd
}

func exportCSV(out io.Writer, results []*store.StatisticalResult) error {
	w := csv.NewWriter(out)
	defer w.Flush()

	header := []string{
		"created_at", "participants", "conversions", "duration_days", "control", "treatment",
		"control_rate", "treatment_rate", "lift_percentage", "z_score", "p_value",
		"ci_lower", "ci_upper", "significant", "action", "winner",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range results {
		row := []string{
			strconv.FormatInt(r.CreatedAt.Unix(), 10),
			strconv.FormatInt(r.TotalParticipants, 10),
			strconv.FormatInt(r.TotalConversions, 10),
			strconv.Itoa(r.TestDurationDays),
			r.ControlVariant,
			r.TestVariant,
			formatFloat(r.ControlRate),
			formatFloat(r.TestRate),
			formatFloat(r.LiftPercentage),
			formatFloat(r.ZScore),
			formatFloat(r.PValue),
			formatFloat(r.ConfidenceIntervalLower),
			formatFloat(r.ConfidenceIntervalUpper),
			strconv.FormatBool(r.IsSignificant),
			string(r.RecommendedAction),
			r.RecommendedWinner,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return nil
}

type jsonExport struct {
	CampaignID string       `json:"campaign_id"`
	Name       string       `json:"name"`
	Status     string       `json:"status"`
	Results    []jsonResult `json:"results"`
}

type jsonResult struct {
	CreatedAt         time.Time `json:"created_at"`
	TotalParticipants int64     `json:"total_participants"`
	TotalConversions  int64     `json:"total_conversions"`
	DurationDays      int       `json:"duration_days"`
	Control           string    `json:"control"`
	Treatment         string    `json:"treatment"`
	ControlRate       float64   `json:"control_rate"`
	TreatmentRate     float64   `json:"treatment_rate"`
	LiftPercentage    float64   `json:"lift_percentage"`
	ZScore            float64   `json:"z_score"`
	PValue            float64   `json:"p_value"`
	CILower           float64   `json:"ci_lower"`
	CIUpper           float64   `json:"ci_upper"`
	Significant       bool      `json:"significant"`
	Action            string    `json:"action"`
	Winner            string    `json:"winner,omitempty"`
}

func exportJSON(out io.Writer, c *store.Campaign, results []*store.StatisticalResult) error {
	export := jsonExport{
		CampaignID: c.ID,
		Name:       c.Name,
		Status:     string(c.Status),
		Results:    make([]jsonResult, len(results)),
	}

	for i, r := range results {
		export.Results[i] = jsonResult{
			CreatedAt:         r.CreatedAt.UTC(),
			TotalParticipants: r.TotalParticipants,
			TotalConversions:  r.TotalConversions,
			DurationDays:      r.TestDurationDays,
			Control:           r.ControlVariant,
			Treatment:         r.TestVariant,
			ControlRate:       r.ControlRate,
			TreatmentRate:     r.TestRate,
			LiftPercentage:    r.LiftPercentage,
			ZScore:            r.ZScore,
			PValue:            r.PValue,
			CILower:           r.ConfidenceIntervalLower,
			CIUpper:           r.ConfidenceIntervalUpper,
			Significant:       r.IsSignificant,
			Action:            string(r.RecommendedAction),
			Winner:            r.RecommendedWinner,
		}
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
