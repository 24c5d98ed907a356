package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/headline-goat/split-goat/internal/decision"
	"github.com/headline-goat/split-goat/internal/stats"
	"github.com/headline-goat/split-goat/internal/store"
)

// Analyze compares the control with the best treatment, applies the
// decision policy and appends the result to the campaign's history.
//
// Campaigns with fewer than two variants, or with a variant that has no
// participants yet, fail with an insufficient-data error and nothing is
// stored.
func (e *Engine) Analyze(ctx context.Context, campaignID string) (*store.StatisticalResult, error) {
	started := time.Now()
	defer func() {
		e.metrics.AnalysisDuration.Observe(time.Since(started).Seconds())
	}()

	c, err := e.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign %s: %w", campaignID, err)
	}

	variants, err := e.variants.ListVariants(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	store.SortVariants(variants)

	if len(variants) < 2 {
		return nil, &Error{Kind: KindInsufficientData, Op: "analyze", CampaignID: campaignID, Err: ErrInsufficientVariants}
	}
	for _, v := range variants {
		if v.ParticipantsAssigned == 0 {
			return nil, &Error{
				Kind:       KindInsufficientData,
				Op:         "analyze",
				CampaignID: campaignID,
				Msg:        fmt.Sprintf("variant %s has no participants", v.Label),
			}
		}
	}

	arms, err := decision.SelectArms(variants, c.ControlVariant)
	if err != nil {
		return nil, &Error{Kind: KindConfiguration, Op: "analyze", CampaignID: campaignID, Err: err}
	}

	var totals store.Counters
	for _, v := range variants {
		totals = totals.Add(v.Counters)
	}

	now := e.now()
	duration := durationDays(c, now)

	test := stats.TwoProportionTest(sample(arms.Control), sample(arms.Treatment), c.ConfidenceLevel)
	d := decision.Decide(decision.Input{
		MinimumSampleSize: c.MinimumSampleSize,
		MaxDurationDays:   c.MaxDurationDays,
		VariantCount:      len(variants),
		TotalParticipants: totals.ParticipantsAssigned,
		DurationDays:      duration,
		Arms:              arms,
		Test:              test,
	})

	controlRate := arms.Control.ConversionRate()
	testRate := arms.Treatment.ConversionRate()

	result := &store.StatisticalResult{
		ID:                      e.newID(),
		CampaignID:              campaignID,
		TotalParticipants:       totals.ParticipantsAssigned,
		TotalEmailsSent:         totals.EmailsSent,
		TotalEmailsDelivered:    totals.EmailsDelivered,
		TotalEmailsOpened:       totals.EmailsOpened,
		TotalEmailsClicked:      totals.EmailsClicked,
		TotalConversions:        totals.Conversions,
		TestDurationDays:        duration,
		PrimaryMetric:           store.PrimaryMetricConversionRate,
		ControlVariant:          arms.Control.Label,
		TestVariant:             arms.Treatment.Label,
		ControlRate:             controlRate,
		TestRate:                testRate,
		LiftPercentage:          stats.Lift(controlRate, testRate),
		ZScore:                  test.Z,
		PValue:                  test.PValue,
		ConfidenceIntervalLower: test.CILower,
		ConfidenceIntervalUpper: test.CIUpper,
		IsSignificant:           test.Significant,
		ConfidenceLevel:         c.ConfidenceLevel,
		RecommendedAction:       d.Action,
		RecommendedWinner:       d.Winner,
		CreatedAt:               now,
	}

	if err := e.results.AppendResult(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to store result: %w", err)
	}
	e.metrics.Analyses.WithLabelValues(string(result.RecommendedAction)).Inc()

	if err := e.notifier.ResultRecorded(ctx, result); err != nil {
		e.logger.Warn("failed to publish analysis", zap.String("campaign_id", campaignID), zap.Error(err))
	}

	e.logger.Info("campaign analysed",
		zap.String("campaign_id", campaignID),
		zap.String("control", result.ControlVariant),
		zap.String("treatment", result.TestVariant),
		zap.Float64("p_value", result.PValue),
		zap.Bool("significant", result.IsSignificant),
		zap.String("action", string(result.RecommendedAction)),
	)
	return result, nil
}

// PromoteWinner completes a running or paused campaign with winnerLabel as
// its winner. Completed and cancelled campaigns are rejected without any
// change; the check and the write happen as one compare-and-set in the
// store, so two concurrent promotions cannot both succeed.
func (e *Engine) PromoteWinner(ctx context.Context, campaignID, winnerLabel string) error {
	_, err := e.promote(ctx, campaignID, winnerLabel, nil, triggerManual)
	return err
}

func (e *Engine) promote(ctx context.Context, campaignID, winnerLabel string, result *store.StatisticalResult, trigger string) (*Promotion, error) {
	c, err := e.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign %s: %w", campaignID, err)
	}
	if c.Status.Terminal() {
		return nil, &Error{Kind: KindAlreadyTerminal, Op: "promote", CampaignID: campaignID, Msg: "campaign is " + string(c.Status)}
	}
	if c.Status == store.StatusDraft {
		return nil, &Error{Kind: KindInvalidTransition, Op: "promote", CampaignID: campaignID, Msg: "campaign has not started"}
	}

	variants, err := e.variants.ListVariants(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	winner := variantByLabel(variants, winnerLabel)
	if winner == nil {
		return nil, &Error{Kind: KindUnknownVariant, Op: "promote", CampaignID: campaignID, Msg: fmt.Sprintf("no variant %q", winnerLabel)}
	}

	now := e.now()
	change := store.StatusChange{
		From:               []store.CampaignStatus{store.StatusRunning, store.StatusPaused},
		To:                 store.StatusCompleted,
		At:                 now,
		ActualEndDate:      &now,
		WinnerVariant:      winner.Label,
		WinnerDeterminedAt: &now,
	}
	var pValue *float64
	if result != nil {
		significant := result.IsSignificant
		p := result.PValue
		change.StatisticalSignificance = &significant
		change.SignificanceLevel = &p
		pValue = &p
	}

	if err := e.campaigns.SetStatus(ctx, campaignID, change); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			kind := KindInvalidTransition
			if current, gerr := e.campaigns.GetCampaign(ctx, campaignID); gerr == nil && current.Status.Terminal() {
				kind = KindAlreadyTerminal
			}
			return nil, &Error{Kind: kind, Op: "promote", CampaignID: campaignID, Msg: "campaign changed status concurrently"}
		}
		return nil, fmt.Errorf("failed to complete campaign: %w", err)
	}

	p := &Promotion{
		CampaignID:   campaignID,
		CampaignName: c.Name,
		Winner:       winner.Label,
		TemplateID:   winner.TemplateID,
		AutoPromote:  c.AutoPromoteWinner,
		Trigger:      trigger,
		PValue:       pValue,
		At:           now,
	}
	e.metrics.Promotions.WithLabelValues(trigger).Inc()
	if err := e.notifier.WinnerPromoted(ctx, *p); err != nil {
		e.logger.Warn("failed to publish promotion", zap.String("campaign_id", campaignID), zap.Error(err))
	}

	e.logger.Info("winner promoted",
		zap.String("campaign_id", campaignID),
		zap.String("winner", winner.Label),
		zap.String("trigger", trigger),
	)
	return p, nil
}

// SweepReport summarises one SweepAndAutoComplete pass.
type SweepReport struct {
	Analyzed int
	Skipped  int
	Failed   int
	Promoted []Promotion
}

// SweepAndAutoComplete analyses every running campaign that has
// auto-completion enabled and promotes the recommended winner when the
// policy says stop_and_implement_winner. Per-campaign failures are logged
// and counted; only failing to list campaigns is returned. Re-running it is
// safe: completed campaigns drop out of the listing and a lost promotion
// race surfaces as already-terminal, which is counted as skipped.
func (e *Engine) SweepAndAutoComplete(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	campaigns, err := e.campaigns.ListRunningWithAutoComplete(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list running campaigns: %w", err)
	}

	for _, c := range campaigns {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		log := e.logger.With(zap.String("campaign_id", c.ID))

		result, err := e.Analyze(ctx, c.ID)
		if err != nil {
			if IsInsufficientData(err) {
				report.Skipped++
				log.Debug("sweep skipped campaign", zap.Error(err))
				continue
			}
			report.Failed++
			log.Error("sweep analysis failed", zap.Error(err))
			continue
		}
		report.Analyzed++

		if result.RecommendedAction != store.ActionStopAndImplementWinner || result.RecommendedWinner == "" {
			continue
		}

		p, err := e.promote(ctx, c.ID, result.RecommendedWinner, result, triggerSweep)
		if err != nil {
			if IsAlreadyTerminal(err) {
				report.Skipped++
				log.Info("campaign already completed", zap.Error(err))
				continue
			}
			report.Failed++
			log.Error("sweep promotion failed", zap.Error(err))
			continue
		}
		report.Promoted = append(report.Promoted, *p)
	}

	return report, nil
}

func sample(v *store.Variant) stats.Sample {
	return stats.Sample{Participants: v.ParticipantsAssigned, Conversions: v.Conversions}
}

// durationDays counts started days since the campaign began, rounding up.
func durationDays(c *store.Campaign, now time.Time) int {
	start := c.StartDate
	if c.ActualStartDate != nil {
		start = *c.ActualStartDate
	}
	if start.IsZero() || !now.After(start) {
		return 0
	}
	return int(math.Ceil(now.Sub(start).Hours() / 24))
}
