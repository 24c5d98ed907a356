package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/headline-goat/split-goat/internal/stats"
	"github.com/headline-goat/split-goat/internal/store"
)

// Defaults applied by CreateCampaign to fields left unset.
const (
	DefaultTrafficSplit      = 100.0
	DefaultConfidenceLevel   = 0.95
	DefaultMinimumSampleSize = 100
	DefaultMinimumEffectSize = 0.05
	DefaultStatisticalPower  = 0.80
	DefaultMaxDurationDays   = 30

	// splitTolerance is how far the variant traffic percentages may drift
	// from 100 before the split is rejected.
	splitTolerance = 0.01
)

// VariantSpec describes one variant of a new campaign. An empty Label is
// filled with A, B, C... by position.
type VariantSpec struct {
	Label             string  `yaml:"label" json:"label"`
	TemplateID        string  `yaml:"template_id" json:"template_id" validate:"required"`
	TrafficPercentage float64 `yaml:"traffic_percentage" json:"traffic_percentage" validate:"gte=0,lte=100"`
	IsControl         bool    `yaml:"is_control" json:"is_control"`
}

// CampaignSpec is the input to CreateCampaign. Pointer fields distinguish
// "not set" from an explicit zero.
type CampaignSpec struct {
	Name                       string        `yaml:"name" json:"name" validate:"required,max=200"`
	Description                string        `yaml:"description" json:"description"`
	TestType                   string        `yaml:"test_type" json:"test_type"`
	TrafficSplitPercentage     *float64      `yaml:"traffic_split_percentage" json:"traffic_split_percentage" validate:"omitempty,gte=0,lte=100"`
	ConfidenceLevel            *float64      `yaml:"confidence_level" json:"confidence_level" validate:"omitempty,gt=0,lt=1"`
	MinimumSampleSize          *int          `yaml:"minimum_sample_size" json:"minimum_sample_size" validate:"omitempty,gte=0"`
	MinimumEffectSize          *float64      `yaml:"minimum_effect_size" json:"minimum_effect_size" validate:"omitempty,gte=0"`
	StatisticalPower           *float64      `yaml:"statistical_power" json:"statistical_power" validate:"omitempty,gt=0,lt=1"`
	AutoPromoteWinner          *bool         `yaml:"auto_promote_winner" json:"auto_promote_winner"`
	AutoCompleteOnSignificance *bool         `yaml:"auto_complete_on_significance" json:"auto_complete_on_significance"`
	MaxDurationDays            *int          `yaml:"max_duration_days" json:"max_duration_days" validate:"omitempty,gte=1"`
	StartDate                  *time.Time    `yaml:"start_date" json:"start_date"`
	EndDate                    *time.Time    `yaml:"end_date" json:"end_date"`
	Variants                   []VariantSpec `yaml:"variants" json:"variants" validate:"min=2,dive"`
}

var campaignValidate *validator.Validate

func init() {
	campaignValidate = validator.New()
	campaignValidate.RegisterStructValidation(validateCampaignSpec, CampaignSpec{})
}

// validateCampaignSpec checks the rules that span several fields.
func validateCampaignSpec(sl validator.StructLevel) {
	spec := sl.Current().Interface().(CampaignSpec)

	var sum float64
	controls := 0
	seen := make(map[string]bool, len(spec.Variants))
	for i, v := range spec.Variants {
		sum += v.TrafficPercentage
		if v.IsControl {
			controls++
		}
		label := variantLabel(v, i)
		if seen[label] {
			sl.ReportError(spec.Variants, "Variants", "variants", "unique_label", label)
		}
		seen[label] = true
	}

	if len(spec.Variants) > 0 && math.Abs(sum-100) > splitTolerance {
		sl.ReportError(spec.Variants, "Variants", "variants", "split_sum", fmt.Sprintf("%g", sum))
	}
	if len(spec.Variants) > 0 && controls != 1 {
		sl.ReportError(spec.Variants, "Variants", "variants", "one_control", fmt.Sprintf("%d", controls))
	}
	if spec.StartDate != nil && spec.EndDate != nil && !spec.EndDate.After(*spec.StartDate) {
		sl.ReportError(spec.EndDate, "EndDate", "end_date", "end_after_start", "")
	}
}

// describeValidation turns validator errors into one readable line.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "split_sum":
			msgs = append(msgs, fmt.Sprintf("variant traffic percentages sum to %s, want 100", fe.Param()))
		case "one_control":
			msgs = append(msgs, fmt.Sprintf("exactly one control variant required, got %s", fe.Param()))
		case "unique_label":
			msgs = append(msgs, fmt.Sprintf("duplicate variant label %q", fe.Param()))
		case "end_after_start":
			msgs = append(msgs, "end date must be after start date")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s needs at least %s entries", fe.Field(), fe.Param()))
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Namespace()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s %s", fe.Namespace(), fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(msgs, "; ")
}

func variantLabel(v VariantSpec, i int) string {
	if v.Label != "" {
		return v.Label
	}
	return string(rune('A' + i))
}

// CreateCampaign validates spec, fills defaults and stores a draft campaign
// with its variants.
func (e *Engine) CreateCampaign(ctx context.Context, spec CampaignSpec) (*store.Campaign, []*store.Variant, error) {
	spec.Name = strings.TrimSpace(spec.Name)
	if err := campaignValidate.Struct(spec); err != nil {
		return nil, nil, configError("create", "", describeValidation(err))
	}

	now := e.now()
	c := &store.Campaign{
		ID:                         e.newID(),
		Name:                       spec.Name,
		Description:                spec.Description,
		TestType:                   spec.TestType,
		Status:                     store.StatusDraft,
		TrafficSplitPercentage:     floatOr(spec.TrafficSplitPercentage, DefaultTrafficSplit),
		VariantSplit:               make(map[string]float64, len(spec.Variants)),
		StartDate:                  now,
		EndDate:                    spec.EndDate,
		ConfidenceLevel:            floatOr(spec.ConfidenceLevel, DefaultConfidenceLevel),
		MinimumSampleSize:          intOr(spec.MinimumSampleSize, DefaultMinimumSampleSize),
		MinimumEffectSize:          floatOr(spec.MinimumEffectSize, DefaultMinimumEffectSize),
		StatisticalPower:           floatOr(spec.StatisticalPower, DefaultStatisticalPower),
		AutoPromoteWinner:          boolOr(spec.AutoPromoteWinner, true),
		AutoCompleteOnSignificance: boolOr(spec.AutoCompleteOnSignificance, true),
		MaxDurationDays:            intOr(spec.MaxDurationDays, DefaultMaxDurationDays),
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	if c.TestType == "" {
		c.TestType = "email_template"
	}
	if spec.StartDate != nil {
		c.StartDate = *spec.StartDate
	}

	variants := make([]*store.Variant, 0, len(spec.Variants))
	for i, vs := range spec.Variants {
		label := variantLabel(vs, i)
		v := &store.Variant{
			ID:                e.newID(),
			CampaignID:        c.ID,
			Label:             label,
			TemplateID:        vs.TemplateID,
			IsControl:         vs.IsControl,
			TrafficPercentage: vs.TrafficPercentage,
			CreatedAt:         now,
		}
		if v.IsControl {
			c.ControlVariant = label
		}
		c.VariantSplit[label] = vs.TrafficPercentage
		variants = append(variants, v)
	}

	if err := e.campaigns.CreateCampaign(ctx, c, variants); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			return nil, nil, configError("create", "", fmt.Sprintf("campaign %q already exists", c.Name))
		}
		return nil, nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	if !stats.KnownConfidenceLevel(c.ConfidenceLevel) {
		e.logger.Warn("confidence level has no critical value, using default",
			zap.String("campaign_id", c.ID),
			zap.Float64("confidence_level", c.ConfidenceLevel),
			zap.Float64("z_critical", stats.DefaultZCritical),
		)
	}
	e.logger.Info("campaign created",
		zap.String("campaign_id", c.ID),
		zap.String("name", c.Name),
		zap.Int("variants", len(variants)),
	)
	store.SortVariants(variants)
	return c, variants, nil
}

// transitions lists the statuses each status may move to.
var transitions = map[store.CampaignStatus][]store.CampaignStatus{
	store.StatusDraft:   {store.StatusRunning, store.StatusCancelled},
	store.StatusRunning: {store.StatusPaused, store.StatusCompleted, store.StatusCancelled},
	store.StatusPaused:  {store.StatusRunning, store.StatusCompleted, store.StatusCancelled},
}

// CanTransition reports whether a campaign may move from one status to another.
func CanTransition(from, to store.CampaignStatus) bool {
	return slices.Contains(transitions[from], to)
}

// TransitionStatus moves a campaign to a new status. Starting a draft stamps
// the actual start date; completing or cancelling stamps the actual end
// date. Completing here records no winner; use PromoteWinner for that.
func (e *Engine) TransitionStatus(ctx context.Context, campaignID string, to store.CampaignStatus) (*store.Campaign, error) {
	c, err := e.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign %s: %w", campaignID, err)
	}
	if c.Status.Terminal() {
		return nil, &Error{Kind: KindAlreadyTerminal, Op: "transition", CampaignID: campaignID, Msg: "campaign is " + string(c.Status)}
	}
	if !CanTransition(c.Status, to) {
		return nil, &Error{
			Kind:       KindInvalidTransition,
			Op:         "transition",
			CampaignID: campaignID,
			Msg:        fmt.Sprintf("%s -> %s", c.Status, to),
		}
	}

	now := e.now()
	change := store.StatusChange{
		From: []store.CampaignStatus{c.Status},
		To:   to,
		At:   now,
	}
	if c.Status == store.StatusDraft && to == store.StatusRunning {
		change.ActualStartDate = &now
	}
	if to.Terminal() {
		change.ActualEndDate = &now
	}

	if err := e.campaigns.SetStatus(ctx, campaignID, change); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return nil, &Error{Kind: KindInvalidTransition, Op: "transition", CampaignID: campaignID, Msg: "campaign changed status concurrently"}
		}
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	e.logger.Info("campaign status changed",
		zap.String("campaign_id", campaignID),
		zap.String("from", string(c.Status)),
		zap.String("to", string(to)),
	)
	return e.campaigns.GetCampaign(ctx, campaignID)
}

// DeleteCampaign removes a draft or cancelled campaign with everything
// recorded for it.
func (e *Engine) DeleteCampaign(ctx context.Context, campaignID string) error {
	c, err := e.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("failed to get campaign %s: %w", campaignID, err)
	}
	if c.Status != store.StatusDraft && c.Status != store.StatusCancelled {
		return &Error{
			Kind:       KindInvalidTransition,
			Op:         "delete",
			CampaignID: campaignID,
			Msg:        "only draft or cancelled campaigns can be deleted, campaign is " + string(c.Status),
		}
	}
	if err := e.campaigns.DeleteCampaign(ctx, campaignID); err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	e.logger.Info("campaign deleted", zap.String("campaign_id", campaignID))
	return nil
}

func (e *Engine) Campaign(ctx context.Context, campaignID string) (*store.Campaign, error) {
	return e.campaigns.GetCampaign(ctx, campaignID)
}

// Campaigns lists campaigns, newest first, optionally filtered by status.
func (e *Engine) Campaigns(ctx context.Context, statuses ...store.CampaignStatus) ([]*store.Campaign, error) {
	return e.campaigns.ListCampaigns(ctx, statuses...)
}

// ActiveCampaigns lists running campaigns whose end date has not passed.
func (e *Engine) ActiveCampaigns(ctx context.Context) ([]*store.Campaign, error) {
	running, err := e.campaigns.ListCampaigns(ctx, store.StatusRunning)
	if err != nil {
		return nil, err
	}
	now := e.now()
	return slices.DeleteFunc(running, func(c *store.Campaign) bool {
		return !assignable(c, now)
	}), nil
}

// CampaignVariants returns the campaign's variants sorted by label.
func (e *Engine) CampaignVariants(ctx context.Context, campaignID string) ([]*store.Variant, error) {
	variants, err := e.variants.ListVariants(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	store.SortVariants(variants)
	return variants, nil
}

// ResultHistory returns every stored analysis for the campaign, oldest first.
func (e *Engine) ResultHistory(ctx context.Context, campaignID string) ([]*store.StatisticalResult, error) {
	return e.results.ListResults(ctx, campaignID)
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
