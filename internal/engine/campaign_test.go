package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headline-goat/split-goat/internal/engine"
	"github.com/headline-goat/split-goat/internal/store"
	"github.com/headline-goat/split-goat/internal/testutil"
)

func TestCreateCampaignDefaults(t *testing.T) {
	h := newMemoryHarness(t)

	c, variants, err := h.engine.CreateCampaign(context.Background(), engine.CampaignSpec{
		Name: "  welcome series  ",
		Variants: []engine.VariantSpec{
			{TemplateID: "tmpl-a", TrafficPercentage: 33.34, IsControl: true},
			{TemplateID: "tmpl-b", TrafficPercentage: 33.33},
			{TemplateID: "tmpl-c", TrafficPercentage: 33.33},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "welcome series", c.Name)
	assert.Equal(t, store.StatusDraft, c.Status)
	assert.Equal(t, "email_template", c.TestType)
	assert.Equal(t, engine.DefaultTrafficSplit, c.TrafficSplitPercentage)
	assert.Equal(t, engine.DefaultConfidenceLevel, c.ConfidenceLevel)
	assert.Equal(t, engine.DefaultMinimumSampleSize, c.MinimumSampleSize)
	assert.Equal(t, engine.DefaultMinimumEffectSize, c.MinimumEffectSize)
	assert.Equal(t, engine.DefaultStatisticalPower, c.StatisticalPower)
	assert.Equal(t, engine.DefaultMaxDurationDays, c.MaxDurationDays)
	assert.True(t, c.AutoPromoteWinner)
	assert.True(t, c.AutoCompleteOnSignificance)
	assert.True(t, c.StartDate.Equal(testutil.Epoch))
	assert.Nil(t, c.ActualStartDate)

	assert.Equal(t, "A", c.ControlVariant)
	assert.Equal(t, map[string]float64{"A": 33.34, "B": 33.33, "C": 33.33}, c.VariantSplit)
	require.Len(t, variants, 3)
	for i, label := range []string{"A", "B", "C"} {
		assert.Equal(t, label, variants[i].Label)
		assert.Equal(t, c.ID, variants[i].CampaignID)
	}
}

func TestCreateCampaignExplicitSettings(t *testing.T) {
	h := newMemoryHarness(t)

	spec := testutil.TwoVariantSpec("explicit")
	spec.TrafficSplitPercentage = ptr(0.0)
	spec.ConfidenceLevel = ptr(0.99)
	spec.MinimumSampleSize = ptr(0)
	spec.AutoPromoteWinner = ptr(false)
	spec.AutoCompleteOnSignificance = ptr(false)

	c, _, err := h.engine.CreateCampaign(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.TrafficSplitPercentage, "explicit zero is kept")
	assert.Equal(t, 0.99, c.ConfidenceLevel)
	assert.Equal(t, 0, c.MinimumSampleSize)
	assert.False(t, c.AutoPromoteWinner)
	assert.False(t, c.AutoCompleteOnSignificance)
}

func TestCreateCampaignValidation(t *testing.T) {
	variants := func(vs ...engine.VariantSpec) []engine.VariantSpec { return vs }
	start := testutil.Epoch
	end := start.Add(-time.Hour)

	tests := []struct {
		name    string
		spec    engine.CampaignSpec
		wantMsg string
	}{
		{
			name: "split does not sum to 100",
			spec: engine.CampaignSpec{Name: "x", Variants: variants(
				engine.VariantSpec{Label: "A", TemplateID: "a", TrafficPercentage: 60, IsControl: true},
				engine.VariantSpec{Label: "B", TemplateID: "b", TrafficPercentage: 50},
			)},
			wantMsg: "sum to 110",
		},
		{
			name: "no control",
			spec: engine.CampaignSpec{Name: "x", Variants: variants(
				engine.VariantSpec{Label: "A", TemplateID: "a", TrafficPercentage: 50},
				engine.VariantSpec{Label: "B", TemplateID: "b", TrafficPercentage: 50},
			)},
			wantMsg: "exactly one control",
		},
		{
			name: "two controls",
			spec: engine.CampaignSpec{Name: "x", Variants: variants(
				engine.VariantSpec{Label: "A", TemplateID: "a", TrafficPercentage: 50, IsControl: true},
				engine.VariantSpec{Label: "B", TemplateID: "b", TrafficPercentage: 50, IsControl: true},
			)},
			wantMsg: "exactly one control",
		},
		{
			name: "duplicate labels",
			spec: engine.CampaignSpec{Name: "x", Variants: variants(
				engine.VariantSpec{Label: "A", TemplateID: "a", TrafficPercentage: 50, IsControl: true},
				engine.VariantSpec{Label: "A", TemplateID: "b", TrafficPercentage: 50},
			)},
			wantMsg: "duplicate variant label",
		},
		{
			name: "single variant",
			spec: engine.CampaignSpec{Name: "x", Variants: variants(
				engine.VariantSpec{Label: "A", TemplateID: "a", TrafficPercentage: 100, IsControl: true},
			)},
			wantMsg: "at least 2",
		},
		{
			name:    "missing name",
			spec:    testutil.TwoVariantSpec("   "),
			wantMsg: "Name is required",
		},
		{
			name: "missing template",
			spec: engine.CampaignSpec{Name: "x", Variants: variants(
				engine.VariantSpec{Label: "A", TrafficPercentage: 50, IsControl: true},
				engine.VariantSpec{Label: "B", TemplateID: "b", TrafficPercentage: 50},
			)},
			wantMsg: "TemplateID is required",
		},
		{
			name: "end before start",
			spec: func() engine.CampaignSpec {
				s := testutil.TwoVariantSpec("x")
				s.StartDate = &start
				s.EndDate = &end
				return s
			}(),
			wantMsg: "end date must be after start date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newMemoryHarness(t)

			_, _, err := h.engine.CreateCampaign(context.Background(), tt.spec)
			require.Error(t, err)
			assert.True(t, engine.IsConfigurationError(err), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			campaigns, err := h.engine.Campaigns(context.Background())
			require.NoError(t, err)
			assert.Empty(t, campaigns)
		})
	}
}

func TestCreateCampaignSplitTolerance(t *testing.T) {
	h := newMemoryHarness(t)

	_, _, err := h.engine.CreateCampaign(context.Background(), engine.CampaignSpec{
		Name: "thirds",
		Variants: []engine.VariantSpec{
			{TemplateID: "a", TrafficPercentage: 33.3, IsControl: true},
			{TemplateID: "b", TrafficPercentage: 33.3},
			{TemplateID: "c", TrafficPercentage: 33.3},
		},
	})
	assert.True(t, engine.IsConfigurationError(err), "99.9 is outside the tolerance")

	_, _, err = h.engine.CreateCampaign(context.Background(), engine.CampaignSpec{
		Name: "almost",
		Variants: []engine.VariantSpec{
			{TemplateID: "a", TrafficPercentage: 50.005, IsControl: true},
			{TemplateID: "b", TrafficPercentage: 50},
		},
	})
	assert.NoError(t, err)
}

func TestCreateCampaignDuplicateName(t *testing.T) {
	h := newMemoryHarness(t)
	ctx := context.Background()

	_, _, err := h.engine.CreateCampaign(ctx, testutil.TwoVariantSpec("welcome"))
	require.NoError(t, err)

	_, _, err = h.engine.CreateCampaign(ctx, testutil.TwoVariantSpec("welcome"))
	require.Error(t, err)
	assert.True(t, engine.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "already exists")
}

func TestCreateCampaignWarnsOnUnknownConfidenceLevel(t *testing.T) {
	h := newMemoryHarness(t)

	spec := testutil.TwoVariantSpec("odd confidence")
	spec.ConfidenceLevel = ptr(0.975)
	_, _, err := h.engine.CreateCampaign(context.Background(), spec)
	require.NoError(t, err)

	warnings := h.logs.FilterMessage("confidence level has no critical value, using default").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, 0.975, warnings[0].ContextMap()["confidence_level"])
}

func TestTransitionStatus(t *testing.T) {
	h := newMemoryHarness(t)
	ctx := context.Background()

	c, _, err := h.engine.CreateCampaign(ctx, testutil.TwoVariantSpec("lifecycle"))
	require.NoError(t, err)

	_, err = h.engine.TransitionStatus(ctx, c.ID, store.StatusPaused)
	assert.True(t, engine.IsInvalidTransition(err), "draft cannot pause")

	h.clock.Advance(time.Hour)
	c, err = h.engine.TransitionStatus(ctx, c.ID, store.StatusRunning)
	require.NoError(t, err)
	assert.Equal(t, store.StatusRunning, c.Status)
	require.NotNil(t, c.ActualStartDate)
	assert.True(t, c.ActualStartDate.Equal(testutil.Epoch.Add(time.Hour)))

	c, err = h.engine.TransitionStatus(ctx, c.ID, store.StatusPaused)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPaused, c.Status)

	h.clock.Advance(time.Hour)
	c, err = h.engine.TransitionStatus(ctx, c.ID, store.StatusRunning)
	require.NoError(t, err)
	assert.True(t, c.ActualStartDate.Equal(testutil.Epoch.Add(time.Hour)), "resuming keeps the first start")

	c, err = h.engine.TransitionStatus(ctx, c.ID, store.StatusCancelled)
	require.NoError(t, err)
	require.NotNil(t, c.ActualEndDate)
	assert.Empty(t, c.WinnerVariant)

	_, err = h.engine.TransitionStatus(ctx, c.ID, store.StatusRunning)
	assert.True(t, engine.IsAlreadyTerminal(err))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to store.CampaignStatus
		want     bool
	}{
		{store.StatusDraft, store.StatusRunning, true},
		{store.StatusDraft, store.StatusCancelled, true},
		{store.StatusDraft, store.StatusCompleted, false},
		{store.StatusRunning, store.StatusPaused, true},
		{store.StatusRunning, store.StatusDraft, false},
		{store.StatusPaused, store.StatusRunning, true},
		{store.StatusPaused, store.StatusCompleted, true},
		{store.StatusCompleted, store.StatusRunning, false},
		{store.StatusCancelled, store.StatusDraft, false},
	}

	for _, tt := range tests {
		if got := engine.CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestDeleteCampaign(t *testing.T) {
	h := newMemoryHarness(t)
	ctx := context.Background()

	draft, _, err := h.engine.CreateCampaign(ctx, testutil.TwoVariantSpec("draft"))
	require.NoError(t, err)
	require.NoError(t, h.engine.DeleteCampaign(ctx, draft.ID))
	_, err = h.engine.Campaign(ctx, draft.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	running, _ := testutil.RunningCampaign(t, h.engine, testutil.TwoVariantSpec("running"))
	err = h.engine.DeleteCampaign(ctx, running.ID)
	assert.True(t, engine.IsInvalidTransition(err))

	_, err = h.engine.TransitionStatus(ctx, running.ID, store.StatusCancelled)
	require.NoError(t, err)
	assert.NoError(t, h.engine.DeleteCampaign(ctx, running.ID))

	assert.ErrorIs(t, h.engine.DeleteCampaign(ctx, "missing"), store.ErrNotFound)
}

func TestActiveCampaigns(t *testing.T) {
	h := newMemoryHarness(t)
	ctx := context.Background()

	spec := testutil.TwoVariantSpec("ends soon")
	spec.EndDate = ptr(testutil.Epoch.Add(24 * time.Hour))
	testutil.RunningCampaign(t, h.engine, spec)
	open, _ := testutil.RunningCampaign(t, h.engine, testutil.TwoVariantSpec("open ended"))
	_, _, err := h.engine.CreateCampaign(ctx, testutil.TwoVariantSpec("draft"))
	require.NoError(t, err)

	active, err := h.engine.ActiveCampaigns(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	h.clock.Advance(48 * time.Hour)
	active, err = h.engine.ActiveCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, open.ID, active[0].ID)
}
