package decision_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headline-goat/split-goat/internal/decision"
	"github.com/headline-goat/split-goat/internal/stats"
	"github.com/headline-goat/split-goat/internal/store"
)

func variant(label string, control bool, participants, conversions int64) *store.Variant {
	return &store.Variant{
		ID:        "id-" + label,
		Label:     label,
		IsControl: control,
		Counters:  store.Counters{ParticipantsAssigned: participants, Conversions: conversions},
	}
}

func TestSelectArms(t *testing.T) {
	arms, err := decision.SelectArms([]*store.Variant{
		variant("C", false, 100, 12),
		variant("A", true, 100, 5),
		variant("B", false, 100, 12),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "A", arms.Control.Label)
	assert.Equal(t, "B", arms.Treatment.Label, "ties go to the lowest label")
}

func TestSelectArmsFallsBackToControlLabel(t *testing.T) {
	arms, err := decision.SelectArms([]*store.Variant{
		variant("A", false, 100, 5),
		variant("B", false, 100, 9),
	}, "A")
	require.NoError(t, err)
	assert.Equal(t, "A", arms.Control.Label)
	assert.Equal(t, "B", arms.Treatment.Label)
}

func TestSelectArmsErrors(t *testing.T) {
	_, err := decision.SelectArms([]*store.Variant{variant("A", false, 1, 0), variant("B", false, 1, 0)}, "")
	assert.ErrorIs(t, err, decision.ErrNoControl)

	_, err = decision.SelectArms([]*store.Variant{variant("A", true, 1, 0)}, "")
	assert.ErrorIs(t, err, decision.ErrNoTreatments)
}

func input(control, treatment *store.Variant, minSample, duration, maxDuration int, conf float64) decision.Input {
	return decision.Input{
		MinimumSampleSize: minSample,
		MaxDurationDays:   maxDuration,
		VariantCount:      2,
		TotalParticipants: control.ParticipantsAssigned + treatment.ParticipantsAssigned,
		DurationDays:      duration,
		Arms:              decision.Arms{Control: control, Treatment: treatment},
		Test: stats.TwoProportionTest(
			stats.Sample{Participants: control.ParticipantsAssigned, Conversions: control.Conversions},
			stats.Sample{Participants: treatment.ParticipantsAssigned, Conversions: treatment.Conversions},
			conf,
		),
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		in         decision.Input
		wantAction store.RecommendedAction
		wantWinner string
	}{
		{
			name:       "below minimum sample",
			in:         input(variant("A", true, 75, 3), variant("B", false, 75, 20), 100, 1, 30, 0.95),
			wantAction: store.ActionContinue,
		},
		{
			name:       "significant winner",
			in:         input(variant("A", true, 1000, 50), variant("B", false, 1000, 80), 100, 3, 30, 0.95),
			wantAction: store.ActionStopAndImplementWinner,
			wantWinner: "B",
		},
		{
			name:       "significant but treatment worse",
			in:         input(variant("A", true, 1000, 80), variant("B", false, 1000, 50), 100, 3, 30, 0.95),
			wantAction: store.ActionStopInconclusive,
		},
		{
			name:       "not significant within duration",
			in:         input(variant("A", true, 1000, 50), variant("B", false, 1000, 55), 100, 3, 30, 0.95),
			wantAction: store.ActionContinue,
		},
		{
			name:       "not significant at max duration",
			in:         input(variant("A", true, 1000, 50), variant("B", false, 1000, 55), 100, 30, 30, 0.95),
			wantAction: store.ActionStopInconclusive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decision.Decide(tt.in)
			assert.Equal(t, tt.wantAction, got.Action)
			assert.Equal(t, tt.wantWinner, got.Winner)
			assert.NotEqual(t, store.ActionExtendTest, got.Action)
		})
	}
}

func TestDecideSampleBoundary(t *testing.T) {
	// 150 participants with a minimum of 100 per variant stays below 200.
	in := input(variant("A", true, 75, 1), variant("B", false, 75, 30), 100, 1, 30, 0.95)
	require.True(t, in.Test.Significant)
	assert.Equal(t, store.ActionContinue, decision.Decide(in).Action)

	// 201 participants clears the bar.
	in = input(variant("A", true, 100, 1), variant("B", false, 101, 30), 100, 1, 30, 0.95)
	got := decision.Decide(in)
	assert.Equal(t, store.ActionStopAndImplementWinner, got.Action)
	assert.Equal(t, "B", got.Winner)
}
