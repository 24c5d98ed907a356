package store_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/headline-goat/split-goat/internal/store"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// forEachStore runs fn against both Store implementations.
func forEachStore(t *testing.T, fn func(t *testing.T, s store.Store)) {
	t.Run("sqlite", func(t *testing.T) {
		s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, store.NewMemoryStore())
	})
}

func seedCampaign(t *testing.T, s store.Store, id, name string, status store.CampaignStatus, created time.Time) (*store.Campaign, []*store.Variant) {
	t.Helper()

	c := &store.Campaign{
		ID:                         id,
		Name:                       name,
		TestType:                   "email_template",
		Status:                     status,
		TrafficSplitPercentage:     100,
		VariantSplit:               map[string]float64{"A": 50, "B": 50},
		ControlVariant:             "A",
		StartDate:                  created,
		ConfidenceLevel:            0.95,
		MinimumSampleSize:          100,
		MinimumEffectSize:          0.05,
		StatisticalPower:           0.8,
		AutoPromoteWinner:          true,
		AutoCompleteOnSignificance: true,
		MaxDurationDays:            30,
		CreatedAt:                  created,
		UpdatedAt:                  created,
	}
	variants := []*store.Variant{
		{ID: id + "-b", CampaignID: id, Label: "B", TemplateID: "tmpl-b", TrafficPercentage: 50, CreatedAt: created},
		{ID: id + "-a", CampaignID: id, Label: "A", TemplateID: "tmpl-a", IsControl: true, TrafficPercentage: 50, CreatedAt: created},
	}
	require.NoError(t, s.CreateCampaign(context.Background(), c, variants))
	return c, variants
}

func TestCampaignRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		end := epoch.Add(14 * 24 * time.Hour)

		seedCampaign(t, s, "c1", "welcome", store.StatusDraft, epoch)

		got, err := s.GetCampaign(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "welcome", got.Name)
		assert.Equal(t, store.StatusDraft, got.Status)
		assert.Equal(t, map[string]float64{"A": 50, "B": 50}, got.VariantSplit)
		assert.Equal(t, "A", got.ControlVariant)
		assert.True(t, got.StartDate.Equal(epoch))
		assert.Nil(t, got.EndDate)
		assert.Nil(t, got.SignificanceLevel)
		assert.True(t, got.AutoCompleteOnSignificance)

		_, err = s.GetCampaign(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)

		variants, err := s.ListVariants(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, variants, 2)
		assert.Equal(t, "A", variants[0].Label, "variants come back sorted by label")
		assert.True(t, variants[0].IsControl)

		err = s.CreateCampaign(ctx, &store.Campaign{ID: "c2", Name: "welcome", EndDate: &end, CreatedAt: epoch}, nil)
		assert.ErrorIs(t, err, store.ErrDuplicateName)
	})
}

func TestListCampaigns(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		seedCampaign(t, s, "c1", "first", store.StatusRunning, epoch)
		seedCampaign(t, s, "c2", "second", store.StatusDraft, epoch.Add(time.Hour))
		seedCampaign(t, s, "c3", "third", store.StatusRunning, epoch.Add(2*time.Hour))

		all, err := s.ListCampaigns(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "c3", all[0].ID, "newest first")

		running, err := s.ListCampaigns(ctx, store.StatusRunning)
		require.NoError(t, err)
		assert.Len(t, running, 2)

		auto, err := s.ListRunningWithAutoComplete(ctx)
		require.NoError(t, err)
		require.Len(t, auto, 2)
		assert.Equal(t, "c1", auto[0].ID, "oldest first")
	})
}

func TestSetStatusCompareAndSet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		seedCampaign(t, s, "c1", "welcome", store.StatusRunning, epoch)

		now := epoch.Add(48 * time.Hour)
		p := 0.004
		significant := true
		err := s.SetStatus(ctx, "c1", store.StatusChange{
			From:                    []store.CampaignStatus{store.StatusRunning, store.StatusPaused},
			To:                      store.StatusCompleted,
			At:                      now,
			ActualEndDate:           &now,
			WinnerVariant:           "B",
			WinnerDeterminedAt:      &now,
			StatisticalSignificance: &significant,
			SignificanceLevel:       &p,
		})
		require.NoError(t, err)

		got, err := s.GetCampaign(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, store.StatusCompleted, got.Status)
		assert.Equal(t, "B", got.WinnerVariant)
		require.NotNil(t, got.WinnerDeterminedAt)
		assert.True(t, got.WinnerDeterminedAt.Equal(now))
		require.NotNil(t, got.ActualEndDate)
		assert.True(t, got.StatisticalSignificance)
		require.NotNil(t, got.SignificanceLevel)
		assert.InDelta(t, 0.004, *got.SignificanceLevel, 1e-12)

		err = s.SetStatus(ctx, "c1", store.StatusChange{
			From: []store.CampaignStatus{store.StatusRunning, store.StatusPaused},
			To:   store.StatusCompleted,
			At:   now,
		})
		assert.ErrorIs(t, err, store.ErrStatusConflict)

		err = s.SetStatus(ctx, "missing", store.StatusChange{To: store.StatusRunning, At: now})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestConcurrentCompareAndSetHasOneWinner(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		seedCampaign(t, s, "c1", "welcome", store.StatusRunning, epoch)

		var (
			mu        sync.Mutex
			succeeded int
		)
		var g errgroup.Group
		for i := 0; i < 8; i++ {
			label := fmt.Sprintf("%c", 'A'+i%2)
			g.Go(func() error {
				err := s.SetStatus(ctx, "c1", store.StatusChange{
					From:          []store.CampaignStatus{store.StatusRunning},
					To:            store.StatusCompleted,
					At:            epoch,
					WinnerVariant: label,
				})
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
					return nil
				}
				if errors.Is(err, store.ErrStatusConflict) {
					return nil
				}
				return err
			})
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, 1, succeeded)
	})
}

func TestIncrementCounters(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		seedCampaign(t, s, "c1", "welcome", store.StatusRunning, epoch)

		require.NoError(t, s.IncrementCounters(ctx, "c1-a", store.Counters{ParticipantsAssigned: 2, EmailsSent: 1}))
		require.NoError(t, s.IncrementCounters(ctx, "c1-a", store.Counters{ParticipantsAssigned: 1, Conversions: 1}))

		v, err := s.GetVariant(ctx, "c1-a")
		require.NoError(t, err)
		assert.Equal(t, store.Counters{ParticipantsAssigned: 3, EmailsSent: 1, Conversions: 1}, v.Counters)

		assert.ErrorIs(t, s.IncrementCounters(ctx, "missing", store.Counters{EmailsSent: 1}), store.ErrNotFound)
	})
}

func TestCreateAssignmentIfAbsent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		seedCampaign(t, s, "c1", "welcome", store.StatusRunning, epoch)

		first, created, err := s.CreateAssignmentIfAbsent(ctx, &store.Assignment{
			ID: "a1", CampaignID: "c1", VariantID: "c1-a", SubjectID: "u1", AssignedAt: epoch, AssignmentHash: 0.25,
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "a1", first.ID)

		second, created, err := s.CreateAssignmentIfAbsent(ctx, &store.Assignment{
			ID: "a2", CampaignID: "c1", VariantID: "c1-b", SubjectID: "u1", AssignedAt: epoch,
		})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "a1", second.ID)
		assert.Equal(t, "c1-a", second.VariantID)
		assert.InDelta(t, 0.25, second.AssignmentHash, 1e-12)

		_, err = s.GetAssignment(ctx, "c1", "nobody")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestConcurrentFirstTouch(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		seedCampaign(t, s, "c1", "welcome", store.StatusRunning, epoch)

		var (
			mu      sync.Mutex
			created int
			ids     = map[string]bool{}
		)
		var g errgroup.Group
		for i := 0; i < 10; i++ {
			id := fmt.Sprintf("a%d", i)
			g.Go(func() error {
				stored, ok, err := s.CreateAssignmentIfAbsent(ctx, &store.Assignment{
					ID: id, CampaignID: "c1", VariantID: "c1-a", SubjectID: "u1", AssignedAt: epoch,
				})
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				if ok {
					created++
				}
				ids[stored.ID] = true
				return nil
			})
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, 1, created)
		assert.Len(t, ids, 1, "every caller sees the same stored assignment")
	})
}

func TestDeliveryAndConversion(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		seedCampaign(t, s, "c1", "welcome", store.StatusRunning, epoch)
		seedCampaign(t, s, "c2", "reminder", store.StatusRunning, epoch)

		for _, a := range []*store.Assignment{
			{ID: "a1", CampaignID: "c1", VariantID: "c1-a", SubjectID: "u1", AssignedAt: epoch},
			{ID: "a2", CampaignID: "c2", VariantID: "c2-b", SubjectID: "u1", AssignedAt: epoch.Add(time.Minute)},
		} {
			_, _, err := s.CreateAssignmentIfAbsent(ctx, a)
			require.NoError(t, err)
		}

		require.NoError(t, s.LinkDelivery(ctx, "a1", "log-1"))
		assert.ErrorIs(t, s.LinkDelivery(ctx, "missing", "log-2"), store.ErrNotFound)

		byDelivery, err := s.GetAssignmentByDelivery(ctx, "log-1")
		require.NoError(t, err)
		assert.Equal(t, "a1", byDelivery.ID)
		_, err = s.GetAssignmentByDelivery(ctx, "log-404")
		assert.ErrorIs(t, err, store.ErrNotFound)

		forSubject, err := s.ListAssignmentsForSubject(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, forSubject, 2)
		assert.Equal(t, "a1", forSubject[0].ID)

		value := 19.99
		marked, err := s.MarkConverted(ctx, "a1", "purchase", &value, epoch)
		require.NoError(t, err)
		assert.True(t, marked)

		marked, err = s.MarkConverted(ctx, "a1", "purchase", nil, epoch)
		require.NoError(t, err)
		assert.False(t, marked, "conversion is set once")

		_, err = s.MarkConverted(ctx, "missing", "purchase", nil, epoch)
		assert.ErrorIs(t, err, store.ErrNotFound)

		a, err := s.GetAssignmentByID(ctx, "a1")
		require.NoError(t, err)
		assert.True(t, a.Converted)
		assert.Equal(t, "purchase", a.ConversionType)
		require.NotNil(t, a.ConversionValue)
		assert.InDelta(t, 19.99, *a.ConversionValue, 1e-9)
	})
}

func TestResultsAndDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		seedCampaign(t, s, "c1", "welcome", store.StatusCancelled, epoch)
		seedCampaign(t, s, "c2", "other", store.StatusRunning, epoch)

		for i, action := range []store.RecommendedAction{store.ActionContinue, store.ActionStopInconclusive} {
			require.NoError(t, s.AppendResult(ctx, &store.StatisticalResult{
				ID:                fmt.Sprintf("r%d", i),
				CampaignID:        "c1",
				ControlVariant:    "A",
				TestVariant:       "B",
				PValue:            0.5,
				PrimaryMetric:     store.PrimaryMetricConversionRate,
				RecommendedAction: action,
				CreatedAt:         epoch.Add(time.Duration(i) * time.Hour),
			}))
		}

		results, err := s.ListResults(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, store.ActionContinue, results[0].RecommendedAction, "oldest first")
		assert.Equal(t, store.ActionStopInconclusive, results[1].RecommendedAction)

		_, _, err = s.CreateAssignmentIfAbsent(ctx, &store.Assignment{
			ID: "a1", CampaignID: "c1", VariantID: "c1-a", SubjectID: "u1", AssignedAt: epoch,
		})
		require.NoError(t, err)

		require.NoError(t, s.DeleteCampaign(ctx, "c1"))
		_, err = s.GetCampaign(ctx, "c1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.GetAssignmentByID(ctx, "a1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		results, err = s.ListResults(ctx, "c1")
		require.NoError(t, err)
		assert.Empty(t, results)
		variants, err := s.ListVariants(ctx, "c1")
		require.NoError(t, err)
		assert.Empty(t, variants)

		_, err = s.GetCampaign(ctx, "c2")
		assert.NoError(t, err, "other campaigns are untouched")

		assert.ErrorIs(t, s.DeleteCampaign(ctx, "c1"), store.ErrNotFound)
	})
}
