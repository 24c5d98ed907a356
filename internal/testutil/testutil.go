// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/headline-goat/split-goat/internal/engine"
	"github.com/headline-goat/split-goat/internal/store"
)

// SetupTestStore opens a SQLite store in t.TempDir() and closes it when the
// test finishes.
func SetupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// Clock is a settable time source for engine.WithClock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Epoch is the default start time for test clocks.
var Epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// TwoVariantSpec is a 50/50 campaign with control A and treatment B.
func TwoVariantSpec(name string) engine.CampaignSpec {
	return engine.CampaignSpec{
		Name: name,
		Variants: []engine.VariantSpec{
			{Label: "A", TemplateID: "tmpl-a", TrafficPercentage: 50, IsControl: true},
			{Label: "B", TemplateID: "tmpl-b", TrafficPercentage: 50},
		},
	}
}

// RunningCampaign creates spec and starts it.
func RunningCampaign(t *testing.T, e *engine.Engine, spec engine.CampaignSpec) (*store.Campaign, []*store.Variant) {
	t.Helper()
	ctx := context.Background()

	c, variants, err := e.CreateCampaign(ctx, spec)
	if err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}
	c, err = e.TransitionStatus(ctx, c.ID, store.StatusRunning)
	if err != nil {
		t.Fatalf("failed to start campaign: %v", err)
	}
	return c, variants
}

// SetCounters overwrites a variant's counters by incrementing from zero.
// The variant must not have been touched yet.
func SetCounters(t *testing.T, s store.VariantRepository, variantID string, participants, conversions int64) {
	t.Helper()

	err := s.IncrementCounters(context.Background(), variantID, store.Counters{
		ParticipantsAssigned: participants,
		Conversions:          conversions,
	})
	if err != nil {
		t.Fatalf("failed to set counters: %v", err)
	}
}

// SubjectIDs returns n distinct subject ids.
func SubjectIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("subject-%05d", i)
	}
	return ids
}
