// Package engine is the experiment facade: it assigns subjects to variants,
// records outcome events, analyses campaigns and promotes winners.
//
// The engine holds no state of its own. Everything durable goes through the
// collaborator interfaces in package store, which are responsible for the
// atomic operations the engine relies on (insert-if-absent assignments,
// set-once conversions, status compare-and-set). Nothing here locks or
// retries; store failures are returned to the caller, except for metrics
// recording, which is logged and dropped.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/headline-goat/split-goat/internal/assign"
	"github.com/headline-goat/split-goat/internal/metrics"
	"github.com/headline-goat/split-goat/internal/store"
)

// Collaborators are the stores the engine reads and writes.
type Collaborators struct {
	Campaigns   store.CampaignRepository
	Variants    store.VariantRepository
	Assignments store.AssignmentStore
	Results     store.ResultStore
}

// StoreCollaborators uses one Store for every collaborator.
func StoreCollaborators(s store.Store) Collaborators {
	return Collaborators{Campaigns: s, Variants: s, Assignments: s, Results: s}
}

type Engine struct {
	campaigns   store.CampaignRepository
	variants    store.VariantRepository
	assignments store.AssignmentStore
	results     store.ResultStore

	logger   *zap.Logger
	metrics  *Metrics
	notifier Notifier
	now      func() time.Time
	newID    func() string
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithClock replaces time.Now. Durations and timestamps all come from it.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

func New(c Collaborators, opts ...Option) *Engine {
	e := &Engine{
		campaigns:   c.Campaigns,
		variants:    c.Variants,
		assignments: c.Assignments,
		results:     c.Results,
		logger:      zap.NewNop(),
		metrics:     NewMetrics(nil),
		notifier:    nopNotifier{},
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AssignmentRef identifies an assignment either directly or through the
// delivery (email log) id linked to it.
type AssignmentRef struct {
	AssignmentID string
	DeliveryID   string
}

func (r AssignmentRef) String() string {
	if r.AssignmentID != "" {
		return r.AssignmentID
	}
	return "delivery:" + r.DeliveryID
}

// AssignSubject returns the template the subject should receive.
//
// Subjects already assigned keep their variant. New subjects are routed by
// assign.Select and persisted with an insert-if-absent, so concurrent first
// touches agree on one variant. When the campaign is not running, is past
// its end date, or the subject falls outside the traffic split,
// defaultTemplateID is returned and nothing is written. On store errors the
// default template is returned alongside the error.
func (e *Engine) AssignSubject(ctx context.Context, campaignID, subjectID, defaultTemplateID string) (string, error) {
	c, err := e.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return defaultTemplateID, fmt.Errorf("failed to get campaign %s: %w", campaignID, err)
	}

	now := e.now()
	if !assignable(c, now) {
		e.metrics.Assignments.WithLabelValues(outcomeInactive).Inc()
		return defaultTemplateID, nil
	}

	existing, err := e.assignments.GetAssignment(ctx, campaignID, subjectID)
	switch {
	case err == nil:
		v, err := e.variants.GetVariant(ctx, existing.VariantID)
		if err != nil {
			return defaultTemplateID, fmt.Errorf("failed to get variant %s: %w", existing.VariantID, err)
		}
		e.metrics.Assignments.WithLabelValues(outcomeExisting).Inc()
		return v.TemplateID, nil
	case !errors.Is(err, store.ErrNotFound):
		return defaultTemplateID, fmt.Errorf("failed to get assignment: %w", err)
	}

	sel := assign.Select(c, subjectID)
	if !sel.Included() {
		e.metrics.Assignments.WithLabelValues(outcomeExcluded).Inc()
		return defaultTemplateID, nil
	}

	variants, err := e.variants.ListVariants(ctx, campaignID)
	if err != nil {
		return defaultTemplateID, fmt.Errorf("failed to list variants: %w", err)
	}
	chosen := variantByLabel(variants, sel.Label)
	if chosen == nil {
		return defaultTemplateID, configError("assign", campaignID,
			fmt.Sprintf("variant split references unknown label %q", sel.Label))
	}

	stored, created, err := e.assignments.CreateAssignmentIfAbsent(ctx, &store.Assignment{
		ID:             e.newID(),
		CampaignID:     campaignID,
		VariantID:      chosen.ID,
		SubjectID:      subjectID,
		AssignedAt:     now,
		AssignmentHash: sel.Bucket,
	})
	if err != nil {
		return defaultTemplateID, fmt.Errorf("failed to create assignment: %w", err)
	}

	if !created {
		// Lost a first-touch race; the stored row wins.
		e.metrics.Assignments.WithLabelValues(outcomeExisting).Inc()
		if v := variantByID(variants, stored.VariantID); v != nil {
			return v.TemplateID, nil
		}
		v, err := e.variants.GetVariant(ctx, stored.VariantID)
		if err != nil {
			return defaultTemplateID, fmt.Errorf("failed to get variant %s: %w", stored.VariantID, err)
		}
		return v.TemplateID, nil
	}

	e.metrics.Assignments.WithLabelValues(outcomeCreated).Inc()
	ev, _ := metrics.NewEvent(metrics.KindAssigned, chosen.ID, now)
	e.apply(ctx, campaignID, stored.ID, ev)

	e.logger.Debug("subject assigned",
		zap.String("campaign_id", campaignID),
		zap.String("subject_id", subjectID),
		zap.String("variant", chosen.Label),
		zap.Float64("bucket", sel.Bucket),
	)
	return chosen.TemplateID, nil
}

// LinkDelivery attaches a delivery (email log) id to an assignment so later
// events can reference it.
func (e *Engine) LinkDelivery(ctx context.Context, assignmentID, deliveryID string) error {
	if err := e.assignments.LinkDelivery(ctx, assignmentID, deliveryID); err != nil {
		return fmt.Errorf("failed to link delivery: %w", err)
	}
	return nil
}

// RecordEvent folds one delivery-stage event into the assigned variant's
// counters. It never fails: problems are logged and counted.
func (e *Engine) RecordEvent(ctx context.Context, ref AssignmentRef, kind metrics.Kind, at time.Time) {
	log := e.logger.With(zap.String("assignment", ref.String()), zap.String("event", string(kind)))

	if _, err := metrics.ParseKind(string(kind)); err != nil {
		e.metrics.EventFailures.WithLabelValues(string(kind)).Inc()
		log.Warn("dropping event", zap.Error(err))
		return
	}
	if at.IsZero() {
		at = e.now()
	}

	a, err := e.resolve(ctx, ref)
	if err != nil {
		e.metrics.EventFailures.WithLabelValues(string(kind)).Inc()
		log.Warn("failed to resolve assignment for event", zap.Error(err))
		return
	}

	ev, err := metrics.NewEvent(kind, a.VariantID, at)
	if err != nil {
		e.metrics.EventFailures.WithLabelValues(string(kind)).Inc()
		log.Warn("dropping event", zap.Error(err))
		return
	}
	e.apply(ctx, a.CampaignID, a.ID, ev)
}

// RecordConversion marks every unconverted assignment of the subject as
// converted and counts one conversion for each. Repeated reports for the
// same subject are no-ops. It returns how many conversions were counted;
// failures are logged and never returned.
func (e *Engine) RecordConversion(ctx context.Context, subjectID, conversionType string, value *float64) int {
	if conversionType == "" {
		conversionType = "qualified"
	}
	log := e.logger.With(zap.String("subject_id", subjectID), zap.String("event", string(metrics.KindConversion)))

	assignments, err := e.assignments.ListAssignmentsForSubject(ctx, subjectID)
	if err != nil {
		e.metrics.EventFailures.WithLabelValues(string(metrics.KindConversion)).Inc()
		log.Warn("failed to list assignments for conversion", zap.Error(err))
		return 0
	}

	now := e.now()
	recorded := 0
	for _, a := range assignments {
		if a.Converted {
			e.metrics.Conversions.WithLabelValues(outcomeDuplicate).Inc()
			continue
		}

		// The store's set-once is the source of truth; a concurrent report
		// for the same subject gets false here.
		marked, err := e.assignments.MarkConverted(ctx, a.ID, conversionType, value, now)
		if err != nil {
			e.metrics.EventFailures.WithLabelValues(string(metrics.KindConversion)).Inc()
			log.Warn("failed to mark conversion", zap.String("assignment_id", a.ID), zap.Error(err))
			continue
		}
		if !marked {
			e.metrics.Conversions.WithLabelValues(outcomeDuplicate).Inc()
			continue
		}

		e.metrics.Conversions.WithLabelValues(outcomeRecorded).Inc()
		e.apply(ctx, a.CampaignID, a.ID, metrics.NewConversion(a.VariantID, subjectID, conversionType, value, now))
		recorded++
	}
	return recorded
}

// apply tallies events and increments the variants' counters. Failures are
// logged and counted, never returned.
func (e *Engine) apply(ctx context.Context, campaignID, assignmentID string, events ...metrics.Event) {
	for variantID, delta := range metrics.Tally(events...) {
		err := e.variants.IncrementCounters(ctx, variantID, delta)
		for _, ev := range events {
			if ev.VariantID() != variantID {
				continue
			}
			if err != nil {
				e.metrics.EventFailures.WithLabelValues(string(ev.Kind())).Inc()
			} else {
				e.metrics.Events.WithLabelValues(string(ev.Kind())).Inc()
			}
		}
		if err != nil {
			e.logger.Warn("failed to record metrics",
				zap.String("campaign_id", campaignID),
				zap.String("assignment_id", assignmentID),
				zap.String("variant_id", variantID),
				zap.Error(err),
			)
		}
	}
}

func (e *Engine) resolve(ctx context.Context, ref AssignmentRef) (*store.Assignment, error) {
	if ref.AssignmentID != "" {
		return e.assignments.GetAssignmentByID(ctx, ref.AssignmentID)
	}
	if ref.DeliveryID != "" {
		return e.assignments.GetAssignmentByDelivery(ctx, ref.DeliveryID)
	}
	return nil, errors.New("empty assignment reference")
}

func assignable(c *store.Campaign, now time.Time) bool {
	if c.Status != store.StatusRunning {
		return false
	}
	return c.EndDate == nil || !now.After(*c.EndDate)
}

func variantByLabel(variants []*store.Variant, label string) *store.Variant {
	for _, v := range variants {
		if v.Label == label {
			return v
		}
	}
	return nil
}

func variantByID(variants []*store.Variant, id string) *store.Variant {
	for _, v := range variants {
		if v.ID == id {
			return v
		}
	}
	return nil
}
