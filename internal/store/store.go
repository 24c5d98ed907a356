package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrStatusConflict is returned when a status compare-and-set finds the
	// campaign in a state other than the expected ones.
	ErrStatusConflict = errors.New("status conflict")
	ErrDuplicateName  = errors.New("duplicate campaign name")
)

// StatusChange describes a guarded status transition. The change is applied
// only when the campaign's current status is one of From.
type StatusChange struct {
	From []CampaignStatus
	To   CampaignStatus
	At   time.Time

	// Optional stamps written together with the status.
	ActualStartDate         *time.Time
	ActualEndDate           *time.Time
	WinnerVariant           string
	WinnerDeterminedAt      *time.Time
	StatisticalSignificance *bool
	SignificanceLevel       *float64
}

// CampaignRepository stores experiment definitions.
type CampaignRepository interface {
	CreateCampaign(ctx context.Context, c *Campaign, variants []*Variant) error
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
	ListCampaigns(ctx context.Context, statuses ...CampaignStatus) ([]*Campaign, error)
	ListRunningWithAutoComplete(ctx context.Context) ([]*Campaign, error)
	// SetStatus must check and set atomically.
	SetStatus(ctx context.Context, id string, change StatusChange) error
	DeleteCampaign(ctx context.Context, id string) error
}

// VariantRepository stores variants and their counters.
type VariantRepository interface {
	ListVariants(ctx context.Context, campaignID string) ([]*Variant, error)
	GetVariant(ctx context.Context, id string) (*Variant, error)
	IncrementCounters(ctx context.Context, variantID string, delta Counters) error
}

// AssignmentStore stores subject to variant bindings.
type AssignmentStore interface {
	GetAssignment(ctx context.Context, campaignID, subjectID string) (*Assignment, error)
	GetAssignmentByID(ctx context.Context, id string) (*Assignment, error)
	GetAssignmentByDelivery(ctx context.Context, deliveryID string) (*Assignment, error)
	ListAssignmentsForSubject(ctx context.Context, subjectID string) ([]*Assignment, error)
	// CreateAssignmentIfAbsent inserts a unless an assignment for the same
	// (campaign, subject) exists, and returns whichever row is stored.
	// created is false when an existing row was returned.
	CreateAssignmentIfAbsent(ctx context.Context, a *Assignment) (stored *Assignment, created bool, err error)
	LinkDelivery(ctx context.Context, assignmentID, deliveryID string) error
	// MarkConverted sets the conversion fields once. It returns false when
	// the assignment was already converted.
	MarkConverted(ctx context.Context, assignmentID, conversionType string, value *float64, at time.Time) (bool, error)
}

// ResultStore keeps the append-only analysis history.
type ResultStore interface {
	AppendResult(ctx context.Context, r *StatisticalResult) error
	ListResults(ctx context.Context, campaignID string) ([]*StatisticalResult, error)
}

// Store is everything the engine needs from persistence.
type Store interface {
	CampaignRepository
	VariantRepository
	AssignmentStore
	ResultStore

	Close() error
}
