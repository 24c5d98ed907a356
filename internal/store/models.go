package store

import (
	"sort"
	"time"
)

type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusRunning   CampaignStatus = "running"
	StatusPaused    CampaignStatus = "paused"
	StatusCompleted CampaignStatus = "completed"
	StatusCancelled CampaignStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed out of s.
func (s CampaignStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Campaign is one experiment definition.
type Campaign struct {
	ID                         string
	Name                       string
	Description                string
	TestType                   string
	Status                     CampaignStatus
	TrafficSplitPercentage     float64
	VariantSplit               map[string]float64 // label -> share of the entered population
	ControlVariant             string
	StartDate                  time.Time
	EndDate                    *time.Time
	ActualStartDate            *time.Time
	ActualEndDate              *time.Time
	ConfidenceLevel            float64
	MinimumSampleSize          int
	MinimumEffectSize          float64
	StatisticalPower           float64
	AutoPromoteWinner          bool
	AutoCompleteOnSignificance bool
	MaxDurationDays            int
	WinnerVariant              string
	WinnerDeterminedAt         *time.Time
	StatisticalSignificance    bool
	SignificanceLevel          *float64
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// Counters are the running outcome counts of a variant. They only ever grow.
type Counters struct {
	ParticipantsAssigned int64
	EmailsSent           int64
	EmailsDelivered      int64
	EmailsOpened         int64
	EmailsClicked        int64
	Conversions          int64
}

// Add returns c with every field of d added.
func (c Counters) Add(d Counters) Counters {
	return Counters{
		ParticipantsAssigned: c.ParticipantsAssigned + d.ParticipantsAssigned,
		EmailsSent:           c.EmailsSent + d.EmailsSent,
		EmailsDelivered:      c.EmailsDelivered + d.EmailsDelivered,
		EmailsOpened:         c.EmailsOpened + d.EmailsOpened,
		EmailsClicked:        c.EmailsClicked + d.EmailsClicked,
		Conversions:          c.Conversions + d.Conversions,
	}
}

// IsZero reports whether no counter is set.
func (c Counters) IsZero() bool {
	return c == Counters{}
}

// Variant is one arm of a campaign.
type Variant struct {
	ID                string
	CampaignID        string
	Label             string
	TemplateID        string
	IsControl         bool
	TrafficPercentage float64
	Counters
	CreatedAt time.Time
}

func (v *Variant) OpenRate() float64 {
	return ratio(v.EmailsOpened, v.EmailsSent)
}

func (v *Variant) ClickRate() float64 {
	return ratio(v.EmailsClicked, v.EmailsSent)
}

func (v *Variant) ConversionRate() float64 {
	return ratio(v.Conversions, v.ParticipantsAssigned)
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// SortVariants orders variants by label, the fixed order every
// selection and tie-break relies on.
func SortVariants(variants []*Variant) {
	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Label < variants[j].Label
	})
}

// Assignment binds one subject to one variant of one campaign.
type Assignment struct {
	ID              string
	CampaignID      string
	VariantID       string
	SubjectID       string
	AssignedAt      time.Time
	AssignmentHash  float64 // bucket value the selector used
	DeliveryID      string
	Converted       bool
	ConvertedAt     *time.Time
	ConversionType  string
	ConversionValue *float64
}

type RecommendedAction string

const (
	ActionContinue               RecommendedAction = "continue"
	ActionStopAndImplementWinner RecommendedAction = "stop_and_implement_winner"
	ActionStopInconclusive       RecommendedAction = "stop_inconclusive"
	ActionExtendTest             RecommendedAction = "extend_test"
)

const PrimaryMetricConversionRate = "conversion_rate"

// StatisticalResult is an immutable snapshot of one analysis run.
type StatisticalResult struct {
	ID                      string
	CampaignID              string
	TotalParticipants       int64
	TotalEmailsSent         int64
	TotalEmailsDelivered    int64
	TotalEmailsOpened       int64
	TotalEmailsClicked      int64
	TotalConversions        int64
	TestDurationDays        int
	PrimaryMetric           string
	ControlVariant          string
	TestVariant             string
	ControlRate             float64
	TestRate                float64
	LiftPercentage          float64
	ZScore                  float64
	PValue                  float64
	ConfidenceIntervalLower float64
	ConfidenceIntervalUpper float64
	IsSignificant           bool
	ConfidenceLevel         float64
	RecommendedAction       RecommendedAction
	RecommendedWinner       string
	CreatedAt               time.Time
}
