package engine

import (
	"context"
	"time"

	"github.com/headline-goat/split-goat/internal/store"
)

// Promotion describes a completed campaign and its winner.
type Promotion struct {
	CampaignID   string
	CampaignName string
	Winner       string
	TemplateID   string
	AutoPromote  bool
	Trigger      string // "manual" or "sweep"
	PValue       *float64
	At           time.Time
}

// Notifier is told about persisted analyses and promotions. Errors are
// logged and otherwise ignored.
type Notifier interface {
	ResultRecorded(ctx context.Context, result *store.StatisticalResult) error
	WinnerPromoted(ctx context.Context, p Promotion) error
}

type nopNotifier struct{}

func (nopNotifier) ResultRecorded(context.Context, *store.StatisticalResult) error { return nil }
func (nopNotifier) WinnerPromoted(context.Context, Promotion) error                { return nil }
