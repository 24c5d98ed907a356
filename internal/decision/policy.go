// Package decision turns an analysis into a recommended next step.
package decision

import (
	"errors"

	"github.com/headline-goat/split-goat/internal/stats"
	"github.com/headline-goat/split-goat/internal/store"
)

var (
	ErrNoControl    = errors.New("no control variant")
	ErrNoTreatments = errors.New("no treatment variants")
)

// Arms are the two variants an analysis compares.
type Arms struct {
	Control   *store.Variant
	Treatment *store.Variant
}

// SelectArms picks the control and the best treatment.
//
// The control is the variant flagged IsControl, falling back to the one
// labelled controlLabel. The best treatment is the non-control variant with
// the highest conversion rate; ties go to the lowest label.
func SelectArms(variants []*store.Variant, controlLabel string) (Arms, error) {
	sorted := make([]*store.Variant, len(variants))
	copy(sorted, variants)
	store.SortVariants(sorted)

	var arms Arms
	for _, v := range sorted {
		if v.IsControl {
			arms.Control = v
			break
		}
	}
	if arms.Control == nil && controlLabel != "" {
		for _, v := range sorted {
			if v.Label == controlLabel {
				arms.Control = v
				break
			}
		}
	}
	if arms.Control == nil {
		return Arms{}, ErrNoControl
	}

	for _, v := range sorted {
		if v.ID == arms.Control.ID {
			continue
		}
		// Strict comparison keeps the earliest label on ties.
		if arms.Treatment == nil || v.ConversionRate() > arms.Treatment.ConversionRate() {
			arms.Treatment = v
		}
	}
	if arms.Treatment == nil {
		return Arms{}, ErrNoTreatments
	}
	return arms, nil
}

// Input is everything Decide looks at.
type Input struct {
	MinimumSampleSize int
	MaxDurationDays   int
	VariantCount      int
	TotalParticipants int64
	DurationDays      int
	Arms              Arms
	Test              stats.TestResult
}

// Decision is the recommended action and, when stopping with a winner,
// the winning label.
type Decision struct {
	Action store.RecommendedAction
	Winner string
}

// Decide applies the stopping rules in order:
//
//  1. below MinimumSampleSize per variant: continue
//  2. significant and the treatment beats control: stop with the treatment
//     as winner; significant otherwise: stop inconclusive
//  3. not significant but out of time: stop inconclusive
//  4. otherwise: continue
//
// ActionExtendTest is never produced.
func Decide(in Input) Decision {
	required := int64(in.MinimumSampleSize) * int64(in.VariantCount)
	if in.TotalParticipants < required {
		return Decision{Action: store.ActionContinue}
	}

	if in.Test.Significant {
		if in.Arms.Treatment != nil && in.Arms.Control != nil &&
			in.Arms.Treatment.ConversionRate() > in.Arms.Control.ConversionRate() {
			return Decision{Action: store.ActionStopAndImplementWinner, Winner: in.Arms.Treatment.Label}
		}
		return Decision{Action: store.ActionStopInconclusive}
	}

	if in.DurationDays >= in.MaxDurationDays {
		return Decision{Action: store.ActionStopInconclusive}
	}

	return Decision{Action: store.ActionContinue}
}
