package assign

import (
	"sort"

	"github.com/headline-goat/split-goat/internal/store"
)

// Selection is the outcome of routing one subject.
type Selection struct {
	Bucket float64
	// Label is empty when the subject falls outside the traffic split.
	Label string
}

// Included reports whether the subject entered the test.
func (s Selection) Included() bool {
	return s.Label != ""
}

// Select routes subjectID through the campaign's traffic split.
//
// Subjects whose bucket is at or above TrafficSplitPercentage/100 are left
// out of the test entirely. The rest are spread over VariantSplit, walked in
// label order. The split is trusted to sum to 100; it is validated when the
// campaign is created and never renormalised here, since renormalising would
// move bucket boundaries.
func Select(c *store.Campaign, subjectID string) Selection {
	bucket := Bucket(c.ID, subjectID)
	sel := Selection{Bucket: bucket}

	entered := c.TrafficSplitPercentage / 100
	if entered <= 0 || bucket >= entered {
		return sel
	}

	// Stretch the entered slice of [0,1) back over 0-100.
	point := bucket / entered * 100

	labels := make([]string, 0, len(c.VariantSplit))
	for label := range c.VariantSplit {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	cumulative := 0.0
	last := ""
	for _, label := range labels {
		share := c.VariantSplit[label]
		if share <= 0 {
			continue
		}
		cumulative += share
		last = label
		if point < cumulative {
			sel.Label = label
			return sel
		}
	}

	// Float accumulation can leave the final boundary a hair under 100.
	sel.Label = last
	return sel
}
