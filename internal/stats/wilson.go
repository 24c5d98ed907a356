package stats

import "math"

// DefaultZCritical is used for any confidence level without an entry in
// the lookup table. Levels such as 0.975 therefore get the 95% value; the
// table is not interpolated.
const DefaultZCritical = 1.96

var zCritical = []struct {
	level float64
	z     float64
}{
	{0.90, 1.645},
	{0.95, 1.96},
	{0.99, 2.576},
}

// ZCritical returns the two-sided critical value for a confidence level.
// Known levels:
//   - 0.90 -> 1.645
//   - 0.95 -> 1.96
//   - 0.99 -> 2.576
//
// Anything else returns DefaultZCritical.
func ZCritical(confidenceLevel float64) float64 {
	for _, entry := range zCritical {
		if math.Abs(confidenceLevel-entry.level) < 1e-9 {
			return entry.z
		}
	}
	return DefaultZCritical
}

// KnownConfidenceLevel reports whether ZCritical has a table entry for the level.
func KnownConfidenceLevel(confidenceLevel float64) bool {
	for _, entry := range zCritical {
		if math.Abs(confidenceLevel-entry.level) < 1e-9 {
			return true
		}
	}
	return false
}

// WilsonInterval calculates the Wilson score confidence interval
// for a binomial proportion. It's more accurate for small samples
// than the normal approximation.
func WilsonInterval(successes, trials int64, confidence float64) (lower, upper float64) {
	if trials <= 0 {
		return 0, 0
	}

	z := ZCritical(confidence)
	p := float64(successes) / float64(trials)
	n := float64(trials)

	denominator := 1 + z*z/n
	center := (p + z*z/(2*n)) / denominator
	spread := (z / denominator) * math.Sqrt(p*(1-p)/n+z*z/(4*n*n))

	return clamp(center-spread, 0, 1), clamp(center+spread, 0, 1)
}
