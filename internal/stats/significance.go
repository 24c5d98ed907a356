package stats

import "math"

// Sample is one arm of a comparison: how many subjects took part and how
// many of them converted.
type Sample struct {
	Participants int64
	Conversions  int64
}

// Rate returns Conversions/Participants, or 0 for an empty sample.
func (s Sample) Rate() float64 {
	if s.Participants == 0 {
		return 0
	}
	return float64(s.Conversions) / float64(s.Participants)
}

// TestResult is the outcome of a two-proportion z-test.
type TestResult struct {
	ControlRate   float64
	TreatmentRate float64
	Difference    float64 // treatment - control
	Z             float64
	PValue        float64
	CILower       float64
	CIUpper       float64
	Significant   bool
}

// TwoProportionTest compares the conversion rates of control and treatment.
//
// The z statistic uses the pooled standard error. The confidence interval
// for the raw difference uses the unpooled standard error and the critical
// value from ZCritical. Empty samples and zero variance yield p = 1 and a
// [0, 0] interval rather than dividing by zero.
func TwoProportionTest(control, treatment Sample, confidenceLevel float64) TestResult {
	n1 := float64(control.Participants)
	n2 := float64(treatment.Participants)
	x1 := float64(control.Conversions)
	x2 := float64(treatment.Conversions)

	result := TestResult{PValue: 1}
	if control.Participants <= 0 || treatment.Participants <= 0 {
		return result
	}

	p1 := x1 / n1
	p2 := x2 / n2
	result.ControlRate = p1
	result.TreatmentRate = p2
	result.Difference = p2 - p1

	// Pooled proportion under the null hypothesis p1 = p2
	pooledP := (x1 + x2) / (n1 + n2)
	se := math.Sqrt(pooledP * (1 - pooledP) * (1/n1 + 1/n2))
	if se == 0 || math.IsNaN(se) {
		return result
	}

	result.Z = (p2 - p1) / se
	result.PValue = 2 * (1 - NormalCDF(math.Abs(result.Z)))

	diffSE := math.Sqrt(p1*(1-p1)/n1 + p2*(1-p2)/n2)
	margin := ZCritical(confidenceLevel) * diffSE
	result.CILower = clamp(result.Difference-margin, -1, 1)
	result.CIUpper = clamp(result.Difference+margin, -1, 1)

	result.Significant = result.PValue < (1 - confidenceLevel)
	return result
}

// Lift is the relative change of treatment over control in percent.
// It is 0 when the control rate is 0.
func Lift(controlRate, treatmentRate float64) float64 {
	if controlRate <= 0 {
		return 0
	}
	return (treatmentRate - controlRate) / controlRate * 100
}

// NormalCDF is the standard normal CDF, (1 + erf(x/√2)) / 2.
func NormalCDF(x float64) float64 {
	return (1 + Erf(x/math.Sqrt2)) / 2
}

// Erf approximates the error function using Abramowitz and Stegun,
// Handbook of Mathematical Functions, formula 7.1.26. Maximum absolute
// error is about 1.5e-7. Significance thresholds are compared against
// this exact approximation, so it must not be swapped for math.Erf.
func Erf(x float64) float64 {
	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x)

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return sign * y
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
