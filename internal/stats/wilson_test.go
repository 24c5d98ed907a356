package stats_test

import (
	"testing"

	"github.com/headline-goat/split-goat/internal/stats"
)

func TestZCritical(t *testing.T) {
	cases := []struct {
		level float64
		want  float64
		known bool
	}{
		{0.90, 1.645, true},
		{0.95, 1.96, true},
		{0.99, 2.576, true},
		{0.975, stats.DefaultZCritical, false},
		{0.80, stats.DefaultZCritical, false},
	}

	for _, c := range cases {
		if got := stats.ZCritical(c.level); got != c.want {
			t.Errorf("ZCritical(%v) = %v, want %v", c.level, got, c.want)
		}
		if got := stats.KnownConfidenceLevel(c.level); got != c.known {
			t.Errorf("KnownConfidenceLevel(%v) = %v, want %v", c.level, got, c.known)
		}
	}
}

func TestWilsonInterval_50PercentConversion(t *testing.T) {
	lower, upper := stats.WilsonInterval(50, 100, 0.95)

	if lower < 0.38 || lower > 0.42 {
		t.Errorf("lower bound %f not in expected range [0.38, 0.42]", lower)
	}
	if upper < 0.58 || upper > 0.62 {
		t.Errorf("upper bound %f not in expected range [0.58, 0.62]", upper)
	}
}

func TestWilsonInterval_LowConversion(t *testing.T) {
	lower, upper := stats.WilsonInterval(5, 100, 0.95)

	if lower < 0.01 || lower > 0.03 {
		t.Errorf("lower bound %f not in expected range [0.01, 0.03]", lower)
	}
	if upper < 0.09 || upper > 0.13 {
		t.Errorf("upper bound %f not in expected range [0.09, 0.13]", upper)
	}
}

func TestWilsonInterval_Bounds(t *testing.T) {
	lower, upper := stats.WilsonInterval(0, 0, 0.95)
	if lower != 0 || upper != 0 {
		t.Errorf("expected (0, 0) for zero trials, got (%f, %f)", lower, upper)
	}

	lower, _ = stats.WilsonInterval(0, 100, 0.95)
	if lower > 1e-12 {
		t.Errorf("expected lower bound 0 for zero successes, got %f", lower)
	}

	_, upper = stats.WilsonInterval(100, 100, 0.95)
	if upper < 1-1e-12 {
		t.Errorf("expected upper bound 1 for all successes, got %f", upper)
	}
}

func TestWilsonInterval_WiderAtHigherConfidence(t *testing.T) {
	l90, u90 := stats.WilsonInterval(30, 200, 0.90)
	l99, u99 := stats.WilsonInterval(30, 200, 0.99)

	if u99-l99 <= u90-l90 {
		t.Errorf("99%% interval [%f, %f] not wider than 90%% [%f, %f]", l99, u99, l90, u90)
	}
}
