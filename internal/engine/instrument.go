package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "split_goat"

	outcomeExisting  = "existing"
	outcomeCreated   = "created"
	outcomeExcluded  = "excluded"
	outcomeInactive  = "inactive"
	outcomeRecorded  = "recorded"
	outcomeDuplicate = "duplicate"

	triggerManual = "manual"
	triggerSweep  = "sweep"
)

// Metrics holds the engine's Prometheus instruments.
type Metrics struct {
	Assignments      *prometheus.CounterVec
	Events           *prometheus.CounterVec
	EventFailures    *prometheus.CounterVec
	Conversions      *prometheus.CounterVec
	Analyses         *prometheus.CounterVec
	Promotions       *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
}

// NewMetrics creates the instruments and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Assignments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "assignments_total",
			Help:      "Assignment requests by outcome",
		}, []string{"outcome"}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Events folded into variant counters by event type",
		}, []string{"event"}),
		EventFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "event_failures_total",
			Help:      "Events that could not be recorded by event type",
		}, []string{"event"}),
		Conversions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "conversions_total",
			Help:      "Conversion reports by outcome",
		}, []string{"outcome"}),
		Analyses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "analyses_total",
			Help:      "Persisted analyses by recommended action",
		}, []string{"action"}),
		Promotions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "promotions_total",
			Help:      "Winner promotions by trigger",
		}, []string{"trigger"}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent in a single analysis",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
}
