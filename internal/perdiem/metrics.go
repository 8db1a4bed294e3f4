package perdiem

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/perdiem/internal/resilience"
)

// KindNoApplicableRate labels a strategy that got a valid response without
// a usable rate.
const KindNoApplicableRate = "no_applicable_rate"

// FailureKind labels a strategy failure for logs and metrics.
func FailureKind(err error) string {
	if err != nil && errors.Is(err, ErrNoApplicableRate) {
		return KindNoApplicableRate
	}
	return resilience.Kind(err)
}

// Metrics counts resolutions, strategy failures and suggestion lookups. A
// nil *Metrics records nothing.
type Metrics struct {
	resolutions      *prometheus.CounterVec
	strategyFailures *prometheus.CounterVec
	suggestions      *prometheus.CounterVec
	resolveDuration  prometheus.Summary
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{}
	m.resolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "perdiem",
		Name:      "resolutions_total",
		Help:      "Rate resolutions by winning method and outcome",
	}, []string{"method", "outcome"})
	m.strategyFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "perdiem",
		Name:      "strategy_failures_total",
		Help:      "Failed lookup strategies by method and failure kind",
	}, []string{"method", "kind"})
	m.suggestions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "perdiem",
		Name:      "suggestion_source_total",
		Help:      "City suggestion source lookups by source and status",
	}, []string{"source", "status"})
	m.resolveDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "perdiem",
		Name:      "resolve_duration_seconds",
		Help:      "Time spent resolving a rate across every strategy",
	})

	reg.MustRegister(m.resolutions, m.strategyFailures, m.suggestions, m.resolveDuration)
	return m
}

func (m *Metrics) resolved(method Method, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	label := string(method)
	if label == "" {
		label = "none"
	}
	m.resolutions.WithLabelValues(label, outcome).Inc()
	m.resolveDuration.Observe(took.Seconds())
}

func (m *Metrics) strategyFailed(method Method, kind string) {
	if m == nil {
		return
	}
	m.strategyFailures.WithLabelValues(string(method), kind).Inc()
}

func (m *Metrics) suggestionSource(source Source, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = FailureKind(err)
	}
	m.suggestions.WithLabelValues(string(source), status).Inc()
}
