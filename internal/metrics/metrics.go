// Package metrics exposes prometheus counters for a test run.
//
// A nil *Metrics is valid and records nothing, so the orchestrator can call it
// unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "xtest"
)

// Result label values.
const (
	ResultOK      = "ok"
	ResultNotOK   = "not_ok"
	ResultSkipped = "skipped"
)

// Metrics holds the collectors of one registry.
type Metrics struct {
	stepsTotal      *prometheus.CounterVec
	itResultsTotal  *prometheus.CounterVec
	coverageTotal   *prometheus.CounterVec
	bailsTotal      prometheus.Counter
	testsRegistered prometheus.Counter
	runDuration     *prometheus.HistogramVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "steps_total",
			Help:      "Count of completed steps",
		}, []string{
			"type",
		}),
		itResultsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "it_results_total",
			Help:      "Count of test case results",
		}, []string{
			"result",
			"directive",
		}),
		coverageTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "coverage_goals_total",
			Help:      "Count of resolved coverage goals",
		}, []string{
			"result",
		}),
		bailsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "bails_total",
			Help:      "Count of runs terminated by a bail",
		}),
		testsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "tests_registered_total",
			Help:      "Count of registered tests (pages)",
		}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of whole runs",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{
			"result",
		}),
	}
}

// RecordStep counts one completed step of the given type.
func (m *Metrics) RecordStep(kind string) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(kind).Inc()
}

// RecordItResult counts one test case result.
func (m *Metrics) RecordItResult(ok bool, directive string) {
	if m == nil {
		return
	}
	m.itResultsTotal.WithLabelValues(resultLabel(ok), directiveLabel(directive)).Inc()
}

// RecordCoverage counts one resolved coverage goal.
func (m *Metrics) RecordCoverage(ok, skipped bool) {
	if m == nil {
		return
	}
	result := resultLabel(ok)
	if skipped {
		result = ResultSkipped
	}
	m.coverageTotal.WithLabelValues(result).Inc()
}

// RecordTestRegistered counts one registered test.
func (m *Metrics) RecordTestRegistered() {
	if m == nil {
		return
	}
	m.testsRegistered.Inc()
}

// RecordBail counts a bailed run.
func (m *Metrics) RecordBail() {
	if m == nil {
		return
	}
	m.bailsTotal.Inc()
}

// RecordRun observes the duration of a finished run.
func (m *Metrics) RecordRun(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(resultLabel(ok)).Observe(d.Seconds())
}

func resultLabel(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultNotOK
}

func directiveLabel(directive string) string {
	if directive == "" {
		return "none"
	}
	return directive
}
