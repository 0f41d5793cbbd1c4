package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordStep("it")
	m.RecordStep("it")
	m.RecordStep("exit")
	m.RecordItResult(true, "")
	m.RecordItResult(false, "TODO")
	m.RecordCoverage(true, false)
	m.RecordCoverage(true, true)
	m.RecordTestRegistered()
	m.RecordBail()
	m.RecordRun(false, 150*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.stepsTotal.WithLabelValues("it")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stepsTotal.WithLabelValues("exit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.itResultsTotal.WithLabelValues(ResultOK, "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.itResultsTotal.WithLabelValues(ResultNotOK, "TODO")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.coverageTotal.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.coverageTotal.WithLabelValues(ResultSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.testsRegistered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bailsTotal))

	count, err := testutil.GatherAndCount(reg, "xtest_run_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordStep("it")
		m.RecordItResult(true, "")
		m.RecordCoverage(false, false)
		m.RecordTestRegistered()
		m.RecordBail()
		m.RecordRun(true, time.Second)
	})
}
