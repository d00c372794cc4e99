package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.RecordAnalysis(OutcomeOK, 20*time.Millisecond)
	m.RecordAnalysis(OutcomeOK, time.Second)
	m.RecordAnalysis(OutcomeNotFound, time.Millisecond)
	m.RecordResolution("imports", "resolved")
	m.RecordResolution("project_scan", "unresolved")
	m.RecordResolution("project_scan", "unresolved")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.analysesTotal.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analysesTotal.WithLabelValues(OutcomeNotFound)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.resolutionsTotal.WithLabelValues("project_scan", "unresolved")))

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"pyctx_analyses_total",
		"pyctx_resolutions_total",
		"pyctx_analysis_duration_seconds",
	}, names)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAnalysis(OutcomeError, time.Second)
		m.RecordResolution("imports", "error")
	})
}
