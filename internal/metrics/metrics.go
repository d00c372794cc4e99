package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Analysis outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeInvalidRequest = "invalid_request"
	OutcomeNotFound       = "not_found"
	OutcomeLLMError       = "llm_error"
	OutcomeError          = "error"
)

// Metrics holds the collectors for one registry. A nil *Metrics records
// nothing.
type Metrics struct {
	Registry *prometheus.Registry

	analysesTotal    *prometheus.CounterVec
	resolutionsTotal *prometheus.CounterVec
	analysisDuration prometheus.Histogram
}

// New registers the pyctx collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		// Labels: outcome (ok, invalid_request, not_found, llm_error, error)
		analysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pyctx",
			Name:      "analyses_total",
			Help:      "Total analysis requests by outcome",
		}, []string{"outcome"}),

		// Labels: stage (imports, project_scan), outcome (resolved, unresolved, error)
		resolutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pyctx",
			Name:      "resolutions_total",
			Help:      "Symbol resolution attempts by resolver stage and outcome",
		}, []string{"stage", "outcome"}),

		analysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pyctx",
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end analysis latency including the LLM call",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}
}

// RecordAnalysis records one finished analysis.
func (m *Metrics) RecordAnalysis(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(outcome).Inc()
	m.analysisDuration.Observe(d.Seconds())
}

// RecordResolution matches the resolver session's per-stage callback.
func (m *Metrics) RecordResolution(stage, outcome string) {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues(stage, outcome).Inc()
}
