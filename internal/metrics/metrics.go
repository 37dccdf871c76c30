// Package metrics exports pipeline measurements in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alnah/propulse"
)

const namespace = "propulse"

// Metrics implements propulse.Observer on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration      *prometheus.HistogramVec
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	cleanupsTotal      *prometheus.CounterVec
}

// New registers the pipeline collectors plus Go runtime and process
// collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage", "outcome"}),
		generationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Proposal generations by output mode and outcome.",
		}, []string{"mode", "outcome"}),
		generationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "End-to-end proposal generation time.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 240},
		}, []string{"mode"}),
		cleanupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_cleanups_total",
			Help:      "Temporary PDF deletions by outcome.",
		}, []string{"outcome"}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveStage records one stage execution.
func (m *Metrics) ObserveStage(stage propulse.Stage, d time.Duration, err error) {
	m.stageDuration.WithLabelValues(string(stage), outcome(err)).Observe(d.Seconds())
}

// ObserveGeneration records one pipeline invocation.
func (m *Metrics) ObserveGeneration(mode propulse.OutputMode, d time.Duration, err error) {
	m.generationsTotal.WithLabelValues(string(mode), outcome(err)).Inc()
	m.generationDuration.WithLabelValues(string(mode)).Observe(d.Seconds())
}

// ObserveCleanup records one artifact deletion.
func (m *Metrics) ObserveCleanup(err error) {
	m.cleanupsTotal.WithLabelValues(outcome(err)).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Compile-time interface check.
var _ propulse.Observer = (*Metrics)(nil)
