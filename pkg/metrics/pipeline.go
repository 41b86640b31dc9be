// Package metrics records pipeline step and run metrics in Prometheus and
// exposes them over HTTP.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineRecorder records step executions and run outcomes.
type PipelineRecorder struct {
	stepsTotal    *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	runsTotal     *prometheus.CounterVec
	runIterations prometheus.Histogram
}

// NewPipelineRecorder registers the pipeline metrics with reg. A nil reg uses
// the default registerer.
func NewPipelineRecorder(reg prometheus.Registerer) *PipelineRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PipelineRecorder{
		stepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proofloop_steps_total",
				Help: "Total number of pipeline step executions by step and outcome",
			},
			[]string{"step", "status"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proofloop_step_duration_seconds",
				Help:    "Duration of pipeline steps in seconds",
				Buckets: []float64{0.1, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"step"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proofloop_runs_total",
				Help: "Total number of finished runs by termination reason",
			},
			[]string{"reason"},
		),
		runIterations: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "proofloop_run_iterations",
				Help:    "Verification iterations used by finished runs",
				Buckets: []float64{0, 1, 2, 3, 5, 10},
			},
		),
	}
}

func (p *PipelineRecorder) ObserveStep(step, outcome string, d time.Duration) {
	p.stepsTotal.WithLabelValues(step, outcome).Inc()
	p.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (p *PipelineRecorder) ObserveRun(reason string, iterations int) {
	p.runsTotal.WithLabelValues(reason).Inc()
	p.runIterations.Observe(float64(iterations))
}

// NopPipeline discards everything.
type NopPipeline struct{}

func (NopPipeline) ObserveStep(string, string, time.Duration) {}

func (NopPipeline) ObserveRun(string, int) {}
