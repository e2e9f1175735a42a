package pipeline

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gamechar",
			Subsystem: "pipeline",
			Name:      "steps_total",
			Help:      "Pipeline steps executed, by step and outcome.",
		},
		[]string{"step", "outcome"},
	)
	stepSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gamechar",
			Subsystem: "pipeline",
			Name:      "step_duration_seconds",
			Help:      "Wall time of each pipeline step including the provider call.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"step"},
	)
	revocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gamechar",
			Subsystem: "pipeline",
			Name:      "staging_revocations_total",
			Help:      "Staging revocations attempted, by outcome.",
		},
		[]string{"outcome"},
	)
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gamechar",
			Subsystem: "pipeline",
			Name:      "deliveries_total",
			Help:      "Delivery attempts, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	mirrorFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gamechar",
			Subsystem: "pipeline",
			Name:      "job_mirror_failures_total",
			Help:      "Job record writes to the repository that failed.",
		},
	)
)

var registerMetricsOnce sync.Once

// RegisterMetrics registers the pipeline collectors with the default registry.
func RegisterMetrics() {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(stepsTotal, stepSeconds, revocationsTotal, deliveriesTotal, mirrorFailuresTotal)
	})
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
