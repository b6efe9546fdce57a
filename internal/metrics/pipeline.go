package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline Prometheus metrics.
var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Optimizer stage duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	StageDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_degraded_total",
			Help:      "Optimizer stages that fell back to a degraded result",
		},
		[]string{"stage"},
	)

	RerankChunkFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_chunk_failures_total",
			Help:      "Cross-encoder chunks that failed and left documents unscored",
		},
	)

	GeneratorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generator_requests_total",
			Help:      "Total number of text generation requests",
		},
		[]string{"provider", "model", "status"},
	)
)

var registerPipeline sync.Once

// RegisterPipelineMetrics adds the optimizer collectors to the default registry.
// Repeated calls are no-ops.
func RegisterPipelineMetrics() {
	registerPipeline.Do(func() {
		prometheus.MustRegister(
			StageDuration,
			StageDegradedTotal,
			RerankChunkFailuresTotal,
			GeneratorRequestsTotal,
		)
	})
}
