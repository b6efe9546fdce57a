package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "retrievald"

// Embedding metrics, labelled by the configured provider name and model. The openai and
// langchain adapters record calls; the cache records lookups.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "requests_total",
		Help:      "Provider embedding calls by outcome (success, error).",
	}, []string{"provider", "model", "status"})

	// Query embeddings are short; most calls land well under a second.
	EmbeddingRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "request_duration_seconds",
		Help:      "Provider embedding call latency.",
		Buckets:   prometheus.ExponentialBuckets(0.025, 2, 10),
	}, []string{"provider", "model"})

	EmbeddingTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "tokens_total",
		Help:      "Tokens billed by embedding providers, split into prompt and total.",
	}, []string{"provider", "model", "type"})

	EmbeddingErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "errors_total",
		Help:      "Failed embedding calls by error class.",
	}, []string{"provider", "model", "error_type"})

	EmbeddingCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "cache_lookups_total",
		Help:      "Embedding cache lookups by result (hit, miss).",
	}, []string{"result"})
)

var registerEmbedding sync.Once

// RegisterEmbeddingMetrics adds the embedding collectors to the default registry.
// Repeated calls are no-ops.
func RegisterEmbeddingMetrics() {
	registerEmbedding.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingCacheTotal,
		)
	})
}
