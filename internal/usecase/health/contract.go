package health

import "context"

// DBPinger checks storage availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider reachability with a real round trip.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// Prober is a side-effect free availability probe (generator, reranker, vector index).
type Prober interface {
	Available() bool
}
