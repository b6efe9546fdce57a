package domain

import "context"

// KeyPrefix namespaces every key this service writes to a shared store.
var KeyPrefix = "retrievald:"

// Availability is a side-effect free capability probe.
type Availability interface {
	Available() bool
}

// TextGenerator turns a prompt into text. Used by query expansion.
type TextGenerator interface {
	Availability
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Pair is one (query, passage) input to a cross-encoder.
type Pair struct {
	Query string
	Text  string
}

// PairScorer returns one relevance score per pair, in input order.
type PairScorer interface {
	Availability
	ScorePairs(ctx context.Context, pairs []Pair) ([]float64, error)
}

// Hit is a nearest-neighbour result from the vector index.
type Hit struct {
	ID       string
	Text     string
	Score    float64
	Metadata map[string]any
}

// VectorIndex is the external nearest-neighbour store.
type VectorIndex interface {
	Availability
	Query(ctx context.Context, vector []float32, topK int) ([]Hit, error)
}
