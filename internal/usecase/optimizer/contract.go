package optimizer

import (
	"context"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
	"github.com/devindrajit1998/ai-novaintel/internal/usecase/rerank"
)

// Expander produces query variants; variant 0 is the original query.
type Expander interface {
	Available() bool
	Variants(ctx context.Context, query string, maxExpansions int) []domain.QueryVariant
}

// LexicalScorer scores texts against a query over the given texts as corpus.
type LexicalScorer interface {
	Score(query string, texts []string) []float64
}

// Reranker reorders documents by cross-encoder relevance.
type Reranker interface {
	Available() bool
	Rerank(ctx context.Context, query string, docs []domain.Document, topK int) (rerank.Result, error)
}
