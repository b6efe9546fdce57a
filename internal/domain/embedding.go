package domain

import (
	"context"
	"fmt"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in one call. The result has the same length and
// order as the input, or the call fails as a whole.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies provider reachability with a real round trip.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is one vector plus the tokens the provider billed for it.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds one vector per input text and the summed token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

func (b *BatchEmbeddingResult) add(i int, r EmbeddingResult) {
	b.Embeddings[i] = r.Embedding
	b.PromptTokens += r.PromptTokens
	b.TotalTokens += r.TotalTokens
}

// BatchFallback embeds texts one at a time. The first failure aborts the batch.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	out := BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("embed text %d of %d: %w", i, len(texts), err)
		}
		out.add(i, res)
	}
	return out, nil
}

// BatchOf embeds texts through the native batch call when e has one.
func BatchOf(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if be, ok := e.(BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts) //nolint:wrapcheck // callers wrap
	}
	return BatchFallback(ctx, e, texts)
}

// IsAvailable reports whether e can serve calls. Values without a probe count as available
// unless nil.
func IsAvailable(e any) bool {
	if a, ok := e.(Availability); ok {
		return a.Available()
	}
	return e != nil
}

// InstructionEmbedder prefixes every query with a fixed instruction, as asymmetric embedding
// models expect ("query: ", "Represent this question for retrieval: ").
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder wraps inner.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Available proxies the inner probe.
func (e *InstructionEmbedder) Available() bool {
	return IsAvailable(e.inner)
}

func (e *InstructionEmbedder) prefix(text string) string {
	return e.instruction + text
}

// Embed implements Embedder.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := e.inner.Embed(ctx, e.prefix(text))
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("embed with instruction: %w", err)
	}
	return res, nil
}

// BatchEmbed implements BatchEmbedder over whatever batching inner supports.
func (e *InstructionEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = e.prefix(t)
	}
	res, err := BatchOf(ctx, e.inner, prefixed)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("batch embed with instruction: %w", err)
	}
	return res, nil
}
