package embedding

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
)

func TestChain_FirstAvailableServes(t *testing.T) {
	primary := &mockEmbedder{unavailable: true, result: domain.EmbeddingResult{Embedding: []float32{1}}}
	secondary := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{2}}}
	c := NewChain([]Provider{{Name: "primary", Embedder: primary}, {Name: "secondary", Embedder: secondary}}, zap.NewNop())

	res, err := c.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embedding[0] != 2 {
		t.Fatalf("expected secondary vector, got %v", res.Embedding)
	}
	if !c.Available() {
		t.Fatal("expected chain available")
	}
}

func TestChain_NoRetryOnError(t *testing.T) {
	primary := &mockEmbedder{batchErr: domain.ErrProviderError}
	secondary := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{2}}}
	c := NewChain([]Provider{{Name: "primary", Embedder: primary}, {Name: "secondary", Embedder: secondary}}, zap.NewNop())

	_, err := c.BatchEmbed(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
	if secondary.batchCalls != 0 {
		t.Fatal("secondary must not be tried after a failure")
	}
}

func TestChain_NoneAvailable(t *testing.T) {
	c := NewChain([]Provider{{Name: "p", Embedder: &mockEmbedder{unavailable: true}}}, zap.NewNop())

	if c.Available() {
		t.Fatal("expected chain unavailable")
	}
	if _, err := c.Embed(context.Background(), "q"); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if _, err := c.BatchEmbed(context.Background(), []string{"q"}); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestChain_PlainEmbedderCountsAsAvailable(t *testing.T) {
	plain := &plainMockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{3}}}
	c := NewChain([]Provider{{Name: "plain", Embedder: plain}}, zap.NewNop())

	res, err := c.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || plain.calls != 2 {
		t.Fatalf("expected per-text fallback, got %v (calls=%d)", res.Embeddings, plain.calls)
	}
}
