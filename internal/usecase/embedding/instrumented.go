package embedding

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
)

// DefaultMaxAPIBatchSize caps the texts sent to a provider in one request.
const DefaultMaxAPIBatchSize = 256

// InstrumentedEmbedder logs every provider call and splits large batches into provider-sized
// requests. Request counters and latency live in the transport adapters.
type InstrumentedEmbedder struct {
	inner  domain.Embedder
	logger *zap.Logger
}

// NewInstrumentedEmbedder wraps inner; provider and model tag every log line.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:  inner,
		logger: logger.With(zap.String("provider", provider), zap.String("model", model)),
	}
}

// Available proxies the inner probe.
func (p *InstrumentedEmbedder) Available() bool {
	return domain.IsAvailable(p.inner)
}

// HealthCheck proxies the inner health check when it has one.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// Embed implements domain.Embedder.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	res, err := p.inner.Embed(ctx, text)
	if err != nil {
		p.logger.Error("Embedding request failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.logger.Debug("Embedding request completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed implements domain.BatchEmbedder. Sub-batches run in order; the first failure
// fails the whole call.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	offset := 0
	for chunk := range slices.Chunk(texts, DefaultMaxAPIBatchSize) {
		res, err := domain.BatchOf(ctx, p.inner, chunk)
		if err != nil {
			p.logger.Error("Batch embedding request failed",
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		if len(res.Embeddings) != len(chunk) {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("chunk at %d: requested %d embeddings, got %d: %w",
				offset, len(chunk), len(res.Embeddings), domain.ErrProviderContractViolation)
		}
		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
		offset += len(chunk)
	}

	p.logger.Debug("Batch embedding completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}
