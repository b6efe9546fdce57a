package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
)

// Provider is one named member of a fallback chain.
type Provider struct {
	Name     string
	Embedder domain.Embedder
}

// Chain serves each call from the first available provider, in configured order.
// An error from the selected provider is returned as is; the next provider is not tried.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
}

// NewChain creates a fallback chain. Order is priority.
func NewChain(providers []Provider, logger *zap.Logger) *Chain {
	return &Chain{providers: providers, logger: logger}
}

// Available is true when any member is available.
func (c *Chain) Available() bool {
	_, ok := c.pick()
	return ok
}

func (c *Chain) pick() (Provider, bool) {
	for _, p := range c.providers {
		if domain.IsAvailable(p.Embedder) {
			return p, true
		}
	}
	return Provider{}, false
}

// Embed implements domain.Embedder.
func (c *Chain) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	p, ok := c.pick()
	if !ok {
		return domain.EmbeddingResult{}, fmt.Errorf("embedding chain: %w", domain.ErrProviderUnavailable)
	}
	res, err := p.Embedder.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("provider %s: %w", p.Name, err)
	}
	return res, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (c *Chain) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	p, ok := c.pick()
	if !ok {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embedding chain: %w", domain.ErrProviderUnavailable)
	}
	c.logger.Debug("Embedding provider selected", zap.String("provider", p.Name), zap.Int("texts", len(texts)))

	res, err := domain.BatchOf(ctx, p.Embedder, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("provider %s: %w", p.Name, err)
	}
	return res, nil
}

// HealthCheck checks the currently selected provider.
func (c *Chain) HealthCheck(ctx context.Context) error {
	p, ok := c.pick()
	if !ok {
		return fmt.Errorf("embedding chain: %w", domain.ErrProviderUnavailable)
	}
	if hc, ok := p.Embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("provider %s: %w", p.Name, err)
		}
	}
	return nil
}
