package embcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
)

// DefaultDetachedTimeout bounds a provider call that outlives its caller.
const DefaultDetachedTimeout = 60 * time.Second

// CachedEmbedder is the read-through, write-through caching decorator for an embedding provider.
//
// Provider calls run detached from the caller's cancellation: when the caller gives up, the call
// still finishes and fills the cache, and the caller gets its context error.
type CachedEmbedder struct {
	inner           domain.Embedder
	cache           *Cache
	logger          *zap.Logger
	detachedTimeout time.Duration
	inflight        sync.WaitGroup
}

// New creates a caching decorator over s.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Embedder,
	s store,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		inner:           inner,
		cache:           NewCache(s, cacheTotal, logger),
		logger:          logger,
		detachedTimeout: DefaultDetachedTimeout,
	}
}

// WithDetachedTimeout overrides DefaultDetachedTimeout. Non-positive values are ignored.
func (c *CachedEmbedder) WithDetachedTimeout(d time.Duration) *CachedEmbedder {
	if d > 0 {
		c.detachedTimeout = d
	}
	return c
}

// Cache exposes the underlying cache.
func (c *CachedEmbedder) Cache() *Cache { return c.cache }

// Available proxies the provider probe.
func (c *CachedEmbedder) Available() bool {
	return domain.IsAvailable(c.inner)
}

// HealthCheck proxies the provider health check when it has one.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// Wait blocks until detached provider calls have finished.
func (c *CachedEmbedder) Wait() { c.inflight.Wait() }

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
// Cache miss: full EmbeddingResult from inner.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	usage := domain.UsageFromContext(ctx)

	if vec, ok := c.cache.Get(ctx, text); ok {
		usage.AddTokens(0)
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	if !c.Available() {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", domain.ErrProviderUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	result, err := detach(ctx, c, func(dctx context.Context) (domain.EmbeddingResult, error) {
		res, err := c.inner.Embed(dctx, text)
		if err != nil {
			return domain.EmbeddingResult{}, providerError(err)
		}
		if len(res.Embedding) == 0 {
			return domain.EmbeddingResult{}, fmt.Errorf("empty vector: %w", domain.ErrProviderContractViolation)
		}
		c.cache.put(dctx, text, res.Embedding)
		return res, nil
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	usage.AddTokens(result.TotalTokens)
	return result, nil
}

// BatchEmbed resolves cache hits first and sends only the misses (deduplicated) to the
// provider in one call. Results are reassembled by original index. The provider part is
// all-or-nothing: on failure nothing from that call is cached.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	usage := domain.UsageFromContext(ctx)

	out := make([][]float32, len(texts))
	var misses []string
	positions := make(map[string][]int)

	for i, text := range texts {
		if pos, seen := positions[text]; seen {
			positions[text] = append(pos, i)
			continue
		}
		if vec, ok := c.cache.Get(ctx, text); ok {
			out[i] = vec
			// later duplicates of a hit copy from out[i]
			positions[text] = []int{i}
			continue
		}
		positions[text] = []int{i}
		misses = append(misses, text)
	}

	if len(misses) == 0 {
		fillDuplicates(out, texts, positions)
		usage.AddTokens(0)
		return domain.BatchEmbeddingResult{Embeddings: out}, nil
	}

	if !c.Available() {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", domain.ErrProviderUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}

	res, err := detach(ctx, c, func(dctx context.Context) (domain.BatchEmbeddingResult, error) {
		res, err := domain.BatchOf(dctx, c.inner, misses)
		if err != nil {
			return domain.BatchEmbeddingResult{}, providerError(err)
		}
		if len(res.Embeddings) != len(misses) {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("requested %d embeddings, got %d: %w",
				len(misses), len(res.Embeddings), domain.ErrProviderContractViolation)
		}
		for i, vec := range res.Embeddings {
			if len(vec) == 0 {
				return domain.BatchEmbeddingResult{}, fmt.Errorf("empty vector at %d: %w",
					i, domain.ErrProviderContractViolation)
			}
		}
		for i, text := range misses {
			c.cache.put(dctx, text, res.Embeddings[i])
		}
		return res, nil
	})
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}

	for i, text := range misses {
		out[positions[text][0]] = res.Embeddings[i]
	}
	fillDuplicates(out, texts, positions)

	usage.AddTokens(res.TotalTokens)
	return domain.BatchEmbeddingResult{
		Embeddings:   out,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// fillDuplicates copies the first occurrence's vector into every later position of the same text.
func fillDuplicates(out [][]float32, texts []string, positions map[string][]int) {
	for _, text := range texts {
		pos := positions[text]
		for _, p := range pos[1:] {
			out[p] = cloneVector(out[pos[0]])
		}
		positions[text] = pos[:1]
	}
}

// detach runs call on a context that ignores the caller's cancellation but keeps its values.
func detach[T any](ctx context.Context, c *CachedEmbedder, call func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.detachedTimeout)
		defer cancel()
		v, err := call(dctx)
		done <- outcome{val: v, err: err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-ctx.Done():
		c.logger.Debug("Caller left before embedding finished; result will still be cached",
			zap.Error(ctx.Err()))
		var zero T
		return zero, ctx.Err()
	}
}

// providerError keeps pipeline sentinels and classifies everything else as ErrProviderError.
func providerError(err error) error {
	for _, sentinel := range []error{
		domain.ErrProviderError,
		domain.ErrProviderContractViolation,
		domain.ErrProviderUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrProviderError, err)
}
