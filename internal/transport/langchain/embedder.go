package langchain

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
	"github.com/devindrajit1998/ai-novaintel/internal/metrics"
)

// Config holds the local provider settings.
type Config struct {
	// Host is the OpenAI-compatible base URL, e.g. http://localhost:11434/v1.
	Host string
	// Token defaults to "none" for hosts without authentication.
	Token    string
	Model    string
	Provider string
	Logger   *zap.Logger
}

func (c *Config) token() string {
	if c.Token == "" {
		return "none"
	}
	return c.Token
}

// Embedder implements domain.Embedder and domain.BatchEmbedder through langchaingo.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	provider string
	logger   *zap.Logger
}

// NewEmbedder creates an embedder for an OpenAI-compatible local host.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	if cfg.Host == "" || cfg.Model == "" {
		return nil, fmt.Errorf("langchain embedder: host and model are required: %w", domain.ErrInvalidArgument)
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.Host),
		openai.WithToken(cfg.token()),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create langchain client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create langchain embedder: %w", err)
	}

	return &Embedder{
		embedder: embedder,
		model:    cfg.Model,
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}, nil
}

// Available reports whether the client was built. Reachability is only known from real calls.
func (e *Embedder) Available() bool { return e.embedder != nil }

// Embed generates a vector embedding for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0]}, nil
}

// BatchEmbed generates embeddings for texts in input order. Local hosts report no token usage.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.fail("api_error")
		e.logger.Error("Failed to generate embeddings", zap.Int("count", len(texts)), zap.Error(err))
		return domain.BatchEmbeddingResult{}, fmt.Errorf("langchain embed: %w: %w", domain.ErrProviderError, err)
	}
	if len(vectors) != len(texts) {
		e.fail("contract_violation")
		return domain.BatchEmbeddingResult{}, fmt.Errorf("requested %d embeddings, got %d: %w",
			len(texts), len(vectors), domain.ErrProviderContractViolation)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, e.model).Observe(time.Since(start).Seconds())

	return domain.BatchEmbeddingResult{Embeddings: vectors}, nil
}

func (e *Embedder) fail(errorType string) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, errorType).Inc()
}
