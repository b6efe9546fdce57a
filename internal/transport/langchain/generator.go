package langchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
	"github.com/devindrajit1998/ai-novaintel/internal/metrics"
)

// Generator implements domain.TextGenerator over any langchaingo llms.Model.
type Generator struct {
	client   llms.Model
	model    string
	provider string
	logger   *zap.Logger
}

// NewGenerator creates a chat generator for an OpenAI-compatible local host.
func NewGenerator(cfg *Config) (*Generator, error) {
	if cfg.Host == "" || cfg.Model == "" {
		return nil, fmt.Errorf("langchain generator: host and model are required: %w", domain.ErrInvalidArgument)
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.Host),
		openai.WithToken(cfg.token()),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create langchain client: %w", err)
	}

	return NewGeneratorFromModel(client, cfg.Model, cfg.Provider, cfg.Logger), nil
}

// NewGeneratorFromModel wraps an existing model.
func NewGeneratorFromModel(client llms.Model, model, provider string, logger *zap.Logger) *Generator {
	return &Generator{client: client, model: model, provider: provider, logger: logger}
}

// Available reports whether a model is attached.
func (g *Generator) Available() bool { return g.client != nil }

// Generate sends prompt as one human message and returns the first choice.
func (g *Generator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("langchain generator: %w", domain.ErrProviderUnavailable)
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}

	response, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(temperature))
	if err != nil {
		metrics.GeneratorRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
		g.logger.Error("Failed to generate content", zap.Error(err))
		return "", fmt.Errorf("langchain generate: %w: %w", domain.ErrProviderError, err)
	}
	if len(response.Choices) < 1 {
		metrics.GeneratorRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
		return "", fmt.Errorf("no choices returned: %w", domain.ErrProviderContractViolation)
	}

	metrics.GeneratorRequestsTotal.WithLabelValues(g.provider, g.model, "success").Inc()
	return strings.TrimSpace(response.Choices[0].Content), nil
}
