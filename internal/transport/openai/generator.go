package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
	"github.com/devindrajit1998/ai-novaintel/internal/metrics"
)

// Generator is a domain.TextGenerator over the chat completions API.
type Generator struct {
	client    *openai.Client
	model     string
	user      string
	provider  string
	available bool
	logger    *zap.Logger
}

// NewGenerator creates a chat-completions text generator.
func NewGenerator(cfg *Config) *Generator {
	return &Generator{
		client:    newClient(cfg),
		model:     cfg.Model,
		user:      cfg.User,
		provider:  cfg.Provider,
		available: cfg.APIKey != "" && cfg.Model != "",
		logger:    cfg.Logger,
	}
}

// Available reports whether credentials and a model are configured.
func (g *Generator) Available() bool { return g.available }

// Generate sends prompt as a single user message and returns the first choice.
func (g *Generator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if !g.available {
		return "", fmt.Errorf("openai generator: %w", domain.ErrProviderUnavailable)
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: float32(temperature),
		User:        g.user,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		metrics.GeneratorRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
		return "", parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		metrics.GeneratorRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
		return "", fmt.Errorf("no choices in completion: %w", domain.ErrProviderContractViolation)
	}

	metrics.GeneratorRequestsTotal.WithLabelValues(g.provider, g.model, "success").Inc()
	g.logger.Debug("Completion generated",
		zap.String("model", g.model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
