package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
)

const maxErrorBody = 4 << 10

// Config holds the cross-encoder endpoint settings.
type Config struct {
	// BaseURL of a text-embeddings-inference style server exposing POST /rerank.
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client implements domain.PairScorer against a /rerank endpoint.
// All pairs of one call must share a query; the endpoint scores one query against many texts.
type Client struct {
	http   *http.Client
	url    string
	set    bool
	model  string
	apiKey string
	logger *zap.Logger
}

type rerankRequest struct {
	Query    string   `json:"query"`
	Texts    []string `json:"texts"`
	Model    string   `json:"model,omitempty"`
	Truncate bool     `json:"truncate"`
}

type rerankItem struct {
	Index *int    `json:"index"`
	Score float64 `json:"score"`
}

// New creates a cross-encoder client.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		url:    strings.TrimRight(cfg.BaseURL, "/") + "/rerank",
		set:    cfg.BaseURL != "",
		model:  cfg.Model,
		apiKey: cfg.APIKey,
		logger: cfg.Logger,
	}
}

// Available reports whether an endpoint is configured.
func (c *Client) Available() bool {
	return c.set
}

// ScorePairs returns one score per pair in input order.
func (c *Client) ScorePairs(ctx context.Context, pairs []domain.Pair) ([]float64, error) {
	if !c.Available() {
		return nil, fmt.Errorf("cross-encoder: %w", domain.ErrProviderUnavailable)
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	query := pairs[0].Query
	texts := make([]string, len(pairs))
	for i, p := range pairs {
		if p.Query != query {
			return nil, fmt.Errorf("pairs must share one query: %w", domain.ErrInvalidArgument)
		}
		texts[i] = p.Text
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts, Model: c.model, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w: %w", domain.ErrProviderError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("rerank API error %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(msg)), domain.ErrProviderError)
	}

	var items []rerankItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w: %w", domain.ErrProviderContractViolation, err)
	}

	scores, err := placeScores(items, len(pairs))
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Pairs scored",
		zap.Int("pairs", len(pairs)),
		zap.Duration("duration", time.Since(start)),
	)
	return scores, nil
}

// placeScores orders the server's (index, score) items, which arrive sorted by score.
func placeScores(items []rerankItem, want int) ([]float64, error) {
	if len(items) != want {
		return nil, fmt.Errorf("requested %d scores, got %d: %w", want, len(items), domain.ErrProviderContractViolation)
	}
	scores := make([]float64, want)
	seen := make([]bool, want)
	for _, it := range items {
		if it.Index == nil || *it.Index < 0 || *it.Index >= want || seen[*it.Index] {
			return nil, fmt.Errorf("bad rerank item index: %w", domain.ErrProviderContractViolation)
		}
		seen[*it.Index] = true
		scores[*it.Index] = it.Score
	}
	return scores, nil
}
