package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
	"github.com/devindrajit1998/ai-novaintel/internal/usecase/optimizer"
)

func optimizeRetrievalTool() mcp.Tool {
	return mcp.Tool{
		Name: "optimize_retrieval",
		Description: "Rank candidate passages for a query: expands the query, optionally retrieves " +
			"more candidates, fuses semantic and BM25 scores and reranks with a cross-encoder",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "User query",
				},
				"candidates": map[string]any{
					"type":        "array",
					"description": "Candidate passages with optional semantic scores",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"id":             map[string]any{"type": "string"},
							"text":           map[string]any{"type": "string"},
							"semantic_score": map[string]any{"type": "number"},
							"metadata":       map[string]any{"type": "object"},
						},
						"required": []string{"id", "text"},
					},
				},
				"top_k": map[string]any{
					"type":        "integer",
					"description": "Number of documents to return, 0 returns all",
					"minimum":     0,
				},
				"alpha": map[string]any{
					"type":        "number",
					"description": "Semantic weight in the hybrid score",
					"minimum":     0,
					"maximum":     1,
				},
				"max_expansions": map[string]any{"type": "integer", "minimum": 0},
				"use_expansion":  map[string]any{"type": "boolean"},
				"use_hybrid":     map[string]any{"type": "boolean"},
				"use_reranking":  map[string]any{"type": "boolean"},
				"retrieve": map[string]any{
					"type":        "boolean",
					"description": "Also fetch candidates from the vector index",
				},
				"retrieve_k": map[string]any{"type": "integer", "minimum": 0},
			},
			Required: []string{"query"},
		},
	}
}

func expandQueryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "expand_query",
		Description: "Generate alternative phrasings of a query; the original query is always first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "User query",
				},
				"max_expansions": map[string]any{
					"type":        "integer",
					"description": "Maximum number of additional phrasings",
					"minimum":     0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// optimizeArgs mirrors the optimize_retrieval input schema.
type optimizeArgs struct {
	Query      string `json:"query"`
	Candidates []struct {
		ID            string         `json:"id"`
		Text          string         `json:"text"`
		SemanticScore *float64       `json:"semantic_score"`
		Metadata      map[string]any `json:"metadata"`
	} `json:"candidates"`
	TopK          *int     `json:"top_k"`
	Alpha         *float64 `json:"alpha"`
	MaxExpansions *int     `json:"max_expansions"`
	UseExpansion  *bool    `json:"use_expansion"`
	UseHybrid     *bool    `json:"use_hybrid"`
	UseReranking  *bool    `json:"use_reranking"`
	Retrieve      *bool    `json:"retrieve"`
	RetrieveK     *int     `json:"retrieve_k"`
}

type expandArgs struct {
	Query         string `json:"query"`
	MaxExpansions *int   `json:"max_expansions"`
}

func (s *Server) handleOptimizeRetrieval(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args optimizeArgs
	if err := bindArguments(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := &optimizer.Request{
		Query:         args.Query,
		Candidates:    make([]domain.Document, len(args.Candidates)),
		Alpha:         args.Alpha,
		TopK:          args.TopK,
		MaxExpansions: args.MaxExpansions,
		UseExpansion:  args.UseExpansion,
		UseHybrid:     args.UseHybrid,
		UseReranking:  args.UseReranking,
		Retrieve:      args.Retrieve,
		RetrieveK:     args.RetrieveK,
	}
	for i, c := range args.Candidates {
		req.Candidates[i] = domain.Document{
			ID:            c.ID,
			Text:          c.Text,
			Metadata:      c.Metadata,
			SemanticScore: c.SemanticScore,
		}
	}

	resp, err := s.optimizer.Optimize(ctx, req)
	if err != nil {
		return s.toolError("optimize_retrieval", err), nil
	}

	docs := make([]map[string]any, len(resp.Documents))
	for i, d := range resp.Documents {
		doc := map[string]any{
			"id":    d.ID,
			"text":  d.Text,
			"score": d.TerminalScore(),
		}
		putScore(doc, "semantic_score", d.SemanticScore)
		putScore(doc, "lexical_score", d.LexicalScore)
		putScore(doc, "hybrid_score", d.HybridScore)
		putScore(doc, "rerank_score", d.RerankScore)
		if len(d.Metadata) > 0 {
			doc["metadata"] = d.Metadata
		}
		docs[i] = doc
	}

	var degraded []string
	for _, st := range resp.Stages {
		if st.Degraded {
			degraded = append(degraded, fmt.Sprintf("%s: %s", st.Stage, st.Reason))
		}
	}

	result := map[string]any{
		"request_id": resp.RequestID,
		"variants":   variantTexts(resp.Variants),
		"documents":  docs,
	}
	if len(degraded) > 0 {
		result["degraded"] = degraded
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

func (s *Server) handleExpandQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args expandArgs
	if err := bindArguments(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	variants, err := s.optimizer.ExpandQuery(ctx, args.Query, args.MaxExpansions)
	if err != nil {
		return s.toolError("expand_query", err), nil
	}
	return mcp.NewToolResultText(formatJSON(map[string]any{
		"variants": variantTexts(variants),
	})), nil
}

// toolError reports validation failures verbatim and hides everything else.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	if errors.Is(err, domain.ErrInvalidArgument) {
		return mcp.NewToolResultError(err.Error())
	}
	s.logger.Error("Tool failed", zap.String("tool", tool), zap.Error(err))
	return mcp.NewToolResultError("internal error")
}

// bindArguments decodes the tool arguments into v through JSON.
func bindArguments(request mcp.CallToolRequest, v any) error {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return errors.New("invalid arguments")
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func variantTexts(vs []domain.QueryVariant) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Text
	}
	return out
}

func putScore(m map[string]any, key string, v *float64) {
	if v != nil {
		m[key] = *v
	}
}

func formatJSON(data map[string]any) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(b)
}
