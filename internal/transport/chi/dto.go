package chi

import (
	"github.com/devindrajit1998/ai-novaintel/internal/domain"
	"github.com/devindrajit1998/ai-novaintel/internal/usecase/optimizer"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeBadRequest          = "bad_request"
	codeInvalidArgument     = "invalid_argument"
	codeUnauthorized        = "unauthorized"
	codeProviderUnavailable = "provider_unavailable"
	codeProviderError       = "provider_error"
	codeInternalError       = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CandidateDTO is one caller-supplied candidate.
type CandidateDTO struct {
	ID            string         `json:"id"`
	Text          string         `json:"text"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	SemanticScore *float64       `json:"semantic_score,omitempty"`
}

// OptimizeRequest is the body of POST /v1/optimize. Omitted options take the server settings.
type OptimizeRequest struct {
	Query         string         `json:"query"`
	Candidates    []CandidateDTO `json:"candidates"`
	Alpha         *float64       `json:"alpha,omitempty"`
	TopK          *int           `json:"top_k,omitempty"`
	MaxExpansions *int           `json:"max_expansions,omitempty"`
	UseExpansion  *bool          `json:"use_expansion,omitempty"`
	UseHybrid     *bool          `json:"use_hybrid,omitempty"`
	UseReranking  *bool          `json:"use_reranking,omitempty"`
	Retrieve      *bool          `json:"retrieve,omitempty"`
	RetrieveK     *int           `json:"retrieve_k,omitempty"`
}

// DocumentDTO is a ranked document with every score the pipeline produced.
type DocumentDTO struct {
	ID            string         `json:"id"`
	Text          string         `json:"text"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Score         float64        `json:"score"`
	SemanticScore *float64       `json:"semantic_score,omitempty"`
	LexicalScore  *float64       `json:"lexical_score,omitempty"`
	HybridScore   *float64       `json:"hybrid_score,omitempty"`
	RerankScore   *float64       `json:"rerank_score,omitempty"`
}

// VariantDTO is one query phrasing.
type VariantDTO struct {
	Text   string `json:"text"`
	Origin string `json:"origin"`
}

// StageDTO reports one pipeline stage.
type StageDTO struct {
	Stage      string  `json:"stage"`
	Ran        bool    `json:"ran"`
	Degraded   bool    `json:"degraded"`
	Reason     string  `json:"reason,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

// OptimizeResponse is the body of a successful POST /v1/optimize.
type OptimizeResponse struct {
	RequestID string        `json:"request_id"`
	Variants  []VariantDTO  `json:"variants"`
	Documents []DocumentDTO `json:"documents"`
	Stages    []StageDTO    `json:"stages"`
}

// ExpandRequest is the body of POST /v1/expand.
type ExpandRequest struct {
	Query         string `json:"query"`
	MaxExpansions *int   `json:"max_expansions,omitempty"`
}

// ExpandResponse lists the variants, original first.
type ExpandResponse struct {
	Variants []VariantDTO `json:"variants"`
}

// EmbeddingsRequest is the body of POST /v1/embeddings.
type EmbeddingsRequest struct {
	Input []string `json:"input"`
}

// EmbeddingDTO is one vector, in input order.
type EmbeddingDTO struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// EmbeddingsResponse is the body of a successful POST /v1/embeddings.
type EmbeddingsResponse struct {
	Data        []EmbeddingDTO `json:"data"`
	TotalTokens int            `json:"total_tokens"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ToDomain converts the wire request. Unset options stay nil.
func (r *OptimizeRequest) ToDomain() *optimizer.Request {
	candidates := make([]domain.Document, len(r.Candidates))
	for i, c := range r.Candidates {
		candidates[i] = domain.Document{
			ID:            c.ID,
			Text:          c.Text,
			Metadata:      c.Metadata,
			SemanticScore: c.SemanticScore,
		}
	}
	return &optimizer.Request{
		Query:         r.Query,
		Candidates:    candidates,
		Alpha:         r.Alpha,
		TopK:          r.TopK,
		MaxExpansions: r.MaxExpansions,
		UseExpansion:  r.UseExpansion,
		UseHybrid:     r.UseHybrid,
		UseReranking:  r.UseReranking,
		Retrieve:      r.Retrieve,
		RetrieveK:     r.RetrieveK,
	}
}

// NewOptimizeResponse renders a pipeline result for the wire.
func NewOptimizeResponse(resp *optimizer.Response) OptimizeResponse {
	out := OptimizeResponse{
		RequestID: resp.RequestID,
		Variants:  variantsFromDomain(resp.Variants),
		Documents: make([]DocumentDTO, len(resp.Documents)),
		Stages:    make([]StageDTO, len(resp.Stages)),
	}
	for i, d := range resp.Documents {
		out.Documents[i] = DocumentDTO{
			ID:            d.ID,
			Text:          d.Text,
			Metadata:      d.Metadata,
			Score:         d.TerminalScore(),
			SemanticScore: d.SemanticScore,
			LexicalScore:  d.LexicalScore,
			HybridScore:   d.HybridScore,
			RerankScore:   d.RerankScore,
		}
	}
	for i, s := range resp.Stages {
		out.Stages[i] = StageDTO{
			Stage:      string(s.Stage),
			Ran:        s.Ran,
			Degraded:   s.Degraded,
			Reason:     s.Reason,
			DurationMS: float64(s.Duration.Microseconds()) / 1000,
		}
	}
	return out
}

func variantsFromDomain(vs []domain.QueryVariant) []VariantDTO {
	out := make([]VariantDTO, len(vs))
	for i, v := range vs {
		out[i] = VariantDTO{Text: v.Text, Origin: string(v.Origin)}
	}
	return out
}
