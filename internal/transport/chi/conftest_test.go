package chi

import (
	"context"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
	healthuc "github.com/devindrajit1998/ai-novaintel/internal/usecase/health"
	"github.com/devindrajit1998/ai-novaintel/internal/usecase/optimizer"
)

// --- mock optimizer ---

type mockOptimizer struct {
	resp     *optimizer.Response
	variants []domain.QueryVariant
	err      error
	panicMsg string
	lastReq  *optimizer.Request
	lastMax  *int
}

func (m *mockOptimizer) Optimize(ctx context.Context, req *optimizer.Request) (*optimizer.Response, error) {
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	m.lastReq = req
	domain.UsageFromContext(ctx).AddTokens(7)
	return m.resp, m.err
}

func (m *mockOptimizer) ExpandQuery(_ context.Context, _ string, maxExpansions *int) ([]domain.QueryVariant, error) {
	m.lastMax = maxExpansions
	return m.variants, m.err
}

// --- mock health ---

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- mock embedder ---

type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	domain.UsageFromContext(ctx).AddTokens(len(text))
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text)), 1}, TotalTokens: len(text)}, nil
}
