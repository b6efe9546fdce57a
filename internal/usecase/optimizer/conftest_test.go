package optimizer

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
	"github.com/devindrajit1998/ai-novaintel/internal/usecase/rerank"
)

// --- mock expander ---

type mockExpander struct {
	unavailable bool
	extra       []string
	calls       int
}

func (m *mockExpander) Available() bool { return !m.unavailable }

func (m *mockExpander) Variants(_ context.Context, query string, maxExpansions int) []domain.QueryVariant {
	m.calls++
	out := []domain.QueryVariant{{Text: query, Origin: domain.OriginOriginal}}
	for i, t := range m.extra {
		if i >= maxExpansions {
			break
		}
		out = append(out, domain.QueryVariant{Text: t, Origin: domain.OriginExpanded})
	}
	return out
}

// --- mock lexical scorer ---

// mockLexical returns fixed scores per query text.
type mockLexical struct {
	scores  map[string][]float64
	queries []string
}

func (m *mockLexical) Score(query string, texts []string) []float64 {
	m.queries = append(m.queries, query)
	if s, ok := m.scores[query]; ok {
		return s
	}
	return make([]float64, len(texts))
}

// --- mock reranker ---

type mockReranker struct {
	unavailable bool
	scores      map[string]float64
	failed      int
	err         error
	called      bool
}

func (m *mockReranker) Available() bool { return !m.unavailable }

func (m *mockReranker) Rerank(_ context.Context, _ string, docs []domain.Document, _ int) (rerank.Result, error) {
	m.called = true
	if m.err != nil {
		return rerank.Result{}, m.err
	}
	out := domain.CloneDocuments(docs)
	scored := 0
	for i := range out {
		if s, ok := m.scores[out[i].ID]; ok {
			out[i].RerankScore = domain.Float(s)
			scored++
		}
	}
	return rerank.Result{Documents: out, Scored: scored, FailedChunks: m.failed}, nil
}

// --- mock embedder ---

type mockEmbedder struct {
	unavailable bool
	err         error
	texts       []string
}

func (m *mockEmbedder) Available() bool { return !m.unavailable }

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text))}}, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	m.texts = append(m.texts, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(i), float32(len(t))}
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

// --- mock vector index ---

// mockIndex returns hits keyed by the first vector component, which is the variant position.
type mockIndex struct {
	mu          sync.Mutex
	unavailable bool
	hits        map[int][]domain.Hit
	errFor      map[int]error
	topKs       []int
}

func (m *mockIndex) Available() bool { return !m.unavailable }

func (m *mockIndex) Query(_ context.Context, vec []float32, topK int) ([]domain.Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topKs = append(m.topKs, topK)
	i := int(vec[0])
	if err := m.errFor[i]; err != nil {
		return nil, err
	}
	return m.hits[i], nil
}

var errBoom = errors.New("boom")

func ptr[T any](v T) *T { return &v }

func doc(id, text string, semantic float64) domain.Document {
	return domain.Document{ID: id, Text: text, SemanticScore: domain.Float(semantic)}
}

func newTestService(deps Deps, mutate ...func(*Settings)) *Service {
	s := DefaultSettings()
	for _, m := range mutate {
		m(&s)
	}
	return New(deps, s, zap.NewNop())
}

func ids(docs []domain.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func stageReport(t interface{ Fatalf(string, ...any) }, resp *Response, name Stage) StageReport {
	for _, s := range resp.Stages {
		if s.Stage == name {
			return s
		}
	}
	t.Fatalf("stage %s not reported", name)
	return StageReport{}
}
