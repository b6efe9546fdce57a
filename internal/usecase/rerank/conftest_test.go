package rerank

import (
	"context"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
)

// mockScorer scores a pair by scoreFn; failFn marks whole chunks as failed.
type mockScorer struct {
	mu          sync.Mutex
	unavailable bool
	scoreFn     func(p domain.Pair) float64
	failFn      func(pairs []domain.Pair) error
	calls       int
	chunkSizes  []int
}

func (m *mockScorer) Available() bool { return !m.unavailable }

func (m *mockScorer) ScorePairs(_ context.Context, pairs []domain.Pair) ([]float64, error) {
	m.mu.Lock()
	m.calls++
	m.chunkSizes = append(m.chunkSizes, len(pairs))
	m.mu.Unlock()

	if m.failFn != nil {
		if err := m.failFn(pairs); err != nil {
			return nil, err
		}
	}
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = m.scoreFn(p)
	}
	return out, nil
}

func newTestService(t *testing.T, scorer domain.PairScorer, chunkSize int) *Service {
	t.Helper()
	s, err := New(scorer, Config{ChunkSize: chunkSize, Workers: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// scoreByLength ranks longer texts higher.
func scoreByLength(p domain.Pair) float64 { return float64(len(p.Text)) }

func docs(texts ...string) []domain.Document {
	out := make([]domain.Document, len(texts))
	for i, text := range texts {
		out[i] = domain.Document{ID: strings.ToUpper(text[:1]) + text, Text: text, SemanticScore: domain.Float(0.5)}
	}
	return out
}

func ids(ds []domain.Document) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}
