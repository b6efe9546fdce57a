package embcache

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/db"
	"github.com/devindrajit1998/ai-novaintel/internal/domain"
)

type mockEmbedder struct {
	mu          sync.Mutex
	result      domain.EmbeddingResult
	err         error
	batchResult domain.BatchEmbeddingResult
	batchErr    error
	batchCalls  int
	batchTexts  [][]string
	unavailable bool
	// started receives once the provider call has begun; block holds it until closed.
	started chan struct{}
	block   chan struct{}
}

func (m *mockEmbedder) Available() bool { return !m.unavailable }

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	return m.result, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	m.batchCalls++
	m.batchTexts = append(m.batchTexts, append([]string(nil), texts...))
	m.mu.Unlock()

	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	if m.batchResult.Embeddings != nil {
		return m.batchResult, nil
	}
	// one distinct vector per text: first component is its length
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = []float32{float32(len(text)), 1}
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: m.result.PromptTokens * len(texts),
		TotalTokens:  m.result.TotalTokens * len(texts),
	}, nil
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return nil
}

func newTestCachedEmbedder(t *testing.T, inner *mockEmbedder) (*CachedEmbedder, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ce := New(inner, ms, nil, zap.NewNop())
	return ce, ms
}

func newMemoryCachedEmbedder(t *testing.T, inner *mockEmbedder) (*CachedEmbedder, *MemoryStore) {
	t.Helper()
	ms := NewMemoryStore()
	return New(inner, ms, nil, zap.NewNop()), ms
}
