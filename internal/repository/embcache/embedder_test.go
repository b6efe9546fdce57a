package embcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devindrajit1998/ai-novaintel/internal/db"
	"github.com/devindrajit1998/ai-novaintel/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)

	var setCalled bool
	ms.setFn = func(_ context.Context, key string, _ []byte) error {
		setCalled = true
		if key != Key("test text") {
			t.Errorf("unexpected key %q", key)
		}
		return nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10, got %d", result.TotalTokens)
	}
	if !setCalled {
		t.Fatal("expected SET to be called for cache put")
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("must not be called")}
	ce, ms := newTestCachedEmbedder(t, inner)

	cached := encodeEntry(newEntry("k", []float32{0.4, 0.5, 0.6}, time.Now()))
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	ctx, usage := domain.NewContextWithUsage(context.Background())
	result, err := ce.Embed(ctx, "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Embedding)
	}
	if result.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on cache hit, got %d", result.TotalTokens)
	}
	if tokens, used := usage.Snapshot(); tokens != 0 || !used {
		t.Fatalf("expected used usage with 0 tokens, got %d/%v", tokens, used)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.setFn = func(_ context.Context, _ string, _ []byte) error {
		t.Fatal("SET must not be called on inner error")
		return nil
	}

	_, err := ce.Embed(context.Background(), "test")
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
}

func TestEmbed_KeepsDomainSentinel(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrProviderContractViolation}
	ce, _ := newTestCachedEmbedder(t, inner)

	_, err := ce.Embed(context.Background(), "test")
	if !errors.Is(err, domain.ErrProviderContractViolation) {
		t.Fatalf("expected ErrProviderContractViolation, got %v", err)
	}
	if errors.Is(err, domain.ErrProviderError) {
		t.Fatal("contract violation must not be reclassified as provider error")
	}
}

func TestEmbed_EmptyVector(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{}}
	ce, ms := newMemoryCachedEmbedder(t, inner)

	_, err := ce.Embed(context.Background(), "test")
	if !errors.Is(err, domain.ErrProviderContractViolation) {
		t.Fatalf("expected ErrProviderContractViolation, got %v", err)
	}
	if ms.Len() != 0 {
		t.Fatalf("expected nothing cached, got %d entries", ms.Len())
	}
}

func TestEmbed_Unavailable(t *testing.T) {
	inner := &mockEmbedder{unavailable: true}
	ce, _ := newTestCachedEmbedder(t, inner)

	if ce.Available() {
		t.Fatal("expected decorator to report unavailable")
	}
	_, err := ce.Embed(context.Background(), "test")
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestEmbed_CorruptEntryIsMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte("garbage"), nil
	}

	result, err := ce.Embed(context.Background(), "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 2 {
		t.Fatalf("expected provider vector, got %v", result.Embedding)
	}
}

func TestEmbed_GetErrorIsMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, errors.New("connection reset")
	}
	ms.setFn = func(_ context.Context, _ string, _ []byte) error {
		return errors.New("connection reset")
	}

	if _, err := ce.Embed(context.Background(), "test"); err != nil {
		t.Fatalf("store failures must not fail the call: %v", err)
	}
}

func TestEmbed_CancelledCallerStillPopulatesCache(t *testing.T) {
	inner := &mockEmbedder{
		result:  domain.EmbeddingResult{Embedding: []float32{0.7, 0.8}},
		started: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	ce, ms := newMemoryCachedEmbedder(t, inner)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := ce.Embed(ctx, "slow text")
		errCh <- err
	}()

	<-inner.started
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(inner.block)
	ce.Wait()

	if ms.Len() != 1 {
		t.Fatalf("expected detached call to populate cache, got %d entries", ms.Len())
	}
	vec, ok := ce.Cache().Get(context.Background(), "slow text")
	if !ok || vec[0] != 0.7 {
		t.Fatalf("expected cached vector, got %v (ok=%v)", vec, ok)
	}
}

func TestEmbed_AlreadyCancelled(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, _ := newTestCachedEmbedder(t, inner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ce.Embed(ctx, "test")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBatchEmbed_AllMisses(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{TotalTokens: 5}}
	ce, ms := newMemoryCachedEmbedder(t, inner)

	texts := []string{"a", "bb", "ccc"}
	res, err := ce.BatchEmbed(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 1 {
		t.Fatalf("expected 1 batch call, got %d", inner.batchCalls)
	}
	for i, text := range texts {
		if res.Embeddings[i][0] != float32(len(text)) {
			t.Errorf("embedding %d out of order: %v", i, res.Embeddings[i])
		}
	}
	if res.TotalTokens != 15 {
		t.Errorf("expected TotalTokens=15, got %d", res.TotalTokens)
	}
	if ms.Len() != 3 {
		t.Errorf("expected 3 cached entries, got %d", ms.Len())
	}
}

func TestBatchEmbed_AllHits(t *testing.T) {
	inner := &mockEmbedder{}
	ce, _ := newMemoryCachedEmbedder(t, inner)
	ctx := context.Background()

	for _, text := range []string{"x", "yy"} {
		if err := ce.Cache().Set(ctx, text, []float32{9, float32(len(text))}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	res, err := ce.BatchEmbed(ctx, []string{"yy", "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 0 {
		t.Fatalf("expected no provider call, got %d", inner.batchCalls)
	}
	if res.Embeddings[0][1] != 2 || res.Embeddings[1][1] != 1 {
		t.Fatalf("unexpected embeddings: %v", res.Embeddings)
	}
	if res.TotalTokens != 0 {
		t.Fatalf("expected 0 tokens, got %d", res.TotalTokens)
	}
}

func TestBatchEmbed_MixedKeepsOrder(t *testing.T) {
	inner := &mockEmbedder{}
	ce, _ := newMemoryCachedEmbedder(t, inner)
	ctx := context.Background()

	if err := ce.Cache().Set(ctx, "hit", []float32{42, 0}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := ce.BatchEmbed(ctx, []string{"miss-one", "hit", "m2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.batchTexts) != 1 || len(inner.batchTexts[0]) != 2 {
		t.Fatalf("expected only misses sent, got %v", inner.batchTexts)
	}
	want := []float32{8, 42, 2}
	for i, w := range want {
		if res.Embeddings[i][0] != w {
			t.Errorf("position %d: expected %v, got %v", i, w, res.Embeddings[i][0])
		}
	}
}

func TestBatchEmbed_DeduplicatesMisses(t *testing.T) {
	inner := &mockEmbedder{}
	ce, _ := newMemoryCachedEmbedder(t, inner)

	res, err := ce.BatchEmbed(context.Background(), []string{"dup", "other", "dup"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := inner.batchTexts[0]; len(got) != 2 {
		t.Fatalf("expected deduplicated request, got %v", got)
	}
	if res.Embeddings[0][0] != 3 || res.Embeddings[2][0] != 3 {
		t.Fatalf("duplicate positions must share the vector: %v", res.Embeddings)
	}
	res.Embeddings[0][0] = -1
	if res.Embeddings[2][0] != 3 {
		t.Fatal("duplicate positions must not alias the same slice")
	}
}

func TestBatchEmbed_FailureCachesNothing(t *testing.T) {
	inner := &mockEmbedder{batchErr: errors.New("boom")}
	ce, ms := newMemoryCachedEmbedder(t, inner)

	_, err := ce.BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
	if ms.Len() != 0 {
		t.Fatalf("expected nothing cached, got %d", ms.Len())
	}
}

func TestBatchEmbed_CountMismatch(t *testing.T) {
	inner := &mockEmbedder{batchResult: domain.BatchEmbeddingResult{
		Embeddings: [][]float32{{1}},
	}}
	ce, ms := newMemoryCachedEmbedder(t, inner)

	_, err := ce.BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrProviderContractViolation) {
		t.Fatalf("expected ErrProviderContractViolation, got %v", err)
	}
	if ms.Len() != 0 {
		t.Fatalf("expected nothing cached, got %d", ms.Len())
	}
}

func TestBatchEmbed_Empty(t *testing.T) {
	inner := &mockEmbedder{}
	ce, _ := newTestCachedEmbedder(t, inner)

	res, err := ce.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 0 || inner.batchCalls != 0 {
		t.Fatalf("expected empty result and no calls, got %v / %d", res.Embeddings, inner.batchCalls)
	}
}

func TestBatchEmbed_UnavailableWithMisses(t *testing.T) {
	inner := &mockEmbedder{unavailable: true}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) { return nil, db.ErrKeyNotFound }

	_, err := ce.BatchEmbed(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestKey_Deterministic(t *testing.T) {
	if Key("same") != Key("same") {
		t.Fatal("expected identical keys for identical text")
	}
	if Key("a") == Key("b") {
		t.Fatal("expected different keys for different text")
	}
}

func TestWithDetachedTimeout(t *testing.T) {
	ce, _ := newMemoryCachedEmbedder(t, &mockEmbedder{})
	if ce.WithDetachedTimeout(0).detachedTimeout != DefaultDetachedTimeout {
		t.Fatal("non-positive timeout should be ignored")
	}
	if ce.WithDetachedTimeout(5*time.Second).detachedTimeout != 5*time.Second {
		t.Fatal("expected 5s detached timeout")
	}
}
