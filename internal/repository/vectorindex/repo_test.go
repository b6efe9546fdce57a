package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/devindrajit1998/ai-novaintel/internal/db"
	"github.com/devindrajit1998/ai-novaintel/internal/domain"
)

func TestQuery_Success(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != "retrievald:docs:idx" {
			t.Errorf("unexpected index %q", q.IndexName)
		}
		if q.K != 2 {
			t.Errorf("expected K=2, got %d", q.K)
		}
		return &db.SearchResult{
			Total: 2,
			Entries: []db.SearchEntry{
				{Key: "retrievald:docs:a", Score: 0.9, Fields: map[string]string{
					"__content": "alpha", "lang": "en", "year": "2024", "knn_distance": "0.1",
				}},
				{Key: "retrievald:docs:b", Score: 0.7, Fields: map[string]string{"__content": "beta"}},
			},
		}, nil
	}

	hits, err := repo.Query(context.Background(), testVector(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "a" || hits[0].Text != "alpha" || hits[0].Score != 0.9 {
		t.Errorf("unexpected first hit: %+v", hits[0])
	}
	if hits[0].Metadata["lang"] != "en" || hits[0].Metadata["year"] != 2024.0 {
		t.Errorf("unexpected metadata: %v", hits[0].Metadata)
	}
	if _, ok := hits[0].Metadata["knn_distance"]; ok {
		t.Error("score field must not leak into metadata")
	}
	if hits[1].Metadata != nil {
		t.Errorf("expected nil metadata, got %v", hits[1].Metadata)
	}
}

func TestQuery_SkipsEntriesWithoutContent(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{{Key: "retrievald:docs:x"}}}, nil
	}

	hits, err := repo.Query(context.Background(), testVector(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %v", hits)
	}
}

func TestQuery_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	storeErr := &db.Error{Op: db.OpSearch, Err: errors.New("no such index")}
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return nil, storeErr
	}

	_, err := repo.Query(context.Background(), testVector(), 5)
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpSearch {
		t.Fatalf("expected wrapped db.Error, got %v", err)
	}
}

func TestQuery_Filter(t *testing.T) {
	ms := &mockStore{}
	repo := New(ms, Config{IndexName: "idx", Filter: "@lang:{en}"})

	var got string
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		got = q.Filter
		return nil, nil
	}

	if _, err := repo.Query(context.Background(), testVector(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "@lang:{en}" {
		t.Fatalf("expected filter passed through, got %q", got)
	}
}

func TestQuery_Unavailable(t *testing.T) {
	repo := New(nil, Config{IndexName: "idx"})
	if repo.Available() {
		t.Fatal("expected unavailable without store")
	}
	_, err := repo.Query(context.Background(), testVector(), 3)
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}

	if New(&mockStore{}, Config{}).Available() {
		t.Fatal("expected unavailable without index name")
	}
}

func TestQuery_NonPositiveTopK(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		t.Fatal("store must not be called")
		return nil, nil
	}
	hits, err := repo.Query(context.Background(), testVector(), 0)
	if err != nil || hits != nil {
		t.Fatalf("expected empty result, got %v %v", hits, err)
	}
}
