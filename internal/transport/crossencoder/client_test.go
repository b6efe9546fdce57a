package crossencoder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(&Config{BaseURL: server.URL + "/", APIKey: "k", Logger: zap.NewNop()})
}

func pairs(query string, texts ...string) []domain.Pair {
	out := make([]domain.Pair, len(texts))
	for i, text := range texts {
		out[i] = domain.Pair{Query: query, Text: text}
	}
	return out
}

func TestScorePairs_OrdersByIndex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("unexpected auth %q", r.Header.Get("Authorization"))
		}
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Query != "q" || len(req.Texts) != 3 {
			t.Errorf("unexpected request %+v", req)
		}
		// sorted by score, as TEI does
		_, _ = w.Write([]byte(`[{"index":2,"score":0.9},{"index":0,"score":0.5},{"index":1,"score":-1.2}]`))
	})

	scores, err := c.ScorePairs(context.Background(), pairs("q", "a", "b", "c"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{0.5, -1.2, 0.9}
	for i, w := range want {
		if scores[i] != w {
			t.Errorf("score %d: expected %v, got %v", i, w, scores[i])
		}
	}
}

func TestScorePairs_CountMismatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"index":0,"score":0.5}]`))
	})

	_, err := c.ScorePairs(context.Background(), pairs("q", "a", "b"))
	if !errors.Is(err, domain.ErrProviderContractViolation) {
		t.Fatalf("expected ErrProviderContractViolation, got %v", err)
	}
}

func TestScorePairs_MissingIndex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"score":0.5}]`))
	})

	_, err := c.ScorePairs(context.Background(), pairs("q", "a"))
	if !errors.Is(err, domain.ErrProviderContractViolation) {
		t.Fatalf("expected ErrProviderContractViolation, got %v", err)
	}
}

func TestScorePairs_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	})

	_, err := c.ScorePairs(context.Background(), pairs("q", "a"))
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
}

func TestScorePairs_MixedQueries(t *testing.T) {
	c := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("server must not be called")
	})

	_, err := c.ScorePairs(context.Background(), []domain.Pair{{Query: "a", Text: "x"}, {Query: "b", Text: "y"}})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestScorePairs_Unavailable(t *testing.T) {
	c := New(&Config{Logger: zap.NewNop()})
	if c.Available() {
		t.Fatal("expected unavailable without base URL")
	}
	_, err := c.ScorePairs(context.Background(), pairs("q", "a"))
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
