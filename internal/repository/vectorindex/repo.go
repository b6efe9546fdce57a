package vectorindex

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/devindrajit1998/ai-novaintel/internal/db"
	"github.com/devindrajit1998/ai-novaintel/internal/domain"
)

const (
	contentField = "__content"
	vectorField  = "__vector"
	scoreField   = "knn_distance"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Config selects the FT index and how hit keys map to document IDs.
type Config struct {
	IndexName string
	// KeyPrefix is stripped from hit keys to form document IDs.
	KeyPrefix string
	// Filter is an optional FT pre-filter expression applied to every query.
	Filter string
}

// Repo implements domain.VectorIndex over an FT.SEARCH capable store.
type Repo struct {
	store store
	cfg   Config
}

// New creates a vector index repository. A nil store makes the index unavailable.
func New(s store, cfg Config) *Repo {
	return &Repo{store: s, cfg: cfg}
}

// Available reports whether a store and an index are configured.
func (r *Repo) Available() bool {
	return r.store != nil && r.cfg.IndexName != ""
}

// Query returns up to topK nearest neighbours of vector, most similar first.
func (r *Repo) Query(ctx context.Context, vector []float32, topK int) ([]domain.Hit, error) {
	if !r.Available() {
		return nil, fmt.Errorf("vector index: %w", domain.ErrProviderUnavailable)
	}
	if topK <= 0 {
		return nil, nil
	}

	q := &db.KNNQuery{
		IndexName:   r.cfg.IndexName,
		VectorField: vectorField,
		Filter:      r.cfg.Filter,
		Vector:      vector,
		K:           topK,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w: %w", r.cfg.IndexName, domain.ErrProviderError, err)
	}

	return parseHits(sr, r.cfg.KeyPrefix), nil
}

// parseHits converts db.SearchResult into hits. Entries without content are skipped.
func parseHits(sr *db.SearchResult, prefix string) []domain.Hit {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	hits := make([]domain.Hit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		h := parseEntryFields(strings.TrimPrefix(entry.Key, prefix), entry)
		if h.Text == "" {
			continue
		}
		hits = append(hits, h)
	}
	return hits
}

// parseEntryFields parses a KNN entry from flat hash fields. Numeric-looking fields become float64 metadata.
func parseEntryFields(id string, entry db.SearchEntry) domain.Hit {
	h := domain.Hit{ID: id, Score: entry.Score}
	for k, v := range entry.Fields {
		switch k {
		case contentField:
			h.Text = v
		case vectorField, scoreField:
			// score handled by db layer via entry.Score
		default:
			if h.Metadata == nil {
				h.Metadata = make(map[string]any)
			}
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				h.Metadata[k] = f
			} else {
				h.Metadata[k] = v
			}
		}
	}
	return h
}
