package domain

import "maps"

// Origin tells where a query variant came from.
type Origin string

const (
	// OriginOriginal marks the caller's query. It is always variant 0.
	OriginOriginal Origin = "original"
	// OriginExpanded marks a phrasing produced by query expansion.
	OriginExpanded Origin = "expanded"
)

// QueryVariant is one phrasing of the query used for scoring and retrieval.
type QueryVariant struct {
	Text   string
	Origin Origin
}

// Document is a candidate passage flowing through the pipeline.
// Stages only set their own score field; a nil score means the stage did not score it.
type Document struct {
	ID            string
	Text          string
	Metadata      map[string]any
	SemanticScore *float64
	LexicalScore  *float64
	HybridScore   *float64
	RerankScore   *float64
}

// Clone returns a copy that shares no mutable state with d.
func (d Document) Clone() Document {
	out := d
	if d.Metadata != nil {
		out.Metadata = maps.Clone(d.Metadata)
	}
	out.SemanticScore = clonePtr(d.SemanticScore)
	out.LexicalScore = clonePtr(d.LexicalScore)
	out.HybridScore = clonePtr(d.HybridScore)
	out.RerankScore = clonePtr(d.RerankScore)
	return out
}

// TerminalScore returns the score the document is ranked by:
// rerank, else hybrid, else semantic, else 0.
func (d Document) TerminalScore() float64 {
	switch {
	case d.RerankScore != nil:
		return *d.RerankScore
	case d.HybridScore != nil:
		return *d.HybridScore
	case d.SemanticScore != nil:
		return *d.SemanticScore
	}
	return 0
}

// PriorScore is the best score available before reranking: hybrid, else semantic, else 0.
func (d Document) PriorScore() float64 {
	switch {
	case d.HybridScore != nil:
		return *d.HybridScore
	case d.SemanticScore != nil:
		return *d.SemanticScore
	}
	return 0
}

// Semantic returns the semantic score, 0 when absent.
func (d Document) Semantic() float64 {
	if d.SemanticScore == nil {
		return 0
	}
	return *d.SemanticScore
}

// CloneDocuments deep-copies a candidate list.
func CloneDocuments(docs []Document) []Document {
	if docs == nil {
		return nil
	}
	out := make([]Document, len(docs))
	for i := range docs {
		out[i] = docs[i].Clone()
	}
	return out
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
