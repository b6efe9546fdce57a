// Package fusion combines semantic and lexical relevance into one hybrid score and orders
// documents by their terminal score.
package fusion

import (
	"fmt"
	"math"
	"slices"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
)

// DefaultAlpha weighs semantic and lexical evidence equally.
const DefaultAlpha = 0.5

// ValidateAlpha rejects weights outside [0, 1] and NaN.
func ValidateAlpha(alpha float64) error {
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return fmt.Errorf("alpha %v not in [0,1]: %w", alpha, domain.ErrInvalidArgument)
	}
	return nil
}

// Normalize divides every value by the maximum when the maximum is positive.
// Otherwise the values are returned unchanged. The input is never modified.
func Normalize(v []float64) []float64 {
	out := slices.Clone(v)
	if len(out) == 0 {
		return out
	}
	maxV := slices.Max(out)
	if maxV <= 0 {
		return out
	}
	for i := range out {
		out[i] /= maxV
	}
	return out
}

// Hybrid returns alpha*normalize(semantic) + (1-alpha)*normalize(lexical).
// A nil lexical slice means lexical scoring is unavailable: the raw semantic scores are returned.
func Hybrid(semantic, lexical []float64, alpha float64) ([]float64, error) {
	if err := ValidateAlpha(alpha); err != nil {
		return nil, err
	}
	if lexical == nil {
		return slices.Clone(semantic), nil
	}
	if len(semantic) != len(lexical) {
		return nil, fmt.Errorf("semantic has %d scores, lexical %d: %w",
			len(semantic), len(lexical), domain.ErrInvalidArgument)
	}

	ns, nl := Normalize(semantic), Normalize(lexical)
	out := make([]float64, len(ns))
	for i := range ns {
		out[i] = alpha*ns[i] + (1-alpha)*nl[i]
	}
	return out, nil
}

// MergeMax merges per-variant score lists element-wise by maximum.
// All lists must have the same length; nil is returned for no lists.
func MergeMax(lists [][]float64) []float64 {
	if len(lists) == 0 {
		return nil
	}
	out := slices.Clone(lists[0])
	for _, l := range lists[1:] {
		for i := range out {
			out[i] = max(out[i], l[i])
		}
	}
	return out
}

// Apply sets LexicalScore and HybridScore on copies of docs. A missing semantic score counts as 0.
// A nil lexical slice leaves LexicalScore unset and makes HybridScore equal the semantic score.
func Apply(docs []domain.Document, lexical []float64, alpha float64) ([]domain.Document, error) {
	semantic := make([]float64, len(docs))
	for i, d := range docs {
		semantic[i] = d.Semantic()
	}

	hybrid, err := Hybrid(semantic, lexical, alpha)
	if err != nil {
		return nil, err
	}

	out := domain.CloneDocuments(docs)
	for i := range out {
		if lexical != nil {
			out[i].LexicalScore = domain.Float(lexical[i])
		}
		out[i].HybridScore = domain.Float(hybrid[i])
	}
	return out, nil
}

// Sort orders docs by terminal score, highest first. Ties keep their input order.
func Sort(docs []domain.Document) {
	slices.SortStableFunc(docs, func(a, b domain.Document) int {
		sa, sb := a.TerminalScore(), b.TerminalScore()
		switch {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		}
		return 0
	})
}

// Truncate keeps the first topK documents. topK <= 0 keeps all.
func Truncate(docs []domain.Document, topK int) []domain.Document {
	if topK <= 0 || topK >= len(docs) {
		return docs
	}
	return docs[:topK]
}
