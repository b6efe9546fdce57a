package expansion

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
)

const (
	// Temperature used for expansion completions.
	Temperature = 0.3
	// maxLineRunes drops lines of this length or longer; they are prose, not phrasings.
	maxLineRunes = 100
)

const promptTemplate = `Given the following query, generate %d alternative phrasings or related terms that would help find the same information.

Query: %s

Generate alternative phrasings that:
1. Use synonyms or related terms
2. Maintain the same intent
3. Are concise (1-5 words each)

Return only the alternative phrasings, one per line, without numbering or bullets.`

var listMarker = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+`)

// Service expands a query into alternative phrasings.
type Service struct {
	generator domain.TextGenerator
	logger    *zap.Logger
}

// New creates an expansion service. A nil generator disables expansion.
func New(generator domain.TextGenerator, logger *zap.Logger) *Service {
	return &Service{generator: generator, logger: logger}
}

// Available reports whether a generator is configured and available.
func (s *Service) Available() bool {
	return s.generator != nil && s.generator.Available()
}

// Expand returns the original query followed by at most maxExpansions alternatives.
// It never fails: any generator problem yields just the original query.
func (s *Service) Expand(ctx context.Context, query string, maxExpansions int) []string {
	if maxExpansions <= 0 || !s.Available() {
		return []string{query}
	}

	content, err := s.generator.Generate(ctx, Prompt(query, maxExpansions), Temperature)
	if err != nil {
		s.logger.Warn("Query expansion failed", zap.Error(err))
		return []string{query}
	}

	return append([]string{query}, ParseExpansions(content, query, maxExpansions)...)
}

// Variants wraps Expand with origins; variant 0 is always the original query.
func (s *Service) Variants(ctx context.Context, query string, maxExpansions int) []domain.QueryVariant {
	return ToVariants(s.Expand(ctx, query, maxExpansions))
}

// ToVariants tags the first text as original and the rest as expanded.
func ToVariants(texts []string) []domain.QueryVariant {
	out := make([]domain.QueryVariant, len(texts))
	for i, t := range texts {
		origin := domain.OriginExpanded
		if i == 0 {
			origin = domain.OriginOriginal
		}
		out[i] = domain.QueryVariant{Text: t, Origin: origin}
	}
	return out
}

// Prompt builds the expansion prompt.
func Prompt(query string, maxExpansions int) string {
	return fmt.Sprintf(promptTemplate, maxExpansions, query)
}

// ParseExpansions extracts up to limit phrasings from a completion, in provider order.
func ParseExpansions(content, query string, limit int) []string {
	var out []string
	seen := map[string]struct{}{strings.ToLower(strings.TrimSpace(query)): {}}

	for line := range strings.SplitSeq(content, "\n") {
		if len(out) == limit {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" || utf8.RuneCountInString(line) >= maxLineRunes {
			continue
		}
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
	}
	return out
}
