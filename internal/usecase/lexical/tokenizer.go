package lexical

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/registry"
)

// Tokenizer names accepted in configuration.
const (
	TokenizerWhitespace = "whitespace"
	TokenizerStandard   = "standard"
)

// Tokenizer splits text into scoring terms.
type Tokenizer interface {
	Tokenize(text string) []string
}

// WhitespaceTokenizer lower-cases and splits on whitespace. Punctuation stays attached.
type WhitespaceTokenizer struct{}

// Tokenize implements Tokenizer.
func (WhitespaceTokenizer) Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

type analyzer interface {
	Analyze(input []byte) analysis.TokenStream
}

// AnalyzerTokenizer runs the bleve standard analyzer: unicode word segmentation,
// lower case and English stop word removal.
type AnalyzerTokenizer struct {
	analyzer analyzer
}

// NewStandardTokenizer builds a tokenizer over the bleve standard analyzer.
func NewStandardTokenizer() (*AnalyzerTokenizer, error) {
	an, err := registry.NewCache().AnalyzerNamed(standard.Name)
	if err != nil {
		return nil, fmt.Errorf("load %s analyzer: %w", standard.Name, err)
	}
	return &AnalyzerTokenizer{analyzer: an}, nil
}

// Tokenize implements Tokenizer.
func (t *AnalyzerTokenizer) Tokenize(text string) []string {
	stream := t.analyzer.Analyze([]byte(text))
	out := make([]string, 0, len(stream))
	for _, tok := range stream {
		out = append(out, string(tok.Term))
	}
	return out
}

// NewTokenizer resolves a configured tokenizer name. Empty means whitespace.
func NewTokenizer(name string) (Tokenizer, error) {
	switch name {
	case "", TokenizerWhitespace:
		return WhitespaceTokenizer{}, nil
	case TokenizerStandard:
		return NewStandardTokenizer()
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", name)
	}
}
