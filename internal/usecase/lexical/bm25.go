package lexical

import "math"

// Params are the BM25Okapi parameters.
type Params struct {
	K1      float64
	B       float64
	Epsilon float64
}

// DefaultParams are the classic Okapi values.
func DefaultParams() Params {
	return Params{K1: 1.5, B: 0.75, Epsilon: 0.25}
}

// Scorer computes BM25Okapi scores over a per-call corpus.
type Scorer struct {
	params    Params
	tokenizer Tokenizer
}

// New creates a scorer. A nil tokenizer means whitespace tokenization.
func New(params Params, tokenizer Tokenizer) *Scorer {
	if tokenizer == nil {
		tokenizer = WhitespaceTokenizer{}
	}
	return &Scorer{params: params, tokenizer: tokenizer}
}

// Score returns one BM25 score per text, in input order. The texts are the whole corpus:
// document frequencies and average length come from them alone.
func (s *Scorer) Score(query string, texts []string) []float64 {
	scores := make([]float64, len(texts))
	if len(texts) == 0 {
		return scores
	}
	terms := s.tokenizer.Tokenize(query)
	if len(terms) == 0 {
		return scores
	}

	c := s.index(texts)
	if c.avgdl == 0 {
		return scores
	}

	k1, b := s.params.K1, s.params.B
	for _, term := range terms {
		idf := c.idf[term]
		if idf == 0 {
			continue
		}
		for i, freqs := range c.freqs {
			f := float64(freqs[term])
			if f == 0 {
				continue
			}
			norm := k1 * (1 - b + b*float64(c.lengths[i])/c.avgdl)
			scores[i] += idf * (f * (k1 + 1) / (f + norm))
		}
	}
	return scores
}

type corpus struct {
	freqs   []map[string]int
	lengths []int
	avgdl   float64
	idf     map[string]float64
}

func (s *Scorer) index(texts []string) corpus {
	c := corpus{
		freqs:   make([]map[string]int, len(texts)),
		lengths: make([]int, len(texts)),
		idf:     make(map[string]float64),
	}

	df := make(map[string]int)
	total := 0
	for i, text := range texts {
		tokens := s.tokenizer.Tokenize(text)
		freqs := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freqs[tok]++
		}
		for term := range freqs {
			df[term]++
		}
		c.freqs[i] = freqs
		c.lengths[i] = len(tokens)
		total += len(tokens)
	}
	n := float64(len(texts))
	c.avgdl = float64(total) / n

	if len(df) == 0 {
		return c
	}

	// idf = ln(N - n + 0.5) - ln(n + 0.5); negative values are floored to epsilon * mean idf
	var sum float64
	var negative []string
	for term, freq := range df {
		idf := math.Log(n-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		c.idf[term] = idf
		sum += idf
		if idf < 0 {
			negative = append(negative, term)
		}
	}
	eps := s.params.Epsilon * sum / float64(len(df))
	for _, term := range negative {
		c.idf[term] = eps
	}
	return c
}
