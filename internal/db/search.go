package db

// KNNQuery is a nearest-neighbour lookup against an FT vector index.
type KNNQuery struct {
	IndexName string
	// VectorField is the indexed vector attribute; empty means "vector".
	VectorField string
	// Filter is an optional FT pre-filter expression, e.g. "@lang:{en}".
	Filter string
	Vector []float32
	K      int
	// RawScores keeps the index distance instead of converting it to a cosine similarity.
	RawScores bool
}

// SearchResult is the parsed FT.SEARCH reply.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is one hit: the hash key, its similarity and its returned fields.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
