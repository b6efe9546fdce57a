package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/devindrajit1998/ai-novaintel/internal/db"
)

// distanceAlias names the KNN distance in the reply; it is stripped from the returned fields.
const distanceAlias = "knn_distance"

const defaultVectorField = "vector"

// SearchKNN runs FT.SEARCH with a KNN clause, nearest first.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	args, err := knnArgs(q)
	if err != nil {
		return nil, err
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return parseSearchReply(raw, q.RawScores)
}

func knnArgs(q *db.KNNQuery) ([]string, error) {
	switch {
	case q.IndexName == "":
		return nil, errors.New("knn query: index name is required")
	case len(q.Vector) == 0:
		return nil, errors.New("knn query: vector is required")
	case q.K <= 0:
		return nil, fmt.Errorf("knn query: k must be positive, got %d", q.K)
	}

	field := q.VectorField
	if field == "" {
		field = defaultVectorField
	}
	filter := "*"
	if q.Filter != "" {
		filter = "(" + q.Filter + ")"
	}
	k := strconv.Itoa(q.K)

	return []string{
		q.IndexName,
		fmt.Sprintf("%s=>[KNN %s @%s $BLOB AS %s]", filter, k, field, distanceAlias),
		"SORTBY", distanceAlias,
		"LIMIT", "0", k,
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	}, nil
}

// parseSearchReply reads the RESP2 shape [total, key1, [f, v, ...], key2, [...], ...].
// Malformed entries are skipped.
func parseSearchReply(raw []rueidis.RedisMessage, rawScores bool) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse search total: %w", err)
	}

	res := &db.SearchResult{Total: int(total)}
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		pairs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{Key: key, Fields: fieldMap(pairs)}
		if d, ok := entry.Fields[distanceAlias]; ok {
			if dist, err := strconv.ParseFloat(d, 64); err == nil {
				entry.Score = similarity(dist, rawScores)
			}
			delete(entry.Fields, distanceAlias)
		}
		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}

// similarity maps a cosine distance in [0,2] onto [0,1].
func similarity(dist float64, raw bool) float64 {
	if raw {
		return dist
	}
	return min(1, max(0, 1-dist))
}

func fieldMap(pairs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for j := 0; j+1 < len(pairs); j += 2 {
		name, err := pairs[j].ToString()
		if err != nil {
			continue
		}
		if value, err := pairs[j+1].ToString(); err == nil {
			m[name] = value
		}
	}
	return m
}

// vectorToBytes encodes v as the little-endian FLOAT32 blob the index expects.
func vectorToBytes(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return string(buf)
}
