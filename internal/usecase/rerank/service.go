package rerank

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
	"github.com/devindrajit1998/ai-novaintel/internal/metrics"
	"github.com/devindrajit1998/ai-novaintel/internal/usecase/fusion"
)

// Defaults for chunking and parallelism.
const (
	DefaultChunkSize = 32
	DefaultWorkers   = 4
)

// Config tunes how pairs are split across scorer calls.
type Config struct {
	ChunkSize int
	Workers   int
}

// Result is a rerank outcome plus whether it was degraded.
type Result struct {
	Documents []domain.Document
	// Scored is the number of documents that received a rerank score.
	Scored int
	// FailedChunks counts chunks whose scoring call failed or returned unusable scores.
	FailedChunks int
}

// Service reorders documents by cross-encoder relevance.
type Service struct {
	scorer    domain.PairScorer
	pool      *ants.Pool
	chunkSize int
	logger    *zap.Logger
}

// New creates a reranker with its own bounded worker pool. Call Close to release it.
// A nil scorer makes the reranker unavailable.
func New(scorer domain.PairScorer, cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create rerank pool: %w", err)
	}
	return &Service{scorer: scorer, pool: pool, chunkSize: cfg.ChunkSize, logger: logger}, nil
}

// Close releases the worker pool.
func (s *Service) Close() {
	s.pool.Release()
}

// Available reports whether a scorer is configured and available.
func (s *Service) Available() bool {
	return s.scorer != nil && s.scorer.Available()
}

// Rerank returns copies of docs with RerankScore set, sorted by it (stable), cut to topK when
// topK > 0. Documents whose chunk failed keep no rerank score and sort by their prior score.
// When unavailable, or when every chunk fails, docs come back unchanged and unsorted.
func (s *Service) Rerank(ctx context.Context, query string, docs []domain.Document, topK int) (Result, error) {
	out := domain.CloneDocuments(docs)
	if len(out) == 0 || !s.Available() {
		return Result{Documents: fusion.Truncate(out, topK)}, nil
	}

	scores, failed, err := s.scoreChunks(ctx, query, out)
	if err != nil {
		return Result{}, err
	}

	scored := 0
	for i, sc := range scores {
		if sc == nil {
			continue
		}
		out[i].RerankScore = sc
		scored++
	}

	if scored == 0 {
		s.logger.Warn("All rerank chunks failed; keeping input order", zap.Int("chunks", failed))
		return Result{Documents: fusion.Truncate(out, topK), FailedChunks: failed}, nil
	}

	fusion.Sort(out)
	return Result{Documents: fusion.Truncate(out, topK), Scored: scored, FailedChunks: failed}, nil
}

// scoreChunks scores docs in chunks on the pool. A nil entry means no usable score.
func (s *Service) scoreChunks(ctx context.Context, query string, docs []domain.Document) ([]*float64, int, error) {
	scores := make([]*float64, len(docs))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	fail := func(offset, size int, err error) {
		metrics.RerankChunkFailuresTotal.Inc()
		s.logger.Warn("Rerank chunk failed",
			zap.Int("chunk_offset", offset),
			zap.Int("chunk_size", size),
			zap.Error(err),
		)
		mu.Lock()
		failed++
		mu.Unlock()
	}

	for offset := 0; offset < len(docs); offset += s.chunkSize {
		end := min(offset+s.chunkSize, len(docs))
		pairs := make([]domain.Pair, 0, end-offset)
		for _, d := range docs[offset:end] {
			pairs = append(pairs, domain.Pair{Query: query, Text: d.Text})
		}

		wg.Add(1)
		task := func() {
			defer wg.Done()
			res, err := s.scorer.ScorePairs(ctx, pairs)
			if err == nil && len(res) != len(pairs) {
				err = fmt.Errorf("requested %d scores, got %d: %w", len(pairs), len(res), domain.ErrProviderContractViolation)
			}
			if err != nil {
				fail(offset, len(pairs), err)
				return
			}
			bad := 0
			for i, v := range res {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					bad++
					continue
				}
				scores[offset+i] = domain.Float(v)
			}
			if bad > 0 {
				s.logger.Warn("Non-finite rerank scores dropped", zap.Int("chunk_offset", offset), zap.Int("count", bad))
			}
		}
		if err := s.pool.Submit(task); err != nil {
			wg.Done()
			fail(offset, len(pairs), err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, failed, fmt.Errorf("rerank: %w", err)
	}
	return scores, failed, nil
}
