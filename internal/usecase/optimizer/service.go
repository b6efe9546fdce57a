package optimizer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
	"github.com/devindrajit1998/ai-novaintel/internal/logger"
	"github.com/devindrajit1998/ai-novaintel/internal/metrics"
	"github.com/devindrajit1998/ai-novaintel/internal/usecase/fusion"
)

// Service runs the retrieval optimization pipeline:
// expanding, retrieving, lexical scoring, fusing, reranking, truncating.
type Service struct {
	expander Expander
	lexical  LexicalScorer
	reranker Reranker
	embedder domain.Embedder
	index    domain.VectorIndex
	settings atomic.Pointer[Settings]
	logger   *zap.Logger
}

// Deps are the pipeline collaborators. Embedder and Index are optional; without them
// retrieval is skipped.
type Deps struct {
	Expander Expander
	Lexical  LexicalScorer
	Reranker Reranker
	Embedder domain.Embedder
	Index    domain.VectorIndex
}

// New creates an optimizer with the given starting settings.
func New(deps Deps, settings Settings, logger *zap.Logger) *Service {
	s := &Service{
		expander: deps.Expander,
		lexical:  deps.Lexical,
		reranker: deps.Reranker,
		embedder: deps.Embedder,
		index:    deps.Index,
		logger:   logger,
	}
	s.settings.Store(&settings)
	return s
}

// Settings returns the live settings.
func (s *Service) Settings() Settings {
	return *s.settings.Load()
}

// UpdateSettings swaps the live settings. In-flight requests keep the settings they started with.
func (s *Service) UpdateSettings(settings Settings) {
	s.settings.Store(&settings)
}

// ExpandQuery runs only the expansion stage.
func (s *Service) ExpandQuery(ctx context.Context, query string, maxExpansions *int) ([]domain.QueryVariant, error) {
	r := (&Request{Query: query, MaxExpansions: maxExpansions}).resolve(s.Settings())
	if err := validate(r, nil); err != nil {
		return nil, err
	}
	variants, _ := s.expand(ctx, r.query, true, r.MaxExpansions)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("expand query: %w", err)
	}
	return variants, nil
}

// Optimize runs the full pipeline. Only invalid input and cancellation fail the call;
// every other problem degrades the affected stage and is reported in Response.Stages.
func (s *Service) Optimize(ctx context.Context, req *Request) (*Response, error) {
	r := req.resolve(s.Settings())
	if err := validate(r, req.Candidates); err != nil {
		return nil, err
	}

	resp := &Response{RequestID: uuid.NewString()}
	log := logger.FromContextOr(ctx, s.logger).With(zap.String("optimize_id", resp.RequestID))
	run := &pipelineRun{resp: resp, log: log}

	// Expanding
	run.stage(StageExpanding, func() stageOutcome {
		var out stageOutcome
		resp.Variants, out = s.expand(ctx, r.query, r.UseExpansion, r.MaxExpansions)
		return out
	})
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}

	// Retrieving
	docs := domain.CloneDocuments(req.Candidates)
	var retrieveErr error
	run.stage(StageRetrieving, func() stageOutcome {
		var out stageOutcome
		docs, out, retrieveErr = s.retrieve(ctx, r, resp.Variants, docs)
		return out
	})
	if retrieveErr != nil {
		return nil, retrieveErr
	}

	// LexicalScoring
	var lexical []float64
	run.stage(StageLexicalScoring, func() stageOutcome {
		if !r.UseHybrid {
			return skipped("disabled")
		}
		if s.lexical == nil {
			return degraded("lexical scorer not configured")
		}
		lexical = s.scoreLexical(resp.Variants, docs)
		return ran()
	})

	// Fusing
	var fuseErr error
	run.stage(StageFusing, func() stageOutcome {
		var fused []domain.Document
		fused, fuseErr = fusion.Apply(docs, lexical, r.Alpha)
		if fuseErr != nil {
			return degraded(fuseErr.Error())
		}
		docs = fused
		return ran()
	})
	if fuseErr != nil {
		return nil, fuseErr
	}

	// Reranking
	var rerankErr error
	run.stage(StageReranking, func() stageOutcome {
		var out stageOutcome
		docs, out, rerankErr = s.rerank(ctx, r, docs)
		return out
	})
	if rerankErr != nil {
		return nil, rerankErr
	}

	// Truncating
	run.stage(StageTruncating, func() stageOutcome {
		fusion.Sort(docs)
		docs = fusion.Truncate(docs, r.TopK)
		return ran()
	})

	resp.Documents = docs
	log.Debug("Optimization completed",
		zap.Int("variants", len(resp.Variants)),
		zap.Int("candidates", len(req.Candidates)),
		zap.Int("documents", len(docs)),
	)
	return resp, nil
}

func (s *Service) expand(
	ctx context.Context, query string, enabled bool, maxExpansions int,
) ([]domain.QueryVariant, stageOutcome) {
	original := []domain.QueryVariant{{Text: query, Origin: domain.OriginOriginal}}
	switch {
	case !enabled:
		return original, skipped("disabled")
	case maxExpansions == 0:
		return original, skipped("max_expansions is 0")
	case s.expander == nil || !s.expander.Available():
		return original, degraded("generator unavailable")
	}
	return s.expander.Variants(ctx, query, maxExpansions), ran()
}

// retrieve embeds every variant in one batch and queries the index per variant concurrently.
// New hits are appended after the caller's candidates; duplicates keep the higher semantic score.
func (s *Service) retrieve(
	ctx context.Context, r resolved, variants []domain.QueryVariant, docs []domain.Document,
) ([]domain.Document, stageOutcome, error) {
	switch {
	case !r.Retrieve:
		return docs, skipped("disabled"), nil
	case r.RetrieveK == 0:
		return docs, skipped("retrieve_k is 0"), nil
	case s.index == nil || !s.index.Available():
		return docs, degraded("vector index unavailable"), nil
	case !domain.IsAvailable(s.embedder):
		return docs, degraded("embedder unavailable"), nil
	}

	texts := make([]string, len(variants))
	for i, v := range variants {
		texts[i] = v.Text
	}
	emb, err := domain.BatchOf(ctx, s.embedder, texts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, stageOutcome{}, fmt.Errorf("optimize: %w", ctx.Err())
		}
		return docs, degraded("embed variants: " + err.Error()), nil
	}
	if len(emb.Embeddings) != len(texts) {
		return docs, degraded("embed variants: count mismatch"), nil
	}

	hits := make([][]domain.Hit, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	for i, vec := range emb.Embeddings {
		g.Go(func() error {
			h, err := s.index.Query(gctx, vec, r.RetrieveK)
			if err != nil {
				return fmt.Errorf("query index for variant %d: %w", i, err)
			}
			hits[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, stageOutcome{}, fmt.Errorf("optimize: %w", ctx.Err())
		}
		return docs, degraded(err.Error()), nil
	}

	return mergeHits(docs, hits), ran(), nil
}

// mergeHits merges retrieved hits into docs by ID. First-seen position wins; the semantic
// score is the maximum over all occurrences.
func mergeHits(docs []domain.Document, hits [][]domain.Hit) []domain.Document {
	pos := make(map[string]int, len(docs))
	for i, d := range docs {
		pos[d.ID] = i
	}
	for _, variantHits := range hits {
		for _, h := range variantHits {
			if h.ID == "" {
				continue
			}
			if i, ok := pos[h.ID]; ok {
				if docs[i].SemanticScore == nil || h.Score > *docs[i].SemanticScore {
					docs[i].SemanticScore = domain.Float(h.Score)
				}
				continue
			}
			pos[h.ID] = len(docs)
			docs = append(docs, domain.Document{
				ID:            h.ID,
				Text:          h.Text,
				Metadata:      h.Metadata,
				SemanticScore: domain.Float(h.Score),
			})
		}
	}
	return docs
}

// scoreLexical scores every variant over the candidate texts and keeps the per-document maximum.
func (s *Service) scoreLexical(variants []domain.QueryVariant, docs []domain.Document) []float64 {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	lists := make([][]float64, len(variants))
	for i, v := range variants {
		lists[i] = s.lexical.Score(v.Text, texts)
	}
	if merged := fusion.MergeMax(lists); merged != nil {
		return merged
	}
	return make([]float64, len(docs))
}

func (s *Service) rerank(
	ctx context.Context, r resolved, docs []domain.Document,
) ([]domain.Document, stageOutcome, error) {
	switch {
	case !r.UseReranking:
		return docs, skipped("disabled"), nil
	case len(docs) == 0:
		return docs, skipped("no documents"), nil
	case s.reranker == nil || !s.reranker.Available():
		return docs, degraded("reranker unavailable"), nil
	}

	res, err := s.reranker.Rerank(ctx, r.query, docs, 0)
	if err != nil {
		if ctx.Err() != nil {
			return nil, stageOutcome{}, fmt.Errorf("optimize: %w", ctx.Err())
		}
		return docs, degraded(err.Error()), nil
	}
	if res.FailedChunks > 0 {
		return res.Documents, degraded(fmt.Sprintf("%d rerank chunks failed", res.FailedChunks)), nil
	}
	return res.Documents, ran(), nil
}

type stageOutcome struct {
	ran      bool
	degraded bool
	reason   string
}

func ran() stageOutcome                  { return stageOutcome{ran: true} }
func skipped(reason string) stageOutcome { return stageOutcome{reason: reason} }
func degraded(reason string) stageOutcome {
	return stageOutcome{degraded: true, reason: reason}
}

type pipelineRun struct {
	resp *Response
	log  *zap.Logger
}

// stage times fn, records its report and exports metrics.
func (p *pipelineRun) stage(name Stage, fn func() stageOutcome) {
	start := time.Now()
	out := fn()
	d := time.Since(start)

	p.resp.Stages = append(p.resp.Stages, StageReport{
		Stage:    name,
		Ran:      out.ran,
		Degraded: out.degraded,
		Reason:   out.reason,
		Duration: d,
	})
	metrics.StageDuration.WithLabelValues(string(name)).Observe(d.Seconds())
	if out.degraded {
		metrics.StageDegradedTotal.WithLabelValues(string(name)).Inc()
		p.log.Warn("Stage degraded", zap.String("stage", string(name)), zap.String("reason", out.reason))
	}
}
