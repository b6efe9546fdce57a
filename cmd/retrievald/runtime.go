package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/config"
	"github.com/devindrajit1998/ai-novaintel/internal/db"
	dbBadger "github.com/devindrajit1998/ai-novaintel/internal/db/badger"
	dbRedis "github.com/devindrajit1998/ai-novaintel/internal/db/redis"
	dbSQLite "github.com/devindrajit1998/ai-novaintel/internal/db/sqlite"
	"github.com/devindrajit1998/ai-novaintel/internal/domain"
	logpkg "github.com/devindrajit1998/ai-novaintel/internal/logger"
	"github.com/devindrajit1998/ai-novaintel/internal/metrics"
	"github.com/devindrajit1998/ai-novaintel/internal/repository/embcache"
	"github.com/devindrajit1998/ai-novaintel/internal/repository/vectorindex"
	"github.com/devindrajit1998/ai-novaintel/internal/transport/crossencoder"
	langchainTr "github.com/devindrajit1998/ai-novaintel/internal/transport/langchain"
	openaiTr "github.com/devindrajit1998/ai-novaintel/internal/transport/openai"
	embeddinguc "github.com/devindrajit1998/ai-novaintel/internal/usecase/embedding"
	"github.com/devindrajit1998/ai-novaintel/internal/usecase/expansion"
	healthuc "github.com/devindrajit1998/ai-novaintel/internal/usecase/health"
	"github.com/devindrajit1998/ai-novaintel/internal/usecase/lexical"
	"github.com/devindrajit1998/ai-novaintel/internal/usecase/optimizer"
	"github.com/devindrajit1998/ai-novaintel/internal/usecase/rerank"
)

// kvStore is what the embedding cache needs from a backend.
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// runtime is the composition root: every service of one process, wired from config.
type runtime struct {
	cfg    config.Config
	env    string
	dir    string
	logger *zap.Logger

	optimizer *optimizer.Service
	// embedder serves /v1/embeddings. It is nil when no provider is configured.
	embedder domain.Embedder
	health   *healthuc.Service

	closers []func()
}

func newRuntime(ctx context.Context, env, dir, logLevel string) (*runtime, error) {
	cfg, err := config.Load(dir, env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err := logpkg.NewLogger(env, logpkg.Options{
		Level:    cfg.Logging.Level,
		Encoding: cfg.Logging.Encoding,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	rt := &runtime{cfg: cfg, env: env, dir: dir, logger: logger}
	if err := rt.wire(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
	_ = r.logger.Sync()
}

func (r *runtime) wire(ctx context.Context) error {
	cfg := r.cfg
	domain.KeyPrefix = cfg.Storage.KeyPrefix

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	redisStore, err := r.openDatabase(ctx)
	if err != nil {
		return err
	}

	cacheStore, cachePinger, err := r.cacheStore(cfg.Cache.Backend, redisStore)
	if err != nil {
		return err
	}

	cached, err := r.buildEmbedder(cacheStore)
	if err != nil {
		return err
	}
	// Pass nil interfaces, not typed nil pointers, when nothing is configured.
	var embedder, queryEmbedder domain.Embedder
	if cached != nil {
		embedder = cached
		queryEmbedder = cached
		if cfg.Embedding.QueryInstruction != "" {
			queryEmbedder = domain.NewInstructionEmbedder(cached, cfg.Embedding.QueryInstruction)
		}
	}
	r.embedder = embedder

	generator, err := newGenerator(cfg.Generator, r.logger)
	if err != nil {
		return err
	}
	expander := expansion.New(generator, r.logger)

	scorer := crossencoder.New(&crossencoder.Config{
		BaseURL: cfg.Reranker.BaseURL,
		Model:   cfg.Reranker.Model,
		APIKey:  cfg.Reranker.APIKey,
		Timeout: time.Duration(cfg.Reranker.TimeoutSec) * time.Second,
		Logger:  r.logger,
	})
	reranker, err := rerank.New(scorer, rerank.Config{
		ChunkSize: cfg.Reranker.ChunkSize,
		Workers:   cfg.Reranker.Workers,
	}, r.logger)
	if err != nil {
		return fmt.Errorf("create reranker: %w", err)
	}
	r.closers = append(r.closers, reranker.Close)

	tokenizer, err := lexical.NewTokenizer(cfg.Retrieval.Tokenizer)
	if err != nil {
		return fmt.Errorf("create tokenizer: %w", err)
	}
	scorerBM25 := lexical.New(lexical.Params{
		K1:      cfg.Retrieval.BM25.K1,
		B:       cfg.Retrieval.BM25.B,
		Epsilon: cfg.Retrieval.BM25.Epsilon,
	}, tokenizer)

	var index domain.VectorIndex
	if redisStore != nil {
		index = vectorindex.New(redisStore, vectorindex.Config{
			IndexName: cfg.Retrieval.IndexName,
			KeyPrefix: cfg.Storage.KeyPrefix,
			Filter:    cfg.Retrieval.Filter,
		})
	}

	r.optimizer = optimizer.New(optimizer.Deps{
		Expander: expander,
		Lexical:  scorerBM25,
		Reranker: reranker,
		Embedder: queryEmbedder,
		Index:    index,
	}, settingsFromConfig(cfg.Retrieval), r.logger)

	var pinger healthuc.DBPinger
	switch {
	case redisStore != nil:
		pinger = redisStore
	case cachePinger != nil:
		pinger = cachePinger
	}
	var embeddingCheck healthuc.EmbeddingChecker
	if cached != nil {
		embeddingCheck = cached
	}
	probes := []healthuc.Probe{
		{Name: "generator", Target: expander},
		{Name: "reranker", Target: reranker},
	}
	if index != nil {
		probes = append(probes, healthuc.Probe{Name: "vector_index", Target: index})
	}
	r.health = healthuc.New(pinger, embeddingCheck, probes...)

	r.logger.Info("Pipeline wired",
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Int("embedding_providers", len(cfg.Embedding.Providers)),
		zap.Bool("expansion", expander.Available()),
		zap.Bool("reranking", reranker.Available()),
		zap.Bool("vector_index", index != nil && index.Available()),
		zap.String("tokenizer", cfg.Retrieval.Tokenizer),
	)
	return nil
}

// openDatabase connects to Redis or Valkey. It returns nil when the driver is none.
func (r *runtime) openDatabase(ctx context.Context) (*dbRedis.Store, error) {
	dbCfg := r.cfg.Database
	if dbCfg.Driver != "redis" && dbCfg.Driver != "valkey" {
		return nil, nil
	}

	// Valkey speaks the same protocol; one rueidis store serves both.
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    dbCfg.Addrs,
		Username: dbCfg.Username,
		Password: dbCfg.Password,
		DB:       dbCfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", dbCfg.Driver, err)
	}
	r.closers = append(r.closers, store.Close)

	if err := store.WaitForReady(ctx, time.Duration(dbCfg.ReadinessTimeout)*time.Second); err != nil {
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	r.logger.Info("Connected to database",
		zap.String("driver", dbCfg.Driver),
		zap.Strings("addrs", dbCfg.Addrs),
	)
	return store, nil
}

// cacheStore builds the embedding cache backend. The pinger is set for local persistent stores.
func (r *runtime) cacheStore(backend string, redisStore *dbRedis.Store) (kvStore, db.Pinger, error) {
	switch backend {
	case config.CacheMemory:
		return embcache.NewMemoryStore(), nil, nil
	case config.CacheLRU:
		s, err := embcache.NewLRUStore(r.cfg.Cache.Size)
		if err != nil {
			return nil, nil, fmt.Errorf("create lru cache: %w", err)
		}
		return s, nil, nil
	case config.CacheTiered:
		front, err := embcache.NewLRUStore(r.cfg.Cache.Size)
		if err != nil {
			return nil, nil, fmt.Errorf("create lru cache: %w", err)
		}
		back, pinger, err := r.cacheStore(r.cfg.Cache.Back, redisStore)
		if err != nil {
			return nil, nil, err
		}
		return embcache.NewTieredStore(front, back), pinger, nil
	case config.CacheBadger:
		s, err := dbBadger.Open(dbBadger.Config{
			Path:     r.cfg.Cache.Path,
			InMemory: r.cfg.Cache.InMem,
			Logger:   r.logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open badger cache: %w", err)
		}
		r.closers = append(r.closers, func() { _ = s.Close() })
		return s, s, nil
	case config.CacheSQLite:
		s, err := dbSQLite.Open(r.cfg.Cache.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite cache: %w", err)
		}
		r.closers = append(r.closers, func() { _ = s.Close() })
		return s, s, nil
	case config.CacheRedis:
		if redisStore == nil {
			return nil, nil, fmt.Errorf("cache backend redis requires a database connection")
		}
		if r.cfg.Cache.TTLSec <= 0 {
			return redisStore, nil, nil
		}
		s, err := embcache.NewExpiringStore(redisStore, time.Duration(r.cfg.Cache.TTLSec)*time.Second)
		if err != nil {
			return nil, nil, fmt.Errorf("create redis cache: %w", err)
		}
		return s, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// buildEmbedder assembles the decorator chain: provider -> Instrumented -> Chain -> Cached.
// It returns nil when no provider is configured.
func (r *runtime) buildEmbedder(store kvStore) (*embcache.CachedEmbedder, error) {
	cfg := r.cfg.Embedding
	if len(cfg.Providers) == 0 {
		r.logger.Warn("No embedding providers configured, retrieval and /v1/embeddings are unavailable")
		return nil, nil
	}

	providers := make([]embeddinguc.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		base, err := newProviderEmbedder(pc, r.logger)
		if err != nil {
			return nil, fmt.Errorf("embedding provider %q: %w", pc.Name, err)
		}
		providers = append(providers, embeddinguc.Provider{
			Name:     pc.Name,
			Embedder: embeddinguc.NewInstrumentedEmbedder(base, pc.Name, pc.Model, r.logger),
		})
	}

	cached := embcache.New(
		embeddinguc.NewChain(providers, r.logger),
		store,
		metrics.EmbeddingCacheTotal,
		r.logger,
	).WithDetachedTimeout(cfg.DetachedTimeout())
	// Detached embeds must finish before their cache backend closes.
	r.closers = append(r.closers, cached.Wait)
	return cached, nil
}

func newProviderEmbedder(pc config.ProviderConfig, logger *zap.Logger) (domain.Embedder, error) {
	if pc.Kind == config.KindLangchain {
		emb, err := langchainTr.NewEmbedder(&langchainTr.Config{
			Host:     pc.BaseURL,
			Token:    pc.APIKey,
			Model:    pc.Model,
			Provider: pc.Name,
			Logger:   logger,
		})
		if err != nil {
			return nil, err //nolint:wrapcheck // wrapped by caller
		}
		return emb, nil
	}
	return openaiTr.NewEmbedder(&openaiTr.Config{
		APIKey:     pc.APIKey,
		BaseURL:    pc.BaseURL,
		Model:      pc.Model,
		Dimensions: pc.Dimensions,
		User:       pc.User,
		Provider:   pc.Name,
		Logger:     logger,
	}), nil
}

// newGenerator returns nil when no generator model is configured.
func newGenerator(cfg config.GeneratorConfig, logger *zap.Logger) (domain.TextGenerator, error) {
	if cfg.Model == "" {
		return nil, nil
	}
	if cfg.Kind == config.KindLangchain {
		gen, err := langchainTr.NewGenerator(&langchainTr.Config{
			Host:     cfg.BaseURL,
			Token:    cfg.APIKey,
			Model:    cfg.Model,
			Provider: config.KindLangchain,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create generator: %w", err)
		}
		return gen, nil
	}
	return openaiTr.NewGenerator(&openaiTr.Config{
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
		Provider: config.KindOpenAI,
		Logger:   logger,
	}), nil
}

// settingsFromConfig maps the retrieval section onto pipeline defaults.
func settingsFromConfig(rc config.RetrievalConfig) optimizer.Settings {
	s := optimizer.DefaultSettings()
	if rc.Alpha != nil {
		s.Alpha = *rc.Alpha
	}
	if rc.MaxExpansions != nil {
		s.MaxExpansions = *rc.MaxExpansions
	}
	if rc.UseExpansion != nil {
		s.UseExpansion = *rc.UseExpansion
	}
	if rc.UseHybrid != nil {
		s.UseHybrid = *rc.UseHybrid
	}
	if rc.UseReranking != nil {
		s.UseReranking = *rc.UseReranking
	}
	s.TopK = rc.TopK
	s.Retrieve = rc.Retrieve
	if rc.RetrieveK > 0 {
		s.RetrieveK = rc.RetrieveK
	}
	return s
}
