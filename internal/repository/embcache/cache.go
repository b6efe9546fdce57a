package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/db"
	"github.com/devindrajit1998/ai-novaintel/internal/domain"
)

// Cache maps exact text to a previously computed embedding.
// Backend failures degrade to misses; they never fail the caller.
type Cache struct {
	store      store
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
	now        func() time.Time
}

// NewCache creates a cache over s.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func NewCache(s store, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{
		store:      s,
		cacheTotal: cacheTotal,
		logger:     logger,
		now:        time.Now,
	}
}

// Key returns the storage key for text. Identical text always yields the identical key.
func Key(text string) string {
	h := sha256.Sum256([]byte(text))
	return domain.KeyPrefix + "emb_cache:" + hex.EncodeToString(h[:])
}

// Get returns a copy of the vector stored for text.
func (c *Cache) Get(ctx context.Context, text string) ([]float32, bool) {
	e, ok := c.Entry(ctx, text)
	if !ok {
		return nil, false
	}
	return e.Vector, true
}

// Entry returns the full cache entry for text.
func (c *Cache) Entry(ctx context.Context, text string) (CacheEntry, bool) {
	key := Key(text)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		c.incCache("miss")
		return CacheEntry{}, false
	}

	e, err := decodeEntry(key, data)
	if err != nil {
		c.logger.Error("Failed to decode cached embedding", zap.String("key", key), zap.Error(err))
		c.incCache("miss")
		return CacheEntry{}, false
	}

	c.incCache("hit")
	return e, true
}

// Set stores vec for text, replacing any previous entry as a whole.
func (c *Cache) Set(ctx context.Context, text string, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty vector: %w", domain.ErrInvalidArgument)
	}
	key := Key(text)
	e := newEntry(key, vec, c.now())
	if err := c.store.Set(ctx, key, encodeEntry(e)); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// put is Set for the write-through path: failures are logged, not returned.
func (c *Cache) put(ctx context.Context, text string, vec []float32) {
	if err := c.Set(ctx, text, vec); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", Key(text)), zap.Error(err))
	}
}

func (c *Cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func cloneVector(v []float32) []float32 { return slices.Clone(v) }
