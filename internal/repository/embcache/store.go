package embcache

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/devindrajit1998/ai-novaintel/internal/db"
)

// store is the consumer interface for the cache backends (ISP). Get returns
// db.ErrKeyNotFound on a miss.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

const shardCount = 64

// MemoryStore is an unbounded in-process store. Keys are spread over shards so writers to
// different keys rarely contend; values are copied on the way in and out.
type MemoryStore struct {
	shards [shardCount]memoryShard
}

type memoryShard struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStore creates an empty sharded store.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{}
	for i := range m.shards {
		m.shards[i].items = make(map[string][]byte)
	}
	return m
}

func (m *MemoryStore) shard(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &m.shards[h.Sum32()%shardCount]
}

// Get returns a copy of the stored value.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s := m.shard(key)
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return slices.Clone(v), nil
}

// Set replaces the value under key.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	v := slices.Clone(value)
	s := m.shard(key)
	s.mu.Lock()
	s.items[key] = v
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// LRUStore is a bounded in-process store that evicts the least recently used key.
type LRUStore struct {
	items *lru.Cache[string, []byte]
}

// NewLRUStore creates a store holding at most size entries.
func NewLRUStore(size int) (*LRUStore, error) {
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &LRUStore{items: c}, nil
}

// Get returns a copy of the stored value.
func (l *LRUStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := l.items.Get(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return slices.Clone(v), nil
}

// Set replaces the value under key, evicting the oldest entry when full.
func (l *LRUStore) Set(_ context.Context, key string, value []byte) error {
	l.items.Add(key, slices.Clone(value))
	return nil
}

// Len returns the number of stored keys.
func (l *LRUStore) Len() int { return l.items.Len() }

// TieredStore reads through a fast front store to a persistent back store and
// promotes back-store hits into the front.
type TieredStore struct {
	front store
	back  store
}

// NewTieredStore combines two stores.
func NewTieredStore(front, back store) *TieredStore {
	return &TieredStore{front: front, back: back}
}

// Get looks in the front store first.
func (t *TieredStore) Get(ctx context.Context, key string) ([]byte, error) {
	if v, err := t.front.Get(ctx, key); err == nil {
		return v, nil
	}
	v, err := t.back.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("back store: %w", err)
	}
	_ = t.front.Set(ctx, key, v)
	return v, nil
}

// Set writes both tiers. A front failure does not hide a back failure.
func (t *TieredStore) Set(ctx context.Context, key string, value []byte) error {
	backErr := t.back.Set(ctx, key, value)
	frontErr := t.front.Set(ctx, key, value)
	if err := errors.Join(backErr, frontErr); err != nil {
		return fmt.Errorf("tiered set: %w", err)
	}
	return nil
}

type ttlStore interface {
	store
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ExpiringStore writes every entry with a fixed TTL. Used for shared Redis caches.
type ExpiringStore struct {
	inner ttlStore
	ttl   time.Duration
}

// NewExpiringStore wraps s. ttl must be positive.
func NewExpiringStore(s ttlStore, ttl time.Duration) (*ExpiringStore, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	return &ExpiringStore{inner: s, ttl: ttl}, nil
}

// Get reads from the wrapped store.
func (e *ExpiringStore) Get(ctx context.Context, key string) ([]byte, error) {
	return e.inner.Get(ctx, key) //nolint:wrapcheck // pass-through
}

// Set writes with the configured TTL.
func (e *ExpiringStore) Set(ctx context.Context, key string, value []byte) error {
	return e.inner.SetWithTTL(ctx, key, value, e.ttl) //nolint:wrapcheck // pass-through
}
