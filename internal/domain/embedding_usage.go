package domain

import (
	"context"
	"sync"
)

type embeddingUsageKey struct{}

// EmbeddingUsage collects token usage for one inbound request. The transport puts it into the
// context; embedding layers add to it; the transport reports it in a response header.
type EmbeddingUsage struct {
	mu          sync.Mutex
	totalTokens int
	used        bool
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records consumed tokens. A cache hit records 0 tokens but still marks usage.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.totalTokens += n
	u.used = true
	u.mu.Unlock()
}

// Snapshot returns the accumulated tokens and whether embedding ran at all.
func (u *EmbeddingUsage) Snapshot() (totalTokens int, used bool) {
	if u == nil {
		return 0, false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.totalTokens, u.used
}
