package embcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/devindrajit1998/ai-novaintel/internal/db"
)

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	v := []byte{1, 2, 3}
	if err := s.Set(ctx, "k", v); err != nil {
		t.Fatal(err)
	}
	v[0] = 9

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 1 {
		t.Fatalf("stored value changed through caller slice: %v", got)
	}
}

func TestMemoryStore_Miss(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), "absent")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestMemoryStore_ConcurrentWriters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				_ = s.Set(ctx, fmt.Sprintf("k-%d-%d", w, i), []byte{byte(i)})
				_, _ = s.Get(ctx, fmt.Sprintf("k-%d-%d", (w+1)%8, i))
			}
		}()
	}
	wg.Wait()

	if s.Len() != 800 {
		t.Fatalf("expected 800 keys, got %d", s.Len())
	}
}

func TestLRUStore_Evicts(t *testing.T) {
	s, err := NewLRUStore(2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	_ = s.Set(ctx, "a", []byte("1"))
	_ = s.Set(ctx, "b", []byte("2"))
	_, _ = s.Get(ctx, "a")
	_ = s.Set(ctx, "c", []byte("3"))

	if _, err := s.Get(ctx, "b"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected b evicted, got %v", err)
	}
	if _, err := s.Get(ctx, "a"); err != nil {
		t.Fatalf("expected a kept, got %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", s.Len())
	}
}

func TestLRUStore_InvalidSize(t *testing.T) {
	if _, err := NewLRUStore(0); err == nil {
		t.Fatal("expected error for zero size")
	}
}

func TestTieredStore_PromotesBackHits(t *testing.T) {
	front, back := NewMemoryStore(), NewMemoryStore()
	s := NewTieredStore(front, back)
	ctx := context.Background()

	_ = back.Set(ctx, "k", []byte("v"))

	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("unexpected get: %q %v", got, err)
	}
	if front.Len() != 1 {
		t.Fatal("expected back hit promoted to front")
	}
}

func TestTieredStore_MissOnBoth(t *testing.T) {
	s := NewTieredStore(NewMemoryStore(), NewMemoryStore())
	_, err := s.Get(context.Background(), "k")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestTieredStore_SetJoinsErrors(t *testing.T) {
	backErr := errors.New("disk full")
	back := &mockKVStore{setFn: func(_ context.Context, _ string, _ []byte) error { return backErr }}
	front := NewMemoryStore()
	s := NewTieredStore(front, back)

	err := s.Set(context.Background(), "k", []byte("v"))
	if !errors.Is(err, backErr) {
		t.Fatalf("expected back error, got %v", err)
	}
	if front.Len() != 1 {
		t.Fatal("expected front still written")
	}
}

type ttlRecorder struct {
	*MemoryStore
	ttls []time.Duration
}

func (r *ttlRecorder) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	r.ttls = append(r.ttls, ttl)
	return r.Set(ctx, key, value)
}

func TestExpiringStore_SetsTTL(t *testing.T) {
	rec := &ttlRecorder{MemoryStore: NewMemoryStore()}
	s, err := NewExpiringStore(rec, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if len(rec.ttls) != 1 || rec.ttls[0] != time.Hour {
		t.Fatalf("expected one write with 1h ttl, got %v", rec.ttls)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("unexpected get: %q %v", got, err)
	}
	if _, err := NewExpiringStore(rec, 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
