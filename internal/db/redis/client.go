package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/devindrajit1998/ai-novaintel/internal/db"
)

var _ db.Store = (*Store)(nil)

// readyPollInterval is how often WaitForReady pings.
const readyPollInterval = 100 * time.Millisecond

// Config holds connection parameters for a Redis or Valkey server with the search module.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Store is the rueidis-backed KV store and vector searcher.
type Store struct {
	client rueidis.Client
}

// NewStore dials the configured server. The client-side cache is off: embeddings are cached
// one layer up and FT.SEARCH replies are not cacheable.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		ClientName:   "retrievald",
		DisableCache: true,
		AlwaysRESP2:  true, // parseSearchReply reads the RESP2 array layout
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpOpen, Err: err}
	}
	return NewStoreFromClient(client), nil
}

// NewStoreFromClient wraps an existing client, e.g. a rueidis mock.
func NewStoreFromClient(c rueidis.Client) *Store {
	return &Store{client: c}
}

// Ping round-trips a PING.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close releases the client's connections.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings until the server answers or timeout passes.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		if lastErr = s.Ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("redis not ready after %s: %w", timeout, lastErr)
		case <-time.After(readyPollInterval):
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}
