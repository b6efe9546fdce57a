package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the retrievald configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Generator GeneratorConfig `yaml:"generator"`
	Reranker  RerankerConfig  `yaml:"reranker"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // debug, info, warn, error (default: determined by env)
	Encoding string `yaml:"encoding"` // json, console (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the Redis/Valkey connection used by the vector index and the redis cache.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, none (default: none)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds key naming settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheLRU    = "lru"
	CacheBadger = "badger"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
	CacheTiered = "tiered"
)

// CacheConfig selects the embedding cache backend.
type CacheConfig struct {
	Backend string `yaml:"backend"`   // memory, lru, badger, sqlite, redis, tiered (default: memory)
	Size    int    `yaml:"size"`      // lru entries, also the front tier of tiered
	Path    string `yaml:"path"`      // badger directory or sqlite file
	TTLSec  int    `yaml:"ttl_sec"`   // redis only, 0 = no expiry
	Back    string `yaml:"back"`      // tiered: badger, sqlite, redis
	InMem   bool   `yaml:"in_memory"` // badger without files
}

// Provider kinds.
const (
	KindOpenAI    = "openai"
	KindLangchain = "langchain"
)

// ProviderConfig configures one embedding provider.
type ProviderConfig struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"` // openai, langchain
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	User       string `yaml:"user"`
}

// EmbeddingConfig holds the ordered provider fallback list.
type EmbeddingConfig struct {
	Providers          []ProviderConfig `yaml:"providers"`
	QueryInstruction   string           `yaml:"query_instruction"`
	DetachedTimeoutSec int              `yaml:"detached_timeout_sec"`
}

// GeneratorConfig configures the text generator used for query expansion. Empty model disables it.
type GeneratorConfig struct {
	Kind    string `yaml:"kind"` // openai, langchain
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// RerankerConfig configures the cross-encoder. Empty base_url disables reranking.
type RerankerConfig struct {
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
	ChunkSize  int    `yaml:"chunk_size"`
	Workers    int    `yaml:"workers"`
}

// BM25Config holds the Okapi parameters.
type BM25Config struct {
	K1      float64 `yaml:"k1"`
	B       float64 `yaml:"b"`
	Epsilon float64 `yaml:"epsilon"`
}

// RetrievalConfig holds the pipeline defaults. It is the only hot-reloadable section.
type RetrievalConfig struct {
	Alpha         *float64   `yaml:"alpha"`
	TopK          int        `yaml:"top_k"`
	MaxExpansions *int       `yaml:"max_expansions"`
	UseExpansion  *bool      `yaml:"use_expansion"`
	UseHybrid     *bool      `yaml:"use_hybrid"`
	UseReranking  *bool      `yaml:"use_reranking"`
	Retrieve      bool       `yaml:"retrieve"`
	RetrieveK     int        `yaml:"retrieve_k"`
	IndexName     string     `yaml:"index_name"`
	Filter        string     `yaml:"filter"`
	Tokenizer     string     `yaml:"tokenizer"` // whitespace, standard
	BM25          BM25Config `yaml:"bm25"`
}

// Load reads <dir>/<env>.yaml. An empty dir searches ./config and the project root.
func Load(dir, env string) (Config, error) {
	configPath := Path(dir, env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "none"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "retrievald:"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheMemory
	}
	if c.Cache.Size <= 0 {
		c.Cache.Size = 100_000
	}
	if c.Embedding.DetachedTimeoutSec <= 0 {
		c.Embedding.DetachedTimeoutSec = 60
	}
	for i := range c.Embedding.Providers {
		p := &c.Embedding.Providers[i]
		if p.Kind == "" {
			p.Kind = KindOpenAI
		}
		if p.Name == "" {
			p.Name = p.Kind
		}
	}
	if c.Generator.Kind == "" {
		c.Generator.Kind = KindOpenAI
	}
	if c.Reranker.TimeoutSec <= 0 {
		c.Reranker.TimeoutSec = 30
	}
	c.Retrieval.applyDefaults()
}

func (r *RetrievalConfig) applyDefaults() {
	if r.Alpha == nil {
		r.Alpha = ptr(0.5)
	}
	if r.MaxExpansions == nil {
		r.MaxExpansions = ptr(3)
	}
	if r.UseExpansion == nil {
		r.UseExpansion = ptr(true)
	}
	if r.UseHybrid == nil {
		r.UseHybrid = ptr(true)
	}
	if r.UseReranking == nil {
		r.UseReranking = ptr(true)
	}
	if r.RetrieveK <= 0 {
		r.RetrieveK = 10
	}
	if r.Tokenizer == "" {
		r.Tokenizer = "whitespace"
	}
	if r.BM25.K1 == 0 {
		r.BM25.K1 = 1.5
	}
	if r.BM25.B == 0 {
		r.BM25.B = 0.75
	}
	if r.BM25.Epsilon == 0 {
		r.BM25.Epsilon = 0.25
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "none":
	case "redis", "valkey":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be \"redis\", \"valkey\" or \"none\", got %q", c.Database.Driver)
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	for i, p := range c.Embedding.Providers {
		if p.Kind != KindOpenAI && p.Kind != KindLangchain {
			return fmt.Errorf("embedding.providers[%d].kind must be %q or %q, got %q",
				i, KindOpenAI, KindLangchain, p.Kind)
		}
		if p.Model == "" {
			return fmt.Errorf("embedding.providers[%d].model is required", i)
		}
	}
	if c.Generator.Kind != KindOpenAI && c.Generator.Kind != KindLangchain {
		return fmt.Errorf("generator.kind must be %q or %q, got %q", KindOpenAI, KindLangchain, c.Generator.Kind)
	}
	if c.Reranker.ChunkSize < 0 || c.Reranker.Workers < 0 {
		return fmt.Errorf("reranker.chunk_size and reranker.workers must not be negative")
	}
	if err := c.Retrieval.Validate(); err != nil {
		return err
	}
	if c.Retrieval.Retrieve && c.Retrieval.IndexName == "" {
		return fmt.Errorf("retrieval.index_name is required when retrieval.retrieve is true")
	}
	return nil
}

func (c *Config) validateCache() error {
	backends := []string{CacheMemory, CacheLRU, CacheBadger, CacheSQLite, CacheRedis, CacheTiered}
	if !slices.Contains(backends, c.Cache.Backend) {
		return fmt.Errorf("cache.backend must be one of %s, got %q",
			strings.Join(backends, ", "), c.Cache.Backend)
	}
	if c.Cache.TTLSec < 0 {
		return fmt.Errorf("cache.ttl_sec must not be negative, got %d", c.Cache.TTLSec)
	}

	persistent := c.Cache.Backend
	if persistent == CacheTiered {
		persistent = c.Cache.Back
		if persistent != CacheBadger && persistent != CacheSQLite && persistent != CacheRedis {
			return fmt.Errorf("cache.back must be %q, %q or %q for the tiered backend, got %q",
				CacheBadger, CacheSQLite, CacheRedis, c.Cache.Back)
		}
	}
	switch persistent {
	case CacheBadger:
		if c.Cache.Path == "" && !c.Cache.InMem {
			return fmt.Errorf("cache.path is required for the badger backend")
		}
	case CacheSQLite:
		if c.Cache.Path == "" {
			return fmt.Errorf("cache.path is required for the sqlite backend")
		}
	case CacheRedis:
		if c.Database.Driver == "none" {
			return fmt.Errorf("cache backend redis requires database.driver redis")
		}
	}
	return nil
}

// Validate checks the retrieval section. Reloads use it to reject bad edits.
func (r *RetrievalConfig) Validate() error {
	if a := *r.Alpha; math.IsNaN(a) || a < 0 || a > 1 {
		return fmt.Errorf("retrieval.alpha must be in [0,1], got %v", a)
	}
	if r.TopK < 0 {
		return fmt.Errorf("retrieval.top_k must not be negative, got %d", r.TopK)
	}
	if *r.MaxExpansions < 0 {
		return fmt.Errorf("retrieval.max_expansions must not be negative, got %d", *r.MaxExpansions)
	}
	if r.Tokenizer != "whitespace" && r.Tokenizer != "standard" {
		return fmt.Errorf("retrieval.tokenizer must be \"whitespace\" or \"standard\", got %q", r.Tokenizer)
	}
	if r.BM25.K1 < 0 || r.BM25.B < 0 || r.BM25.B > 1 || r.BM25.Epsilon < 0 {
		return fmt.Errorf("retrieval.bm25 parameters out of range: %+v", r.BM25)
	}
	return nil
}

// DetachedTimeout returns the bound on embedding calls that outlive their caller.
func (e EmbeddingConfig) DetachedTimeout() time.Duration {
	return time.Duration(e.DetachedTimeoutSec) * time.Second
}

// Path locates the config file for env.
func Path(dir, env string) string {
	filename := fmt.Sprintf("%s.yaml", env)
	if dir != "" {
		return filepath.Join(dir, filename)
	}

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

func ptr[T any](v T) *T { return &v }
