// Package config loads semcat settings from an optional YAML file, a .env
// file and SEMCAT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hubenschmidt/go-semcat/blob"
	"github.com/hubenschmidt/go-semcat/llm"
	"github.com/hubenschmidt/go-semcat/observability"
	"github.com/hubenschmidt/go-semcat/store"
)

const (
	EnvPrefix       = "SEMCAT"
	DefaultFileName = "semcat.yaml"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Blob      BlobConfig      `mapstructure:"blob" yaml:"blob"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Search    SearchConfig    `mapstructure:"search" yaml:"search"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	Dev  bool   `mapstructure:"dev" yaml:"dev"`
}

type BlobConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
	URL     string `mapstructure:"url" yaml:"url"`
	Token   string `mapstructure:"token" yaml:"token"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type StoreConfig struct {
	ReadAttempts    int           `mapstructure:"read_attempts" yaml:"read_attempts"`
	ReadBackoff     time.Duration `mapstructure:"read_backoff" yaml:"read_backoff"`
	SettleDelay     time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	VerifyDelay     time.Duration `mapstructure:"verify_delay" yaml:"verify_delay"`
	ConflictBackoff time.Duration `mapstructure:"conflict_backoff" yaml:"conflict_backoff"`
}

type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider" yaml:"provider"`
	Model      string `mapstructure:"model" yaml:"model"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	Dimension  int    `mapstructure:"dimension" yaml:"dimension"`
	MaxRetries int    `mapstructure:"max_retries" yaml:"max_retries"`
}

type SearchConfig struct {
	TopK      int          `mapstructure:"top_k" yaml:"top_k"`
	Threshold float64      `mapstructure:"threshold" yaml:"threshold"`
	Index     string       `mapstructure:"index" yaml:"index"`
	DSN       string       `mapstructure:"dsn" yaml:"dsn"`
	Dimension int          `mapstructure:"dimension" yaml:"dimension"`
	Qdrant    QdrantConfig `mapstructure:"qdrant" yaml:"qdrant"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	Environment string  `mapstructure:"environment" yaml:"environment"`
}

func setDefaults(v *viper.Viper) {
	d := store.DefaultOptions()

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.dev", false)

	v.SetDefault("blob.backend", "sqlite")
	v.SetDefault("blob.dsn", "data/semcat.db")
	v.SetDefault("blob.url", "")
	v.SetDefault("blob.token", "")
	v.SetDefault("blob.path", store.DefaultPath)

	v.SetDefault("store.read_attempts", d.ReadAttempts)
	v.SetDefault("store.read_backoff", d.ReadBackoff)
	v.SetDefault("store.settle_delay", d.SettleDelay)
	v.SetDefault("store.max_retries", d.MaxRetries)
	v.SetDefault("store.verify_delay", d.VerifyDelay)
	v.SetDefault("store.conflict_backoff", d.ConflictBackoff)

	v.SetDefault("embedding.provider", "hash")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.dimension", 0)
	v.SetDefault("embedding.max_retries", 3)

	v.SetDefault("search.top_k", 20)
	v.SetDefault("search.threshold", 0.75)
	v.SetDefault("search.index", "none")
	v.SetDefault("search.dsn", "")
	v.SetDefault("search.dimension", 0)
	v.SetDefault("search.qdrant.host", "localhost")
	v.SetDefault("search.qdrant.port", 6334)
	v.SetDefault("search.qdrant.collection", "categories")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.service_name", "semcat")
	v.SetDefault("tracing.environment", "development")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The conventional provider variable works as a fallback.
	_ = v.BindEnv("embedding.api_key", EnvPrefix+"_EMBEDDING_API_KEY", "OPENAI_API_KEY")
	return v
}

// Default returns the built-in configuration, ignoring files and environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return &cfg
}

// Load reads configuration from path (or ./semcat.yaml when path is empty
// and the file exists), .env and the environment, in increasing precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFileName, filepath.Ext(DefaultFileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	for _, warning := range cfg.Validate() {
		log.Printf("[config] warning: %s", warning)
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Printf("[config] loaded %s", used)
	}

	return &cfg, nil
}

// Save writes cfg as YAML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	switch c.Blob.Backend {
	case "", "memory", "sqlite", "postgres":
	case "http":
		if c.Blob.URL == "" {
			warnings = append(warnings, "blob backend 'http' is configured but blob.url is empty")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("unknown blob backend '%s'", c.Blob.Backend))
	}
	if c.Blob.Backend == "memory" {
		warnings = append(warnings, "blob backend 'memory' keeps categories only for the life of the process")
	}

	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" && c.Embedding.BaseURL == "" {
		warnings = append(warnings, "embedding provider 'openai' is configured but api_key is empty")
	}

	if c.Search.Threshold < -1 || c.Search.Threshold > 1 {
		warnings = append(warnings, fmt.Sprintf("search threshold %.2f is outside the cosine range [-1, 1]", c.Search.Threshold))
	}
	if c.Search.TopK < 0 {
		warnings = append(warnings, fmt.Sprintf("search top_k %d is negative; searches will return nothing", c.Search.TopK))
	}

	switch c.Search.Index {
	case "pgvector":
		if c.SearchDSN() == "" {
			warnings = append(warnings, "search index 'pgvector' is configured but search.dsn is empty")
		}
		if c.IndexDimension() <= 0 {
			warnings = append(warnings, "search index 'pgvector' needs search.dimension or embedding.dimension")
		}
	case "qdrant":
		if c.IndexDimension() <= 0 {
			warnings = append(warnings, "search index 'qdrant' needs search.dimension or embedding.dimension")
		}
	}
	if c.Search.Dimension > 0 && c.Embedding.Dimension > 0 && c.Search.Dimension != c.Embedding.Dimension {
		warnings = append(warnings, fmt.Sprintf("search.dimension %d differs from embedding.dimension %d", c.Search.Dimension, c.Embedding.Dimension))
	}

	if c.Store.VerifyDelay < 0 || c.Store.SettleDelay < 0 {
		warnings = append(warnings, "store delays must not be negative")
	}

	return warnings
}

// SearchDSN is the pgvector connection string. It falls back to the blob DSN
// when the category document already lives in PostgreSQL.
func (c *Config) SearchDSN() string {
	if c.Search.DSN != "" {
		return c.Search.DSN
	}
	if strings.HasPrefix(c.Blob.DSN, "postgres://") || strings.HasPrefix(c.Blob.DSN, "postgresql://") {
		return c.Blob.DSN
	}
	return ""
}

// IndexDimension is the vector size for the mirror index.
func (c *Config) IndexDimension() int {
	if c.Search.Dimension > 0 {
		return c.Search.Dimension
	}
	if c.Embedding.Dimension > 0 {
		return c.Embedding.Dimension
	}
	if c.Embedding.Provider == "hash" || c.Embedding.Provider == "" {
		return llm.DefaultHashDimension
	}
	return 0
}

func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Path:            c.Blob.Path,
		ReadAttempts:    c.Store.ReadAttempts,
		ReadBackoff:     c.Store.ReadBackoff,
		SettleDelay:     c.Store.SettleDelay,
		MaxRetries:      c.Store.MaxRetries,
		VerifyDelay:     c.Store.VerifyDelay,
		ConflictBackoff: c.Store.ConflictBackoff,
	}
}

func (c *Config) BlobConfig() blob.Config {
	return blob.Config{
		Backend: c.Blob.Backend,
		DSN:     c.Blob.DSN,
		URL:     c.Blob.URL,
		Token:   c.Blob.Token,
	}
}

func (c *Config) EmbedderConfig() llm.EmbedderConfig {
	return llm.EmbedderConfig{
		Provider:   c.Embedding.Provider,
		Model:      c.Embedding.Model,
		APIKey:     c.Embedding.APIKey,
		BaseURL:    c.Embedding.BaseURL,
		Dimension:  c.Embedding.Dimension,
		MaxRetries: c.Embedding.MaxRetries,
	}
}

func (c *Config) TracingConfig() *observability.TracingConfig {
	tc := observability.DefaultTracingConfig()
	tc.OTLPEndpoint = c.Tracing.Endpoint
	tc.SampleRate = c.Tracing.SampleRate
	if c.Tracing.ServiceName != "" {
		tc.ServiceName = c.Tracing.ServiceName
	}
	if c.Tracing.Environment != "" {
		tc.Environment = c.Tracing.Environment
	}
	return tc
}
