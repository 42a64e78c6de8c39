package llm

import (
	"fmt"
	"strings"
	"time"
)

// EmbedderConfig holds everything needed to build an Embedder.
type EmbedderConfig struct {
	Provider   string // "openai", "ollama", "hash"
	Model      string
	APIKey     string
	BaseURL    string
	Dimension  int
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// NewEmbedder builds the configured embedder. Network providers are wrapped
// with retry logic when MaxRetries is positive.
func NewEmbedder(cfg EmbedderConfig) (Embedder, error) {
	var e Embedder

	switch cfg.Provider {
	case "hash", "":
		return NewHashEmbedder(cfg.Dimension), nil
	case "openai":
		if cfg.Model == "" {
			cfg.Model = "text-embedding-3-small"
		}
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai embedder requires an api key")
		}
		client := NewUnifiedClient(UnifiedConfig{OpenAIKey: cfg.APIKey, OpenAIBaseURL: cfg.BaseURL})
		e = NewModelEmbedder(client, "openai", cfg.Model, cfg.Dimension)
	case "ollama":
		if cfg.Model == "" {
			cfg.Model = "nomic-embed-text"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		client := NewUnifiedClient(UnifiedConfig{OllamaURL: baseURL})
		model := cfg.Model
		if !strings.HasPrefix(model, "ollama/") {
			model = "ollama/" + model
		}
		e = NewModelEmbedder(client, "ollama", model, cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (want openai, ollama or hash)", cfg.Provider)
	}

	if cfg.MaxRetries > 0 {
		rc := DefaultRetryConfig()
		rc.MaxRetries = cfg.MaxRetries
		if cfg.RetryDelay > 0 {
			rc.RetryDelay = cfg.RetryDelay
		}
		if cfg.Timeout > 0 {
			rc.Timeout = cfg.Timeout
		}
		e = NewRetryEmbedder(e, rc)
	}
	return e, nil
}
