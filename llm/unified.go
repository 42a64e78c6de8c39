package llm

import (
	"context"
	"fmt"
	"strings"
)

// UnifiedClient routes embedding requests by model name:
// "ollama/<model>" goes to Ollama, everything else to OpenAI when configured.
type UnifiedClient struct {
	openai      *OpenAIClient
	ollamaEmbed *OllamaEmbedClient
}

type UnifiedConfig struct {
	OpenAIKey     string
	OpenAIBaseURL string
	OllamaURL     string
}

func NewUnifiedClient(cfg UnifiedConfig) *UnifiedClient {
	u := &UnifiedClient{}

	if cfg.OpenAIKey != "" || cfg.OpenAIBaseURL != "" {
		u.openai = NewOpenAIClientWithConfig(ClientConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
		})
	}

	if cfg.OllamaURL != "" {
		u.ollamaEmbed = NewOllamaEmbedClient(cfg.OllamaURL)
	}

	return u
}

// Embed generates an embedding for a single input.
func (u *UnifiedClient) Embed(ctx context.Context, model, input string) (*EmbeddingResponse, error) {
	client, resolvedModel := u.resolveEmbeddingClient(model)
	if client == nil {
		return nil, fmt.Errorf("no embedding client available for model: %s", model)
	}
	return client.Embed(ctx, resolvedModel, input)
}

// EmbedBatch generates embeddings for multiple inputs.
func (u *UnifiedClient) EmbedBatch(ctx context.Context, model string, inputs []string) ([]EmbeddingResponse, error) {
	client, resolvedModel := u.resolveEmbeddingClient(model)
	if client == nil {
		return nil, fmt.Errorf("no embedding client available for model: %s", model)
	}
	return client.EmbedBatch(ctx, resolvedModel, inputs)
}

func (u *UnifiedClient) resolveEmbeddingClient(model string) (EmbeddingClient, string) {
	if strings.HasPrefix(model, "ollama/") {
		if u.ollamaEmbed == nil {
			return nil, model
		}
		return u.ollamaEmbed, strings.TrimPrefix(model, "ollama/")
	}

	// text-embedding-3-small, text-embedding-3-large, ...
	if strings.HasPrefix(model, "text-embedding-") {
		if u.openai == nil {
			return nil, model
		}
		return u.openai, model
	}

	if u.openai != nil {
		return u.openai, model
	}
	if u.ollamaEmbed != nil {
		return u.ollamaEmbed, model
	}
	return nil, model
}

var (
	_ EmbeddingClient = (*UnifiedClient)(nil)
	_ EmbeddingClient = (*OpenAIClient)(nil)
	_ EmbeddingClient = (*OllamaEmbedClient)(nil)
)
