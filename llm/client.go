// Package llm turns text into embedding vectors using hosted or local
// embedding models.
package llm

import (
	"context"
)

// EmbeddingClient generates embeddings for a named model.
type EmbeddingClient interface {
	Embed(ctx context.Context, model, input string) (*EmbeddingResponse, error)
	EmbedBatch(ctx context.Context, model string, inputs []string) ([]EmbeddingResponse, error)
}

// Embedder maps text to a fixed-length vector. Implementations are bound to
// a single model so every vector they return is comparable with the others.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout int
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout: 60,
	}
}
