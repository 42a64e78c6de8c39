package llm

import (
	"context"
	"fmt"

	"github.com/hubenschmidt/go-semcat/observability"
)

// ModelEmbedder binds an EmbeddingClient to one model. When dimension is
// positive every vector is checked against it.
type ModelEmbedder struct {
	client    EmbeddingClient
	provider  string
	model     string
	dimension int
}

func NewModelEmbedder(client EmbeddingClient, provider, model string, dimension int) *ModelEmbedder {
	return &ModelEmbedder{client: client, provider: provider, model: model, dimension: dimension}
}

func (e *ModelEmbedder) Model() string {
	return e.model
}

func (e *ModelEmbedder) Provider() string {
	return e.provider
}

// Describe names the provider and model behind e for logs.
func Describe(e Embedder) string {
	switch v := e.(type) {
	case *RetryEmbedder:
		return Describe(v.inner) + fmt.Sprintf(" (retries=%d)", v.config.MaxRetries)
	case *ModelEmbedder:
		return v.Provider() + ":" + v.Model()
	case *HashEmbedder:
		return fmt.Sprintf("hash:%d", v.Dimension())
	default:
		return fmt.Sprintf("%T", e)
	}
}

func (e *ModelEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, span := observability.StartEmbedSpan(ctx, e.provider, e.model)
	defer span.End()

	resp, err := e.client.Embed(ctx, e.model, text)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		err := fmt.Errorf("model %s returned an empty embedding", e.model)
		observability.RecordError(span, err)
		return nil, err
	}
	if e.dimension > 0 && len(resp.Embedding) != e.dimension {
		err := fmt.Errorf("model %s returned %d dimensions, expected %d", e.model, len(resp.Embedding), e.dimension)
		observability.RecordError(span, err)
		return nil, err
	}
	return resp.Embedding, nil
}
