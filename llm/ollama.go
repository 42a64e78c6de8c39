package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaEmbedClient handles Ollama-native embedding API.
type OllamaEmbedClient struct {
	baseURL string
	client  *http.Client
}

// NewOllamaEmbedClient creates a client for Ollama's native embedding API.
func NewOllamaEmbedClient(baseURL string) *OllamaEmbedClient {
	host := strings.TrimSuffix(baseURL, "/")
	host = strings.TrimSuffix(host, "/v1")
	return &OllamaEmbedClient{
		baseURL: host,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Embed generates an embedding for a single input using Ollama's native API.
func (c *OllamaEmbedClient) Embed(ctx context.Context, model, input string) (*EmbeddingResponse, error) {
	results, err := c.EmbedBatch(ctx, model, []string{input})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return &results[0], nil
}

// EmbedBatch generates embeddings for multiple inputs, one request each.
func (c *OllamaEmbedClient) EmbedBatch(ctx context.Context, model string, inputs []string) ([]EmbeddingResponse, error) {
	results := make([]EmbeddingResponse, 0, len(inputs))
	for _, input := range inputs {
		r, err := c.embedOne(ctx, model, input)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

func (c *OllamaEmbedClient) embedOne(ctx context.Context, model, input string) (EmbeddingResponse, error) {
	body, err := json.Marshal(map[string]any{
		"model": model,
		"input": input,
	})
	if err != nil {
		return EmbeddingResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return EmbeddingResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return EmbeddingResponse{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return EmbeddingResponse{}, fmt.Errorf("Ollama API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return EmbeddingResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return EmbeddingResponse{}, fmt.Errorf("no embeddings in response")
	}

	return EmbeddingResponse{
		Embedding:  result.Embeddings[0],
		TokenCount: result.PromptEvalCount,
	}, nil
}

type ollamaEmbedResponse struct {
	Embeddings      [][]float64 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}
