package llm

type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// EmbeddingResponse represents a single embedding result.
type EmbeddingResponse struct {
	Embedding  []float64 `json:"embedding"`
	TokenCount int       `json:"token_count"`
}
