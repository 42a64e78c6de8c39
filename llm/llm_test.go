package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOpenAIClient_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "text-embedding-3-small" || len(req.Input) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		// Deliberately out of order.
		fmt.Fprint(w, `{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}],"usage":{"prompt_tokens":4,"total_tokens":4}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClientWithConfig(ClientConfig{APIKey: "sk-test", BaseURL: srv.URL})
	got, err := c.EmbedBatch(context.Background(), "text-embedding-3-small", []string{"fruit", "vehicle"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Embedding[0] != 1 || got[1].Embedding[1] != 1 {
		t.Fatalf("unexpected embeddings %+v", got)
	}
	if got[0].TokenCount != 2 {
		t.Fatalf("expected 2 tokens per input, got %d", got[0].TokenCount)
	}
}

func TestOpenAIClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewOpenAIClientWithConfig(ClientConfig{APIKey: "x", BaseURL: srv.URL})
	_, err := c.Embed(context.Background(), "text-embedding-3-small", "fruit")
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Fatalf("expected status 401 error, got %v", err)
	}
}

func TestOllamaEmbedClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "nomic-embed-text" {
			t.Errorf("unexpected model %v", req["model"])
		}
		fmt.Fprint(w, `{"embeddings":[[0.5,0.5]],"prompt_eval_count":3}`)
	}))
	defer srv.Close()

	c := NewOllamaEmbedClient(srv.URL + "/v1/")
	got, err := c.EmbedBatch(context.Background(), "nomic-embed-text", []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].TokenCount != 3 {
		t.Fatalf("unexpected results %+v", got)
	}
}

func TestUnifiedClient_Routing(t *testing.T) {
	tests := []struct {
		name       string
		cfg        UnifiedConfig
		model      string
		wantNil    bool
		wantModel  string
		wantOllama bool
	}{
		{"ollama prefix", UnifiedConfig{OllamaURL: "http://o"}, "ollama/nomic-embed-text", false, "nomic-embed-text", true},
		{"ollama prefix without ollama", UnifiedConfig{OpenAIKey: "k"}, "ollama/nomic-embed-text", true, "", false},
		{"openai model", UnifiedConfig{OpenAIKey: "k", OllamaURL: "http://o"}, "text-embedding-3-small", false, "text-embedding-3-small", false},
		{"unknown model defaults to openai", UnifiedConfig{OpenAIKey: "k", OllamaURL: "http://o"}, "custom", false, "custom", false},
		{"unknown model falls back to ollama", UnifiedConfig{OllamaURL: "http://o"}, "custom", false, "custom", true},
		{"nothing configured", UnifiedConfig{}, "custom", true, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUnifiedClient(tt.cfg)
			client, model := u.resolveEmbeddingClient(tt.model)
			if tt.wantNil {
				if client != nil {
					t.Fatalf("expected no client, got %T", client)
				}
				return
			}
			if client == nil {
				t.Fatal("expected a client")
			}
			if model != tt.wantModel {
				t.Fatalf("model = %q, want %q", model, tt.wantModel)
			}
			if _, isOllama := client.(*OllamaEmbedClient); isOllama != tt.wantOllama {
				t.Fatalf("client = %T, wantOllama %v", client, tt.wantOllama)
			}
		})
	}
}

type stubClient struct {
	vec []float64
	err error
}

func (s *stubClient) Embed(ctx context.Context, model, input string) (*EmbeddingResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &EmbeddingResponse{Embedding: s.vec}, nil
}

func (s *stubClient) EmbedBatch(ctx context.Context, model string, inputs []string) ([]EmbeddingResponse, error) {
	return nil, errors.New("not used")
}

func TestModelEmbedder(t *testing.T) {
	ctx := context.Background()

	e := NewModelEmbedder(&stubClient{vec: []float64{1, 2, 3}}, "openai", "m", 3)
	if v, err := e.Embed(ctx, "x"); err != nil || len(v) != 3 {
		t.Fatalf("unexpected result %v %v", v, err)
	}

	e = NewModelEmbedder(&stubClient{vec: []float64{1, 2}}, "openai", "m", 3)
	if _, err := e.Embed(ctx, "x"); err == nil {
		t.Fatal("expected dimension error")
	}

	e = NewModelEmbedder(&stubClient{vec: nil}, "openai", "m", 0)
	if _, err := e.Embed(ctx, "x"); err == nil {
		t.Fatal("expected empty embedding error")
	}
}

type scriptedEmbedder struct {
	errs  []error
	calls int
}

func (s *scriptedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return []float64{1}, nil
}

func fastRetry(n int) *RetryConfig {
	return &RetryConfig{MaxRetries: n, RetryDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Timeout: time.Second}
}

func TestRetryEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("retries transient errors", func(t *testing.T) {
		inner := &scriptedEmbedder{errs: []error{
			errors.New("API error (status 503): overloaded"),
			errors.New("API error (status 429): slow down"),
		}}
		if _, err := NewRetryEmbedder(inner, fastRetry(3)).Embed(ctx, "x"); err != nil {
			t.Fatal(err)
		}
		if inner.calls != 3 {
			t.Fatalf("expected 3 calls, got %d", inner.calls)
		}
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		inner := &scriptedEmbedder{errs: []error{errors.New("API error (status 401): bad key")}}
		_, err := NewRetryEmbedder(inner, fastRetry(3)).Embed(ctx, "x")
		if err == nil || !strings.Contains(err.Error(), "non-retryable") {
			t.Fatalf("expected non-retryable error, got %v", err)
		}
		if inner.calls != 1 {
			t.Fatalf("expected 1 call, got %d", inner.calls)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		fail := errors.New("API error (status 502): bad gateway")
		inner := &scriptedEmbedder{errs: []error{fail, fail, fail}}
		_, err := NewRetryEmbedder(inner, fastRetry(2)).Embed(ctx, "x")
		if !errors.Is(err, fail) || inner.calls != 3 {
			t.Fatalf("expected exhaustion after 3 calls, got %v (%d calls)", err, inner.calls)
		}
	})
}

func TestCalculateBackoff(t *testing.T) {
	r := NewRetryEmbedder(nil, &RetryConfig{RetryDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond})
	tests := map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		3: 300 * time.Millisecond,
		6: 300 * time.Millisecond,
	}
	for attempt, want := range tests {
		if got := r.calculateBackoff(attempt); got != want {
			t.Errorf("attempt %d: got %s, want %s", attempt, got, want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{errors.New("API error (status 500): boom"), true},
		{errors.New("API error (status 429): insufficient_quota"), false},
		{errors.New("Ollama API error (status 404): model not found"), false},
		{errors.New("model m returned 2 dimensions, expected 3"), false},
		{errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		if got := isRetryable(tt.err); got != tt.want {
			t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	h := NewHashEmbedder(0)
	if h.Dimension() != DefaultHashDimension {
		t.Fatalf("expected default dimension, got %d", h.Dimension())
	}

	a, err := h.Embed(ctx, "Fresh Fruit")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := h.Embed(ctx, "  fresh   FRUIT ")
	if len(a) != DefaultHashDimension {
		t.Fatalf("unexpected length %d", len(a))
	}
	if math.Abs(cosine(a, b)-1) > 1e-9 {
		t.Fatalf("expected identical embeddings for case and spacing variants, cosine=%f", cosine(a, b))
	}

	var norm float64
	for _, v := range a {
		norm += v * v
	}
	if math.Abs(norm-1) > 1e-9 {
		t.Fatalf("expected unit vector, norm^2=%f", norm)
	}

	fruits, _ := h.Embed(ctx, "fruits")
	vehicle, _ := h.Embed(ctx, "vehicle")
	fruit, _ := h.Embed(ctx, "fruit")
	if cosine(fruit, fruits) <= cosine(fruit, vehicle) {
		t.Fatal("expected shared spelling to score higher than unrelated word")
	}

	for _, blank := range []string{"", "   ", "\t\n"} {
		if _, err := h.Embed(ctx, blank); !errors.Is(err, ErrNoFeatures) {
			t.Fatalf("Embed(%q): expected ErrNoFeatures, got %v", blank, err)
		}
	}
}

func TestHashEmbedder_SymbolsOnly(t *testing.T) {
	ctx := context.Background()
	h := NewHashEmbedder(0)

	vecs := make(map[string][]float64)
	for _, text := range []string{"🍎", "🍐", "---", "!!! ...", " 🍎 "} {
		v, err := h.Embed(ctx, text)
		if err != nil {
			t.Fatalf("Embed(%q): %v", text, err)
		}
		if len(v) != DefaultHashDimension {
			t.Fatalf("Embed(%q): unexpected length %d", text, len(v))
		}
		vecs[text] = v
	}

	if math.Abs(cosine(vecs["🍎"], vecs[" 🍎 "])-1) > 1e-9 {
		t.Fatal("surrounding whitespace must not change a symbol embedding")
	}
	if math.Abs(cosine(vecs["🍎"], vecs["🍐"])-1) < 1e-9 {
		t.Fatal("different symbols must not share an embedding")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		cfg  EmbedderConfig
		want string
	}{
		{EmbedderConfig{}, "hash:256"},
		{EmbedderConfig{Provider: "hash", Dimension: 64}, "hash:64"},
		{EmbedderConfig{Provider: "openai", APIKey: "k"}, "openai:text-embedding-3-small"},
		{EmbedderConfig{Provider: "ollama", MaxRetries: 2}, "ollama:ollama/nomic-embed-text (retries=2)"},
	}
	for _, tt := range tests {
		e, err := NewEmbedder(tt.cfg)
		if err != nil {
			t.Fatal(err)
		}
		if got := Describe(e); got != tt.want {
			t.Errorf("Describe = %q, want %q", got, tt.want)
		}
	}
}

func TestNewEmbedder(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EmbedderConfig
		want    string
		wantErr bool
	}{
		{"default is hash", EmbedderConfig{}, "*llm.HashEmbedder", false},
		{"openai", EmbedderConfig{Provider: "openai", APIKey: "k"}, "*llm.ModelEmbedder", false},
		{"openai without key", EmbedderConfig{Provider: "openai"}, "", true},
		{"ollama with retries", EmbedderConfig{Provider: "ollama", MaxRetries: 2}, "*llm.RetryEmbedder", false},
		{"unknown", EmbedderConfig{Provider: "bert"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEmbedder(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := fmt.Sprintf("%T", e); got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}
