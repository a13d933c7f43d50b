package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rizal/memdex/internal/observability"
)

// LocalProvider implements Provider for an Ollama-compatible local model server
type LocalProvider struct {
	endpoint   string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewLocalProvider creates a provider that talks to a local embedding server.
// The endpoint is the server base URL, e.g. http://localhost:11434.
func NewLocalProvider(endpoint, model string, dimension int) *LocalProvider {
	if dimension <= 0 {
		dimension = 768 // nomic-embed-text default
	}

	return &LocalProvider{
		endpoint:  endpoint,
		model:     model,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (p *LocalProvider) Name() string { return "local" }

func (p *LocalProvider) Model() string { return p.model }

func (p *LocalProvider) Dimension() int { return p.dimension }

func (p *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]interface{}{
		"model":  p.model,
		"prompt": text,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint+"/api/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	observability.RecordEmbeddingRequest(p.Name(), time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call local embedding server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("local embedding server error (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("local embedding server returned empty embedding")
	}

	return result.Embedding, nil
}

func (p *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	// The Ollama embeddings endpoint is single-prompt only
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}
