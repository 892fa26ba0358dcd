package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Embedder turns text into vectors via an OpenAI-compatible embeddings API.
// Ollama's /v1 endpoint satisfies the same contract, so both hosted and
// local models work through one client.
type Embedder struct {
	endpoint  string
	model     string
	apiKey    string
	dimension int

	once    sync.Once
	dimSeen int
}

// NewEmbedder creates an embeddings client. apiKey may be empty for local
// endpoints.
func NewEmbedder(endpoint, model, apiKey string, dimension int) *Embedder {
	return &Embedder{endpoint: endpoint, model: model, apiKey: apiKey, dimension: dimension}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text, in order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding: API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embedding: got %d vectors for %d inputs", len(result.Data), len(texts))
	}

	vectors := make([][]float32, 0, len(result.Data))
	for _, d := range result.Data {
		vectors = append(vectors, d.Embedding)
	}
	if len(vectors) > 0 && len(vectors[0]) > 0 {
		e.once.Do(func() { e.dimSeen = len(vectors[0]) })
	}
	return vectors, nil
}

// Dimension returns the vector size, preferring the dimension observed from
// the first real response over the configured default.
func (e *Embedder) Dimension() int {
	if e.dimSeen > 0 {
		return e.dimSeen
	}
	return e.dimension
}
