package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mnemotree/mnemocore/pkg/config"
)

// OllamaProvider calls a local Ollama instance's /api/embeddings
// endpoint, the same wire contract the teacher's AI manager used.
type OllamaProvider struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewOllamaProvider builds an OllamaProvider from embedding config.
func NewOllamaProvider(cfg *config.EmbeddingConfig) *OllamaProvider {
	p := &OllamaProvider{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if p.baseURL == "" {
		p.baseURL = "http://localhost:11434"
	}
	if p.model == "" {
		p.model = "nomic-embed-text"
	}
	if p.dimensions == 0 {
		p.dimensions = 768
	}
	if p.httpClient.Timeout == 0 {
		p.httpClient.Timeout = 60 * time.Second
	}
	return p
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// GenerateEmbedding requests an embedding for text from Ollama.
func (p *OllamaProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	reqBody := ollamaEmbeddingRequest{Model: p.model, Prompt: text}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var embResp ollamaEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	vec := make([]float32, len(embResp.Embedding))
	for i, v := range embResp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dimensions reports the configured embedding width.
func (p *OllamaProvider) Dimensions() int {
	return p.dimensions
}

// IsAvailable checks whether Ollama is reachable, mirroring the
// teacher's health-check-before-use pattern.
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
