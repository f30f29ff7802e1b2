package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultEmbeddingBaseURL = "https://api.openai.com/v1"
	defaultEmbeddingModel   = "text-embedding-ada-002"
)

// EmbeddingService produces embeddings through an OpenAI-compatible API.
// Ingestion and retrieval must share one instance so both sides embed into the
// same vector space.
type EmbeddingService struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

type EmbeddingConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func NewEmbeddingService(cfg EmbeddingConfig) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultEmbeddingBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultEmbeddingModel
	}
	return &EmbeddingService{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Embed returns the embedding vector for the given text. A missing API key
// fails here, on first use, rather than at startup. Failures are never
// retried; an input the provider rejects (oversized included) surfaces as an
// error to the caller.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}

	body, err := json.Marshal(map[string]string{
		"model": s.model,
		"input": text,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding request failed: %s: %s", resp.Status, bytes.TrimSpace(detail))
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding data received from provider")
	}
	return out.Data[0].Embedding, nil
}
