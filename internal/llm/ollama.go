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

// ollamaProvider talks to a locally-hosted Ollama server, which exposes an
// OpenAI-incompatible JSON shape (single "prompt"/"response" fields rather
// than a chat message array). Kept as a distinct Provider rather than
// folded into openAIProvider because the wire shape genuinely differs, the
// same reason this lineage keeps separate provider packages per backend
// instead of one parametrized client.
type ollamaProvider struct {
	name           string
	baseURL        string
	chatModel      string
	embeddingModel string
	httpClient     *http.Client
}

// NewOllamaProvider builds a Provider against a local Ollama server at
// baseURL (e.g. "http://localhost:11434").
func NewOllamaProvider(name, baseURL, chatModel, embeddingModel string, timeout time.Duration) Provider {
	return &ollamaProvider{
		name:           name,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

func (p *ollamaProvider) Name() string { return p.name }

type ollamaGenerateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (p *ollamaProvider) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	body := ollamaGenerateRequest{
		Model:       p.chatModel,
		Prompt:      prompt,
		Stream:      false,
		Temperature: temperature,
	}
	raw, err := p.post(ctx, "/api/generate", body)
	if err != nil {
		return "", err
	}
	var resp ollamaGenerateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%s: decode generate response: %w", p.name, err)
	}
	return resp.Response, nil
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *ollamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		raw, err := p.post(ctx, "/api/embeddings", ollamaEmbedRequest{Model: p.embeddingModel, Input: text})
		if err != nil {
			return nil, err
		}
		var resp ollamaEmbedResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("%s: decode embed response: %w", p.name, err)
		}
		vecs[i] = resp.Embedding
	}
	return vecs, nil
}

func (p *ollamaProvider) post(ctx context.Context, path string, payload any) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", p.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", p.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: send request: %w", p.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response body: %w", p.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d: %s", p.name, resp.StatusCode, string(raw))
	}
	return raw, nil
}
