package llm

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
	openaiChatURL  = "https://api.openai.com/v1/chat/completions"
	openaiEmbedURL = "https://api.openai.com/v1/embeddings"
)

// openAIProvider talks to OpenAI-compatible chat-completions and embeddings
// endpoints with plain net/http — no SDK exists in this lineage's
// dependency graph for either call, so neither is introduced here.
type openAIProvider struct {
	name           string
	apiKey         string
	chatModel      string
	embeddingModel string
	baseChatURL    string
	baseEmbedURL   string
	httpClient     *http.Client
}

// NewOpenAIProvider builds a Provider against the OpenAI chat + embeddings
// API, or an OpenAI-compatible endpoint when baseURL is non-empty (so the
// same type also serves locally-hosted OpenAI-compatible servers).
func NewOpenAIProvider(name, apiKey, chatModel, embeddingModel, baseURL string, timeout time.Duration) Provider {
	chatURL, embedURL := openaiChatURL, openaiEmbedURL
	if baseURL != "" {
		chatURL = baseURL + "/chat/completions"
		embedURL = baseURL + "/embeddings"
	}
	return &openAIProvider{
		name:           name,
		apiKey:         apiKey,
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		baseChatURL:    chatURL,
		baseEmbedURL:   embedURL,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

func (p *openAIProvider) Name() string { return p.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *openAIProvider) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	body := chatRequest{
		Model:       p.chatModel,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	raw, err := p.post(ctx, p.baseChatURL, body)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%s: decode chat response: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices in response", p.name)
	}
	return resp.Choices[0].Message.Content, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (p *openAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	raw, err := p.post(ctx, p.baseEmbedURL, embedRequest{Model: p.embeddingModel, Input: texts})
	if err != nil {
		return nil, err
	}

	var resp embedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%s: decode embed response: %w", p.name, err)
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(vecs) {
			vecs[d.Index] = d.Embedding
		}
	}
	return vecs, nil
}

func (p *openAIProvider) post(ctx context.Context, url string, payload any) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", p.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

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
