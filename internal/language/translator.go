package language

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// restTranslator is a from-scratch client against a configurable HTTP
// translation endpoint, the same no-SDK raw-HTTP shape internal/llm uses
// for its chat and embedding providers — no translation SDK exists in the
// example pack's dependency ecosystem.
type restTranslator struct {
	baseURL    string
	httpClient *http.Client
}

// NewRESTTranslator builds a Translator against baseURL, expecting a
// POST /translate endpoint accepting {text, source, target} and returning
// {translated_text}.
func NewRESTTranslator(baseURL string, timeout time.Duration) Translator {
	return &restTranslator{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

func (t *restTranslator) Translate(text, src, dst string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.httpClient.Timeout)
	defer cancel()

	body, err := json.Marshal(translateRequest{Text: text, Source: src, Target: dst})
	if err != nil {
		return "", fmt.Errorf("marshal translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send translate request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read translate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate endpoint status %d: %s", resp.StatusCode, string(raw))
	}

	var out translateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode translate response: %w", err)
	}
	return out.TranslatedText, nil
}
