package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultLocalTimeout = 30 * time.Second

type LocalConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// LocalProvider talks to an Ollama-compatible /api/chat endpoint with
// streaming disabled.
type LocalProvider struct {
	endpoint string
	client   *http.Client
}

func NewLocalProvider(cfg LocalConfig) (*LocalProvider, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("local base URL is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultLocalTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &LocalProvider{endpoint: baseURL + "/api/chat", client: client}, nil
}

func (p *LocalProvider) Kind() Kind {
	return KindLocal
}

type localMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type localOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type localChatRequest struct {
	Model    string         `json:"model"`
	Messages []localMessage `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  localOptions   `json:"options"`
}

type localChatResponse struct {
	Message localMessage `json:"message"`
}

func (p *LocalProvider) Complete(ctx context.Context, systemPrompt, userMessage, model string) (string, error) {
	body, err := json.Marshal(localChatRequest{
		Model: model,
		Messages: []localMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		Stream:  false,
		Options: localOptions{Temperature: Temperature, NumPredict: MaxTokens},
	})
	if err != nil {
		return "", fmt.Errorf("marshal local chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build local chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", classifyTransportError(KindLocal, p.endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransportError(KindLocal, p.endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ProviderError{Provider: KindLocal, StatusCode: resp.StatusCode, Body: string(rawBody)}
	}

	var parsed localChatResponse
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return "", &ProviderError{Provider: KindLocal, StatusCode: resp.StatusCode, Body: string(rawBody), Cause: fmt.Errorf("decode local chat response: %w", err)}
	}
	if strings.TrimSpace(parsed.Message.Content) == "" {
		return "", &ProviderError{Provider: KindLocal, StatusCode: resp.StatusCode, Body: string(rawBody), Cause: errors.New("response content is empty")}
	}
	return parsed.Message.Content, nil
}
