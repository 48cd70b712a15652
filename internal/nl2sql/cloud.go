package nl2sql

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

type CloudConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds a single request. Zero leaves the wait to the caller's context.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// CloudProvider talks to a hosted OpenAI-compatible chat completion endpoint.
type CloudProvider struct {
	client   *openai.Client
	endpoint string
}

func NewCloudProvider(cfg CloudConfig) (*CloudProvider, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("cloud base URL is required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("cloud api key is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = baseURL
	clientConfig.HTTPClient = &capturingDoer{next: httpClient}

	return &CloudProvider{
		client:   openai.NewClientWithConfig(clientConfig),
		endpoint: baseURL + "/chat/completions",
	}, nil
}

func (p *CloudProvider) Kind() Kind {
	return KindCloud
}

func (p *CloudProvider) Complete(ctx context.Context, systemPrompt, userMessage, model string) (string, error) {
	capture := &responseCapture{}
	resp, err := p.client.CreateChatCompletion(withResponseCapture(ctx, capture), openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
	})
	if err != nil {
		if capture.status == 0 {
			return "", classifyTransportError(KindCloud, p.endpoint, err)
		}
		if capture.failed() {
			return "", &ProviderError{Provider: KindCloud, StatusCode: capture.status, Body: capture.body, Cause: err}
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
			return "", &ProviderError{Provider: KindCloud, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Cause: err}
		}
		return "", &ProviderError{Provider: KindCloud, StatusCode: capture.status, Cause: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: KindCloud, StatusCode: capture.status, Cause: errors.New("response has no choices")}
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &ProviderError{Provider: KindCloud, StatusCode: capture.status, Cause: errors.New("response content is empty")}
	}
	return content, nil
}

type captureKey struct{}

// responseCapture records the status of the last response and, for failures,
// the raw body that the openai client would otherwise reshape.
type responseCapture struct {
	status int
	body   string
}

func (c *responseCapture) failed() bool {
	return c.status < 200 || c.status > 299
}

func withResponseCapture(ctx context.Context, capture *responseCapture) context.Context {
	return context.WithValue(ctx, captureKey{}, capture)
}

type capturingDoer struct {
	next *http.Client
}

func (d *capturingDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.next.Do(req)
	if err != nil {
		return nil, err
	}
	capture, ok := req.Context().Value(captureKey{}).(*responseCapture)
	if !ok {
		return resp, nil
	}
	capture.status = resp.StatusCode
	if !capture.failed() {
		return resp, nil
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("read error response body: %w", readErr)
	}
	capture.body = string(body)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
