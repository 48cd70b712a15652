package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudProviderSendsChatCompletion(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/openai/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &payload))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"SELECT 1"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	provider, err := NewCloudProvider(CloudConfig{BaseURL: server.URL + "/openai/v1/", APIKey: "secret"})
	require.NoError(t, err)
	assert.Equal(t, KindCloud, provider.Kind())

	content, err := provider.Complete(context.Background(), "system prompt", "Database: shop\nQuery: q", "llama-3.3-70b-versatile")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", content)

	assert.Equal(t, "llama-3.3-70b-versatile", payload["model"])
	assert.EqualValues(t, 512, payload["max_tokens"])
	assert.InDelta(t, 0.1, payload["temperature"], 1e-6)
	messages, ok := payload["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, map[string]any{"role": "system", "content": "system prompt"}, messages[0])
	assert.Equal(t, map[string]any{"role": "user", "content": "Database: shop\nQuery: q"}, messages[1])
}

func TestCloudProviderReturnsBodyVerbatimOnFailure(t *testing.T) {
	bodies := []struct {
		status int
		body   string
	}{
		{status: http.StatusTooManyRequests, body: `{"error":{"message":"Rate limit reached","type":"tokens","code":"rate_limit_exceeded"}}`},
		{status: http.StatusBadGateway, body: "upstream exploded\n"},
	}
	for _, tc := range bodies {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))

		provider, err := NewCloudProvider(CloudConfig{BaseURL: server.URL, APIKey: "secret"})
		require.NoError(t, err)
		content, err := provider.Complete(context.Background(), "s", "u", "m")
		server.Close()

		assert.Empty(t, content)
		var providerErr *ProviderError
		require.ErrorAs(t, err, &providerErr)
		assert.Equal(t, KindCloud, providerErr.Provider)
		assert.Equal(t, tc.status, providerErr.StatusCode)
		assert.Equal(t, tc.body, providerErr.Body)
		assert.Contains(t, err.Error(), tc.body)
	}
}

func TestCloudProviderRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","choices":[]}`))
	}))
	defer server.Close()

	provider, err := NewCloudProvider(CloudConfig{BaseURL: server.URL, APIKey: "secret"})
	require.NoError(t, err)
	_, err = provider.Complete(context.Background(), "s", "u", "m")
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusOK, providerErr.StatusCode)
}

func TestCloudProviderReportsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	provider, err := NewCloudProvider(CloudConfig{BaseURL: url, APIKey: "secret"})
	require.NoError(t, err)
	_, err = provider.Complete(context.Background(), "s", "u", "m")
	var unavailable *ProviderUnavailable
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, ReasonUnreachable, unavailable.Reason)
	assert.Equal(t, url+"/chat/completions", unavailable.Endpoint)
}

func TestCloudProviderPassesCancellationThrough(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	provider, err := NewCloudProvider(CloudConfig{BaseURL: server.URL, APIKey: "secret"})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = provider.Complete(ctx, "s", "u", "m")
	assert.True(t, errors.Is(err, context.Canceled), "err = %v", err)
	var unavailable *ProviderUnavailable
	assert.False(t, errors.As(err, &unavailable))
}

func TestNewCloudProviderValidatesConfig(t *testing.T) {
	_, err := NewCloudProvider(CloudConfig{APIKey: "k"})
	assert.Error(t, err)
	_, err = NewCloudProvider(CloudConfig{BaseURL: "https://api.groq.com/openai/v1"})
	assert.Error(t, err)
}
