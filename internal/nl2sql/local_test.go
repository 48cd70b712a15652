package nl2sql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderSendsNonStreamingChat(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"model":"qwen3:4b","message":{"role":"assistant","content":"SELECT 2"},"done":true}`))
	}))
	defer server.Close()

	provider, err := NewLocalProvider(LocalConfig{BaseURL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, KindLocal, provider.Kind())

	content, err := provider.Complete(context.Background(), "sys", "user", "qwen3:4b")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", content)

	assert.Equal(t, "qwen3:4b", payload["model"])
	assert.Equal(t, false, payload["stream"])
	assert.Equal(t, map[string]any{"temperature": 0.1, "num_predict": float64(512)}, payload["options"])
	messages, ok := payload["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestLocalProviderReportsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	provider, err := NewLocalProvider(LocalConfig{BaseURL: url})
	require.NoError(t, err)
	content, err := provider.Complete(context.Background(), "s", "u", "m")
	assert.Empty(t, content)

	var unavailable *ProviderUnavailable
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, ReasonUnreachable, unavailable.Reason)
	assert.Contains(t, err.Error(), "unreachable")
	assert.Contains(t, err.Error(), "make sure it is running")
}

func TestLocalProviderReportsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	provider, err := NewLocalProvider(LocalConfig{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	_, err = provider.Complete(context.Background(), "s", "u", "m")

	var unavailable *ProviderUnavailable
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, ReasonTimeout, unavailable.Reason)
	assert.Contains(t, err.Error(), "might still be loading")
}

func TestLocalProviderNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'nope' not found, try pulling it first"}`))
	}))
	defer server.Close()

	provider, err := NewLocalProvider(LocalConfig{BaseURL: server.URL})
	require.NoError(t, err)
	_, err = provider.Complete(context.Background(), "s", "u", "nope")

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusNotFound, providerErr.StatusCode)
	assert.Equal(t, `{"error":"model 'nope' not found, try pulling it first"}`, providerErr.Body)
}

func TestLocalProviderRejectsEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"  "}}`))
	}))
	defer server.Close()

	provider, err := NewLocalProvider(LocalConfig{BaseURL: server.URL})
	require.NoError(t, err)
	_, err = provider.Complete(context.Background(), "s", "u", "m")
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
}

func TestParseKind(t *testing.T) {
	for raw, want := range map[string]Kind{"cloud": KindCloud, "Groq": KindCloud, "local": KindLocal, " ollama ": KindLocal} {
		got, err := ParseKind(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("anthropic")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
