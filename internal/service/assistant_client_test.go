package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"projectcompanion/config"
	"projectcompanion/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *AssistantClient {
	return NewAssistantClient(config.AIConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "test-model",
		MaxTokens:   100,
		Temperature: 0.5,
	})
}

func TestSendBuildsChatCompletionRequest(t *testing.T) {
	var got chatCompletionRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Hello!"}},
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	history := []model.ChatMessage{
		{Role: model.RoleUser, Content: "earlier"},
		{Role: model.RoleAssistant, Content: "earlier reply"},
	}

	reply, err := client.Send(context.Background(), "system text", history, "current")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-model", got.Model)

	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "system text", got.Messages[0].Content)
	assert.Equal(t, "earlier", got.Messages[1].Content)
	assert.Equal(t, "earlier reply", got.Messages[2].Content)
	assert.Equal(t, "user", got.Messages[3].Role)
	assert.Equal(t, "current", got.Messages[3].Content)
}

func TestSendUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Send(context.Background(), "sys", nil, "msg")
	require.Error(t, err)
}

func TestSendCircuitOpensAfterRepeatedFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := client.Send(ctx, "sys", nil, "msg")
		require.Error(t, err)
	}

	// After the failure threshold the breaker short-circuits without
	// touching the upstream.
	assert.Equal(t, 3, calls)
}

func TestSendNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Send(context.Background(), "sys", nil, "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
