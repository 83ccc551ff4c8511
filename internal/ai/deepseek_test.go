package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatCompletionBody = `{
  "id": "cmpl-1",
  "object": "chat.completion",
  "created": 1760000000,
  "model": "deepseek-chat",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "{\"summary\":\"ok\"}"}
  }]
}`

func TestDeepSeekGenerate(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer ds-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletionBody))
	}))
	defer srv.Close()

	d := NewDeepSeekProvider("ds-key", "", srv.URL)
	got, err := d.Generate(context.Background(), Article{Title: "Vote", URL: "https://example.com/v"})
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, got)

	assert.Equal(t, "deepseek-chat", payload["model"])
	assert.Equal(t, 0.2, payload["temperature"])
	messages, ok := payload["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)

	system := messages[0].(map[string]any)
	user := messages[1].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Equal(t, "user", user["role"])
	assert.Contains(t, user["content"], "Article title: Vote")
}

func TestDeepSeekGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`, "deepseek API failed with 500"},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, "deepseek API failed with 401"},
		{"no choices", http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`, "did not include text output"},
		{"empty content", http.StatusOK, `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":""}}]}`, "did not include text output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewDeepSeekProvider("ds-key", "", srv.URL).Generate(context.Background(), Article{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestDeepSeekMissingKey(t *testing.T) {
	_, err := NewDeepSeekProvider("", "", "http://127.0.0.1:1").Generate(context.Background(), Article{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEEPSEEK_API_KEY")
}
