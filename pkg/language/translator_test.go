package language

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, content string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		if captured != nil {
			_ = json.Unmarshal(body, captured)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAITranslator_Translate(t *testing.T) {
	var req map[string]any
	srv := chatServer(t, "  Tomato soup\n", &req)

	tr := NewOpenAITranslator("test-key", WithModel("gpt-4o-mini"),
		WithRequestOptions(option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0)))

	out, err := tr.Translate(context.Background(), "Zuppa di pomodoro", "it", "en")
	require.NoError(t, err)
	assert.Equal(t, "Tomato soup", out.Text)
	assert.Equal(t, "it", out.SourceLanguage)
	assert.Equal(t, "gpt-4o-mini", req["model"])

	msgs, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	system := msgs[0].(map[string]any)["content"].(string)
	assert.Contains(t, system, "Italian")
	assert.Contains(t, system, "English")
}

func TestOpenAITranslator_EmptyReply(t *testing.T) {
	srv := chatServer(t, "   ", nil)
	tr := NewOpenAITranslator("k", WithRequestOptions(option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0)))

	_, err := tr.Translate(context.Background(), "Hola", "es", "en")
	assert.ErrorIs(t, err, ErrEmptyTranslation)
}

func TestOpenAITranslator_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewOpenAITranslator("k", WithRequestOptions(option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0)))
	_, err := tr.Translate(context.Background(), "Hola", "es", "en")
	assert.Error(t, err)
}
