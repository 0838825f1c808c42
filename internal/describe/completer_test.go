package describe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/partner-finder/pkg/anthropic"
)

func TestOpenAICompleter(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": "  {\"a\":1}  "}}},
		})
	}))
	defer ts.Close()

	c := NewOpenAICompleter("test-key", "", ts.URL+"/v1", Sampling{Temperature: 0.5})
	out, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
	assert.Equal(t, "openai", c.Name())
}

func TestOpenAICompleter_NoChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","choices":[]}`)) //nolint:errcheck
	}))
	defer ts.Close()

	c := NewOpenAICompleter("k", "gpt-4o", ts.URL+"/v1", Sampling{})
	_, err := c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestAnthropicCompleter(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, defaultAnthropicModel, body["model"])
		assert.EqualValues(t, defaultMaxTokens, body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       defaultAnthropicModel,
			"stop_reason": "end_turn",
			"content":     []map[string]any{{"type": "text", "text": "```json\n{}\n```"}},
			"usage":       map[string]any{"input_tokens": 3, "output_tokens": 4},
		})
	}))
	defer ts.Close()

	client := anthropic.NewClient("k", anthropic.WithBaseURL(ts.URL), anthropic.WithMaxRetries(0))
	c := NewAnthropicCompleter(client, "", Sampling{})
	out, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "```json\n{}\n```", out)
	assert.Equal(t, "anthropic", c.Name())
}
