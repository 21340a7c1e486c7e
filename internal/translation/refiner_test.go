package translation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "deepseek/deepseek-r1", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, refineSystemPrompt, body.Messages[0].Content)
		assert.True(t, strings.Contains(body.Messages[1].Content, "my tummy hurts"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"unavailable"}}`))
			return
		}
		resp := map[string]interface{}{
			"id":      "x",
			"object":  "chat.completion",
			"choices": []map[string]interface{}{{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRefinerRewrites(t *testing.T) {
	srv := chatServer(t, http.StatusOK, " Patient reports abdominal pain. ")
	r := NewRefiner("key", srv.URL, "", logging.Discard())
	require.True(t, r.Enabled())

	assert.Equal(t, "Patient reports abdominal pain.", r.Refine(context.Background(), "my tummy hurts"))
}

func TestRefinerFallsBackToRawText(t *testing.T) {
	srv := chatServer(t, http.StatusInternalServerError, "")
	r := NewRefiner("key", srv.URL, "", logging.Discard())

	assert.Equal(t, "my tummy hurts", r.Refine(context.Background(), "my tummy hurts"))
}

func TestRefinerDisabledPassesThrough(t *testing.T) {
	r := NewRefiner("", "", "", nil)
	assert.False(t, r.Enabled())
	assert.Equal(t, "as is", r.Refine(context.Background(), "as is"))

	var nilRefiner *Refiner
	assert.Equal(t, "as is", nilRefiner.Refine(context.Background(), "as is"))
}
