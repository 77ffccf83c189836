package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ghostradio/internal/domain"
)

func TestChatParsesContentAndUsage(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-ai/deepseek-v3.1", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "a script"}},
			},
			"usage": map[string]any{"total_tokens": 123},
		})
	}))
	defer srv.Close()

	c := New("nvidia", srv.URL, "k", "deepseek-ai/deepseek-v3.1")
	got, err := c.Chat(context.Background(), "be a host", "article text")
	require.NoError(t, err)
	assert.Equal(t, "a script", got.Content)
	assert.Equal(t, 123, got.TokensUsed)
}

func TestChatEstimatesTokensWhenUsageAbsent(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "some generated content here"}},
			},
		})
	}))
	defer srv.Close()

	c := New("openai", srv.URL, "k", "gpt-4o-mini")
	got, err := c.Chat(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Positive(t, got.TokensUsed)
}

func TestChatErrorStatusReturnsError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := New("nvidia", srv.URL, "k", "m")
	_, err := c.Chat(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestChatMissingCredential(t *testing.T) {
	t.Parallel()
	c := New("nvidia", "http://unused", "", "m")
	_, err := c.Chat(context.Background(), "s", "u")
	assert.ErrorIs(t, err, domain.ErrNoProvider)
	assert.ErrorIs(t, c.Probe(context.Background()), domain.ErrNoProvider)
}

func TestProbeSendsShortChat(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 5, req.MaxTokens)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "pong"}},
			},
		})
	}))
	defer srv.Close()

	c := New("openai", srv.URL, "k", "gpt-4o-mini")
	assert.NoError(t, c.Probe(context.Background()))
}
