package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapproject/media-pipeline/internal/provider"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: server.URL,
	})
	require.NoError(t, err)
	return client, server
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestComplete_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "bonjour"}},
			},
		})
	})

	got, err := client.Complete(context.Background(), "translate", "hello")
	require.NoError(t, err)
	assert.Equal(t, "bonjour", got)
}

func TestComplete_RateLimitIsTransient(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	})

	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.True(t, provider.IsTransient(err), "429 must classify transient")
}

func TestComplete_ServerErrorIsTransient(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.True(t, provider.IsTransient(err))
}

func TestComplete_ClientErrorIsPermanent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	})

	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.True(t, provider.IsPermanent(err), "400 must classify permanent")
	assert.Contains(t, err.Error(), "bad model")
}

func TestComplete_EmptyChoices(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}
