package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapproject/media-pipeline/internal/llm"
	"github.com/mapproject/media-pipeline/internal/provider"
	"github.com/mapproject/media-pipeline/internal/transcript"
)

func sourceSegments() []transcript.Segment {
	return []transcript.Segment{
		{Start: 0, End: 2 * time.Second, Text: "hello"},
		{Start: 2 * time.Second, End: 4 * time.Second, Text: "world"},
	}
}

// completionServer returns an LLM test double that answers with content.
func completionServer(t *testing.T, content string) *llm.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
	t.Cleanup(server.Close)

	client, err := llm.NewClient(llm.Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)
	return client
}

func TestTranslate_PreservesBoundaries(t *testing.T) {
	content := `[{"start":0,"end":2000,"text":"bonjour"},{"start":2000,"end":4000,"text":"le monde"}]`
	tr := NewLLMTranslator(completionServer(t, content))

	got, err := tr.Translate(context.Background(), sourceSegments(), "fr")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, transcript.BoundariesEqual(sourceSegments(), got))
	assert.Equal(t, "bonjour", got[0].Text)
}

func TestTranslate_StripsCodeFences(t *testing.T) {
	content := "```json\n[{\"start\":0,\"end\":2000,\"text\":\"hola\"},{\"start\":2000,\"end\":4000,\"text\":\"mundo\"}]\n```"
	tr := NewLLMTranslator(completionServer(t, content))

	got, err := tr.Translate(context.Background(), sourceSegments(), "es")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hola", got[0].Text)
}

func TestTranslate_UnsupportedLanguage(t *testing.T) {
	tr := NewLLMTranslator(completionServer(t, "[]"))

	_, err := tr.Translate(context.Background(), sourceSegments(), "de")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
	assert.True(t, provider.IsPermanent(err))
}

func TestTranslate_UnparseableOutputIsTransient(t *testing.T) {
	tr := NewLLMTranslator(completionServer(t, "I translated it for you: bonjour!"))

	_, err := tr.Translate(context.Background(), sourceSegments(), "fr")
	require.Error(t, err)
	assert.True(t, provider.IsTransient(err), "garbage model output should retry")
}

func TestTranslate_SendsLanguageName(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) == 2 {
			prompt = req.Messages[1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"[]"}}]}`)
	}))
	defer server.Close()

	client, err := llm.NewClient(llm.Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = NewLLMTranslator(client).Translate(context.Background(), sourceSegments(), "ar")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Arabic")
}
