// Package chapters provides chapter generation for the pipeline: a
// semantic pass over the transcript through an LLM, and the deterministic
// reconciliation of that pass with the transcription provider's raw
// timestamp markers.
package chapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mapproject/media-pipeline/internal/llm"
	"github.com/mapproject/media-pipeline/internal/provider"
)

// providerName is the label used in classified provider errors.
const providerName = "chapters"

// Chapter is a single chapter marker in the final, reconciled sequence.
type Chapter struct {
	// Start is the chapter's offset into the media.
	Start time.Duration `json:"start"`
	// End is where the chapter ends (zero when open-ended).
	End time.Duration `json:"end,omitempty"`
	// Title is the chapter headline.
	Title string `json:"title"`
}

// Summarizer defines the semantic chapter provider port.
type Summarizer interface {
	// SummarizeChapters derives chapter markers from the transcript text.
	SummarizeChapters(ctx context.Context, transcriptText string) ([]Chapter, error)
}

// LLMSummarizer generates chapters through a chat-completion model.
type LLMSummarizer struct {
	client *llm.Client
}

// NewLLMSummarizer creates a summarizer backed by the given LLM client.
func NewLLMSummarizer(client *llm.Client) *LLMSummarizer {
	return &LLMSummarizer{client: client}
}

// Compile-time check that LLMSummarizer implements Summarizer.
var _ Summarizer = (*LLMSummarizer)(nil)

const systemPrompt = "You create chapter markers for educational videos. Given a " +
	"transcript, suggest chapters with start and end times in seconds and a short " +
	"descriptive title. Return strictly a JSON array of objects with keys " +
	"'start', 'end', 'title'."

// wireChapter is the JSON shape returned by the model, in seconds.
type wireChapter struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Title string  `json:"title"`
}

// SummarizeChapters asks the model for chapter markers over the transcript.
func (s *LLMSummarizer) SummarizeChapters(ctx context.Context, transcriptText string) ([]Chapter, error) {
	raw, err := s.client.Complete(ctx, systemPrompt, transcriptText)
	if err != nil {
		return nil, err
	}

	var wire []wireChapter
	if err := json.Unmarshal([]byte(extractJSON(raw)), &wire); err != nil {
		return nil, provider.NewTransient(providerName,
			fmt.Errorf("decode model output: %w", err))
	}

	out := make([]Chapter, len(wire))
	for i, c := range wire {
		out[i] = Chapter{
			Start: time.Duration(c.Start * float64(time.Second)),
			End:   time.Duration(c.End * float64(time.Second)),
			Title: c.Title,
		}
	}
	return out, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(raw, "```")
		raw = strings.TrimSpace(raw)
	}
	return raw
}
