// Package translation provides the caption translation provider. It is
// contractually required to return the same number of timed segments with
// identical start/end boundaries as its input; the orchestrator verifies
// that before accepting the output.
package translation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mapproject/media-pipeline/internal/llm"
	"github.com/mapproject/media-pipeline/internal/provider"
	"github.com/mapproject/media-pipeline/internal/transcript"
)

// providerName is the label used in classified provider errors.
const providerName = "translation"

// ErrUnsupportedLanguage is returned for language codes outside the
// supported set. It classifies permanent: retrying cannot fix it.
var ErrUnsupportedLanguage = errors.New("translation: unsupported language")

// LanguageNames maps supported language codes to display names used in
// prompts.
var LanguageNames = map[string]string{
	"en": "English",
	"fr": "French",
	"es": "Spanish",
	"ar": "Arabic",
}

// IsSupported returns true if the language code can be translated to.
func IsSupported(code string) bool {
	_, ok := LanguageNames[code]
	return ok
}

// Translator defines the translation provider port.
type Translator interface {
	// Translate returns the segments rendered in targetLang. The output
	// must preserve segment count and boundaries; violations surface as
	// consistency failures in the orchestrator, not here.
	Translate(ctx context.Context, segments []transcript.Segment, targetLang string) ([]transcript.Segment, error)
}

// LLMTranslator translates caption segments through a chat-completion
// model.
type LLMTranslator struct {
	client *llm.Client
}

// NewLLMTranslator creates a translator backed by the given LLM client.
func NewLLMTranslator(client *llm.Client) *LLMTranslator {
	return &LLMTranslator{client: client}
}

// Compile-time check that LLMTranslator implements Translator.
var _ Translator = (*LLMTranslator)(nil)

const systemPrompt = "You are a subtitle translation assistant. You receive a JSON array " +
	"of timed caption segments and return a JSON array of the same length with identical " +
	"start and end values, translating only the text field. Return strictly JSON, no prose."

// wireSegment is the JSON shape exchanged with the model, in milliseconds.
type wireSegment struct {
	Start int64  `json:"start"`
	End   int64  `json:"end"`
	Text  string `json:"text"`
}

// Translate renders the segments in targetLang, preserving timestamps.
func (t *LLMTranslator) Translate(ctx context.Context, segments []transcript.Segment, targetLang string) ([]transcript.Segment, error) {
	language, ok := LanguageNames[targetLang]
	if !ok {
		return nil, provider.NewPermanent(providerName,
			fmt.Errorf("%w: %s", ErrUnsupportedLanguage, targetLang))
	}

	wire := make([]wireSegment, len(segments))
	for i, s := range segments {
		wire[i] = wireSegment{
			Start: s.Start.Milliseconds(),
			End:   s.End.Milliseconds(),
			Text:  s.Text,
		}
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("translation: encode segments: %w", err)
	}

	user := fmt.Sprintf("Translate the text of each segment into %s without changing "+
		"meaning or timing:\n%s", language, payload)

	raw, err := t.client.Complete(ctx, systemPrompt, user)
	if err != nil {
		return nil, err
	}

	var translated []wireSegment
	if err := json.Unmarshal([]byte(extractJSON(raw)), &translated); err != nil {
		// Model produced unparseable output; worth another attempt.
		return nil, provider.NewTransient(providerName,
			fmt.Errorf("decode model output: %w", err))
	}

	out := make([]transcript.Segment, len(translated))
	for i, s := range translated {
		out[i] = transcript.Segment{
			Start: time.Duration(s.Start) * time.Millisecond,
			End:   time.Duration(s.End) * time.Millisecond,
			Text:  s.Text,
		}
	}
	return out, nil
}

// extractJSON strips markdown code fences models sometimes wrap around
// JSON output.
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
