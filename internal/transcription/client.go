// Package transcription provides the client for the transcription provider.
// The provider runs transcripts asynchronously; Transcribe hides the
// submit/poll cycle behind a single blocking call bounded by the caller's
// context.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mapproject/media-pipeline/internal/provider"
	"github.com/mapproject/media-pipeline/internal/transcript"
)

// providerName is the label used in classified provider errors.
const providerName = "transcription"

// Static errors for transcription client operations.
var (
	// ErrAPIKeyRequired is returned when no API key is provided.
	ErrAPIKeyRequired = errors.New("transcription: API key is required")
	// ErrBaseURLRequired is returned when no base URL is provided.
	ErrBaseURLRequired = errors.New("transcription: base URL is required")
	// ErrNoWords is returned when a completed transcript has no word
	// timings to build captions from.
	ErrNoWords = errors.New("transcription: no word timings in transcript")
)

// Result is the output of a successful transcription.
type Result struct {
	// Segments are the caption blocks assembled from word timings.
	Segments []transcript.Segment
	// RawMarkers are the provider's chapter markers.
	RawMarkers []transcript.Marker
	// Text is the full transcript text, used by the semantic chapter pass.
	Text string
}

// Client defines the transcription provider port.
type Client interface {
	// Transcribe submits the media reference and blocks until the
	// transcript completes or ctx expires.
	Transcribe(ctx context.Context, mediaRef string) (Result, error)
}

// HTTPClient is the HTTP implementation of Client.
type HTTPClient struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithPollInterval sets the delay between status polls.
func WithPollInterval(d time.Duration) Option {
	return func(hc *HTTPClient) {
		hc.pollInterval = d
	}
}

// NewClient creates a transcription client for the given provider base URL.
func NewClient(baseURL, apiKey string, opts ...Option) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	c := &HTTPClient{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// Transcribe submits the media and polls until the transcript reaches a
// terminal status. Context expiry surfaces as a transient provider error so
// the orchestrator retries the stage.
func (c *HTTPClient) Transcribe(ctx context.Context, mediaRef string) (Result, error) {
	submitted, err := c.submit(ctx, mediaRef)
	if err != nil {
		return Result{}, err
	}

	for {
		select {
		case <-ctx.Done():
			return Result{}, provider.NewTransient(providerName,
				fmt.Errorf("transcript %s: %w", submitted.ID, ctx.Err()))
		case <-time.After(c.pollInterval):
		}

		tr, err := c.fetch(ctx, submitted.ID)
		if err != nil {
			return Result{}, err
		}

		switch tr.Status {
		case statusQueued, statusProcessing:
			continue
		case statusCompleted:
			return buildResult(tr)
		case statusError:
			// The provider reports input problems here; they do not
			// heal on retry.
			return Result{}, provider.NewPermanent(providerName,
				fmt.Errorf("transcript %s failed: %s", tr.ID, tr.Error))
		default:
			return Result{}, provider.NewTransient(providerName,
				fmt.Errorf("transcript %s: unknown status %q", tr.ID, tr.Status))
		}
	}
}

func (c *HTTPClient) submit(ctx context.Context, mediaRef string) (*transcriptResponse, error) {
	body, err := json.Marshal(submitRequest{
		MediaURL:     mediaRef,
		AutoChapters: true,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription: encode request: %w", err)
	}

	var tr transcriptResponse
	if err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/v2/transcript", body, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

func (c *HTTPClient) fetch(ctx context.Context, id string) (*transcriptResponse, error) {
	var tr transcriptResponse
	if err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/v2/transcript/"+id, nil, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// doRequest performs a single HTTP request and classifies failures.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("transcription: create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.NewTransient(providerName, fmt.Errorf("request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.NewTransient(providerName, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return provider.NewTransient(providerName, cause)
		}
		return provider.NewPermanent(providerName, cause)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return provider.NewTransient(providerName, fmt.Errorf("unmarshal response: %w", err))
		}
	}
	return nil
}

// buildResult converts a completed transcript into caption segments, raw
// chapter markers and the full text.
func buildResult(tr *transcriptResponse) (Result, error) {
	if len(tr.Words) == 0 {
		return Result{}, provider.NewPermanent(providerName, ErrNoWords)
	}

	words := make([]transcript.Word, len(tr.Words))
	texts := make([]string, len(tr.Words))
	for i, w := range tr.Words {
		words[i] = transcript.Word{
			Start: time.Duration(w.Start) * time.Millisecond,
			End:   time.Duration(w.End) * time.Millisecond,
			Text:  w.Text,
		}
		texts[i] = w.Text
	}

	markers := make([]transcript.Marker, len(tr.Chapters))
	for i, ch := range tr.Chapters {
		markers[i] = transcript.Marker{
			Start: time.Duration(ch.Start) * time.Millisecond,
			End:   time.Duration(ch.End) * time.Millisecond,
			Label: ch.Headline,
		}
	}

	return Result{
		Segments:   transcript.BuildSegments(words),
		RawMarkers: markers,
		Text:       strings.Join(texts, " "),
	}, nil
}
