// Package llm provides a client for OpenAI-compatible chat-completion
// endpoints. The translation and chapter stages are built on top of it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mapproject/media-pipeline/internal/provider"
)

// providerName is the label used in classified provider errors.
const providerName = "llm"

// Static errors for LLM client operations.
var (
	// ErrAPIKeyRequired is returned when no API key is configured.
	ErrAPIKeyRequired = errors.New("llm: API key is required")
	// ErrEmptyCompletion is returned when the provider returns no choices.
	ErrEmptyCompletion = errors.New("llm: empty completion")
)

// Config holds the settings for the chat-completion client.
type Config struct {
	// APIKey authenticates against the provider.
	APIKey string
	// Model is the chat model identifier.
	Model string
	// BaseURL overrides the OpenAI endpoint (for compatible providers).
	BaseURL string
	// Timeout bounds each completion call.
	Timeout time.Duration
}

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	client   *resty.Client
	model    string
	endpoint string
}

// NewClient creates a chat-completion client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Client{
		client:   client,
		model:    model,
		endpoint: baseURL + "/chat/completions",
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends a system+user prompt pair and returns the completion text.
// Failures are classified through the provider taxonomy: network errors,
// timeouts, 429 and 5xx are transient; other non-2xx responses are
// permanent.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0,
	}

	var result chatResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&result).
		Post(c.endpoint)
	if err != nil {
		return "", provider.NewTransient(providerName, fmt.Errorf("request: %w", err))
	}

	if resp.IsError() {
		apiErr := fmt.Errorf("status %d", resp.StatusCode())
		if result.Error != nil {
			apiErr = fmt.Errorf("status %d: %s", resp.StatusCode(), result.Error.Message)
		}
		if resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500 {
			return "", provider.NewTransient(providerName, apiErr)
		}
		return "", provider.NewPermanent(providerName, apiErr)
	}

	if len(result.Choices) == 0 {
		return "", provider.NewTransient(providerName, ErrEmptyCompletion)
	}
	return result.Choices[0].Message.Content, nil
}
