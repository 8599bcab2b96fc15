// Package provider exchanges an ordered message list for an assistant reply.
package provider

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

	corerrors "github.com/ZaguanLabs/corelyn/internal/errors"
)

const (
	defaultTimeout   = 120 * time.Second
	defaultMaxTokens = 4096

	// NoResponse stands in for a reply without any text.
	NoResponse = "(no response)"
)

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider sends a conversation and returns the assistant's text. How the
// system prompt travels is up to the implementation.
type Provider interface {
	Name() string
	Send(ctx context.Context, messages []Message, system string) (string, error)
}

// Options configures a Provider.
type Options struct {
	Name        string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
}

// New returns the Provider selected by opts.Name.
func New(opts Options) (Provider, error) {
	opts.APIKey = strings.TrimSpace(opts.APIKey)
	if opts.APIKey == "" {
		return nil, errors.New("api key cannot be empty")
	}
	if opts.BaseURL == "" {
		return nil, errors.New("base URL cannot be empty")
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}

	switch strings.ToLower(opts.Name) {
	case "anthropic":
		return &Anthropic{opts: opts}, nil
	case "openai", "cerebras", "":
		return &OpenAI{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", opts.Name)
	}
}

// post sends payload as JSON and returns the body of a 2xx answer.
func post(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, corerrors.NewNetworkError(url, "execute request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, corerrors.NewNetworkError(url, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(provider, data, resp.StatusCode)
	}
	return data, nil
}

func decodeError(provider string, data []byte, status int) error {
	var apiErr struct {
		Error interface{} `json:"error"`
	}

	if err := json.Unmarshal(data, &apiErr); err != nil {
		return corerrors.NewAPIError(provider, status, "", err)
	}

	var message string
	switch e := apiErr.Error.(type) {
	case string:
		message = e
	case map[string]interface{}:
		if msg, ok := e["message"].(string); ok {
			message = msg
		}
	}

	return corerrors.NewAPIError(provider, status, message, nil)
}

func orNoResponse(text string) string {
	if text == "" {
		return NoResponse
	}
	return text
}
