package provider

import (
	"context"
	"encoding/json"
	"strings"

	corerrors "github.com/ZaguanLabs/corelyn/internal/errors"
)

// OpenAI talks to OpenAI-compatible chat completion endpoints. The system
// prompt is sent as a leading system message.
type OpenAI struct {
	opts Options
}

// Name reports the configured preset name.
func (c *OpenAI) Name() string {
	if c.opts.Name == "" {
		return "openai"
	}
	return strings.ToLower(c.opts.Name)
}

// Send sends a chat completion request and returns the assistant's response.
func (c *OpenAI) Send(ctx context.Context, messages []Message, system string) (string, error) {
	msgs := messages
	if system != "" {
		msgs = append([]Message{{Role: "system", Content: system}}, messages...)
	}

	reqBody := map[string]interface{}{
		"model":    c.opts.Model,
		"messages": msgs,
		"stream":   false,
	}

	// Include temperature only if not an o3 model
	if !strings.HasPrefix(c.opts.Model, "o3") {
		reqBody["temperature"] = c.opts.Temperature
	}

	url := c.opts.BaseURL + "/chat/completions"
	data, err := post(ctx, c.opts.HTTPClient, c.Name(), url, map[string]string{
		"Authorization": "Bearer " + c.opts.APIKey,
	}, reqBody)
	if err != nil {
		return "", err
	}

	var response struct {
		Choices []struct {
			Message Message `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &response); err != nil {
		return "", corerrors.NewNetworkError(url, "decode response", err)
	}

	if len(response.Choices) == 0 {
		return NoResponse, nil
	}
	return orNoResponse(response.Choices[0].Message.Content), nil
}
