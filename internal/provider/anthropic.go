package provider

import (
	"context"
	"encoding/json"

	corerrors "github.com/ZaguanLabs/corelyn/internal/errors"
)

const anthropicVersion = "2023-06-01"

// Anthropic talks to the Messages API. The system prompt goes in the
// top-level system field.
type Anthropic struct {
	opts Options
}

// Name reports "anthropic".
func (c *Anthropic) Name() string { return "anthropic" }

// Send posts the conversation to /messages and returns the first text block.
func (c *Anthropic) Send(ctx context.Context, messages []Message, system string) (string, error) {
	reqBody := map[string]interface{}{
		"model":       c.opts.Model,
		"messages":    messages,
		"max_tokens":  c.opts.MaxTokens,
		"temperature": c.opts.Temperature,
	}
	if system != "" {
		reqBody["system"] = system
	}

	url := c.opts.BaseURL + "/messages"
	data, err := post(ctx, c.opts.HTTPClient, c.Name(), url, map[string]string{
		"x-api-key":         c.opts.APIKey,
		"anthropic-version": anthropicVersion,
	}, reqBody)
	if err != nil {
		return "", err
	}

	var response struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(data, &response); err != nil {
		return "", corerrors.NewNetworkError(url, "decode response", err)
	}

	if len(response.Content) == 0 {
		return NoResponse, nil
	}
	return orNoResponse(response.Content[0].Text), nil
}
