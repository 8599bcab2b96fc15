package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	corerrors "github.com/ZaguanLabs/corelyn/internal/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantError bool
		wantName  string
	}{
		{"openai", Options{Name: "openai", APIKey: "test-key", BaseURL: "https://api.example.com"}, false, "openai"},
		{"cerebras uses openai shaping", Options{Name: "cerebras", APIKey: "test-key", BaseURL: "https://api.example.com"}, false, "cerebras"},
		{"anthropic", Options{Name: "anthropic", APIKey: "test-key", BaseURL: "https://api.example.com"}, false, "anthropic"},
		{"empty key", Options{Name: "openai", BaseURL: "https://api.example.com"}, true, ""},
		{"whitespace key", Options{Name: "openai", APIKey: "   ", BaseURL: "https://api.example.com"}, true, ""},
		{"empty url", Options{Name: "openai", APIKey: "test-key"}, true, ""},
		{"unknown provider", Options{Name: "mystery", APIKey: "test-key", BaseURL: "https://api.example.com"}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.opts)
			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("expected name %q, got %q", tt.wantName, p.Name())
			}
		})
	}
}

func TestOpenAI_Send(t *testing.T) {
	var got struct {
		Model       string    `json:"model"`
		Messages    []Message `json:"messages"`
		Temperature float64   `json:"temperature"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected authorization header: %s", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}

		response := map[string]interface{}{
			"id": "test-id",
			"choices": []map[string]interface{}{
				{
					"message": map[string]string{
						"role":    "assistant",
						"content": "Hello! How can I help you?",
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	p, err := New(Options{Name: "openai", APIKey: "test-key", BaseURL: server.URL + "/", Model: "gpt-4o-mini", Temperature: 0.7})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	reply, err := p.Send(context.Background(), []Message{{Role: "user", Content: "Hello"}}, "be brief")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if reply != "Hello! How can I help you?" {
		t.Errorf("unexpected reply %q", reply)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[0].Content != "be brief" {
		t.Errorf("expected leading system message, got %+v", got.Messages)
	}
	if got.Model != "gpt-4o-mini" || got.Temperature != 0.7 {
		t.Errorf("unexpected model settings: %+v", got)
	}
}

func TestOpenAI_Send_NoSystemPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []Message `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) != 1 || body.Messages[0].Role != "user" {
			t.Errorf("expected only the user message, got %+v", body.Messages)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":""}}]}`))
	}))
	defer server.Close()

	p, _ := New(Options{Name: "openai", APIKey: "k", BaseURL: server.URL})
	reply, err := p.Send(context.Background(), []Message{{Role: "user", Content: "Hi"}}, "")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if reply != NoResponse {
		t.Errorf("expected %q, got %q", NoResponse, reply)
	}
}

func TestOpenAI_Send_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		response := map[string]interface{}{
			"error": map[string]string{
				"message": "Invalid API key",
			},
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	p, err := New(Options{Name: "openai", APIKey: "bad-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	_, err = p.Send(context.Background(), []Message{{Role: "user", Content: "Hello"}}, "")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var apiErr *corerrors.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Status() != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", apiErr.Status())
	}
	if err.Error() != "openai API error (status 401): Invalid API key" {
		t.Errorf("unexpected error text %q", err.Error())
	}
	if !corerrors.IsProviderError(err) {
		t.Error("expected provider error")
	}
}

func TestOpenAI_Send_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	p, _ := New(Options{Name: "openai", APIKey: "k", BaseURL: server.URL})
	_, err := p.Send(context.Background(), nil, "")

	var netErr *corerrors.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestAnthropic_Send(t *testing.T) {
	var got map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("unexpected x-api-key header: %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("unexpected anthropic-version header: %q", r.Header.Get("anthropic-version"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"content":[{"type":"text","text":"Bonjour"}]}`))
	}))
	defer server.Close()

	p, err := New(Options{Name: "anthropic", APIKey: "test-key", BaseURL: server.URL, Model: "claude-test", Temperature: 0.7})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	reply, err := p.Send(context.Background(), []Message{{Role: "user", Content: "Hello"}}, "be brief")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if reply != "Bonjour" {
		t.Errorf("unexpected reply %q", reply)
	}
	if got["system"] != "be brief" {
		t.Errorf("expected top-level system field, got %v", got["system"])
	}
	if got["max_tokens"] != float64(defaultMaxTokens) {
		t.Errorf("expected default max_tokens, got %v", got["max_tokens"])
	}
	msgs, _ := got["messages"].([]interface{})
	if len(msgs) != 1 {
		t.Errorf("expected system prompt outside messages, got %v", msgs)
	}
}

func TestAnthropic_Send_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer server.Close()

	p, _ := New(Options{Name: "anthropic", APIKey: "k", BaseURL: server.URL})
	reply, err := p.Send(context.Background(), []Message{{Role: "user", Content: "Hi"}}, "")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if reply != NoResponse {
		t.Errorf("expected %q, got %q", NoResponse, reply)
	}
}

func TestSend_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p, _ := New(Options{Name: "anthropic", APIKey: "k", BaseURL: url})
	_, err := p.Send(context.Background(), nil, "")
	if !corerrors.IsProviderError(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
