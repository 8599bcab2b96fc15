package mocks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ZaguanLabs/corelyn/internal/storage"
	"github.com/ZaguanLabs/corelyn/internal/trigger"
)

// Host records every side effect requested by commands and triggers.
type Host struct {
	mu       sync.Mutex
	Files    map[string][]byte
	URLs     []string
	Alerts   []string
	Titles   []string
	Toasts   []string
	FailWith error
}

// NewHost creates a recording host.
func NewHost() *Host {
	return &Host{Files: make(map[string][]byte)}
}

// Download records the file and returns a fake location.
func (h *Host) Download(name string, content []byte) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailWith != nil {
		return "", h.FailWith
	}
	h.Files[name] = append([]byte(nil), content...)
	return "/downloads/" + name, nil
}

// OpenURL records url.
func (h *Host) OpenURL(url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailWith != nil {
		return h.FailWith
	}
	h.URLs = append(h.URLs, url)
	return nil
}

// Alert records text.
func (h *Host) Alert(text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Alerts = append(h.Alerts, text)
	return nil
}

// SetTitle records title.
func (h *Host) SetTitle(title string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Titles = append(h.Titles, title)
	return title, nil
}

// Toast records text.
func (h *Host) Toast(_ trigger.Level, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Toasts = append(h.Toasts, text)
}

// Snapshot returns copies of the recorded alerts and toasts.
func (h *Host) Snapshot() (alerts, toasts []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.Alerts...), append([]string(nil), h.Toasts...)
}

// TestContext returns a context cancelled when the test ends.
func TestContext(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// AssertRoles checks the role sequence of a message log.
func AssertRoles(t testing.TB, messages []storage.Message, roles ...string) {
	t.Helper()
	if len(messages) != len(roles) {
		t.Fatalf("Expected %d messages, got %d: %+v", len(roles), len(messages), messages)
	}
	for i, role := range roles {
		if messages[i].Role != role {
			t.Fatalf("Expected message %d to have role %s, got %s", i, role, messages[i].Role)
		}
	}
}

// AssertMessage checks role and content of a message.
func AssertMessage(t testing.TB, expected, actual storage.Message) {
	t.Helper()
	if expected.Role != actual.Role {
		t.Fatalf("Expected role %s, got %s", expected.Role, actual.Role)
	}
	if expected.Content != actual.Content {
		t.Fatalf("Expected content %q, got %q", expected.Content, actual.Content)
	}
}

// WaitForCompletion polls fn until it reports true or timeout elapses.
func WaitForCompletion(timeout time.Duration, fn func() bool) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return context.DeadlineExceeded
}
