package export

import (
	"strings"
	"testing"
	"time"

	"github.com/ZaguanLabs/corelyn/internal/markdown"
	"github.com/ZaguanLabs/corelyn/internal/storage"
)

func TestHTML_RendersEachRole(t *testing.T) {
	reply := "# Plan\n\nUse `go test` and **stop**."
	transcript := &storage.Transcript{
		Summary: storage.SessionSummary{ID: 3, Name: "Tom & Jerry <script>"},
		Messages: []storage.Message{
			{Role: storage.RoleUser, Content: "<b>hi</b>\nthere", CreatedAt: time.Date(2024, 2, 3, 4, 5, 0, 0, time.UTC)},
			{Role: storage.RoleAssistant, Content: reply},
			{Role: storage.RoleToolFeedback, Content: "🔧 **Tool results:**\n\n✅ **`alert`** — Alert shown: \"x\"."},
		},
	}

	doc, err := HTML(transcript)
	if err != nil {
		t.Fatalf("HTML returned error: %v", err)
	}

	for _, want := range []string{
		"<title>Tom &amp; Jerry &lt;script&gt;</title>",
		`<div class="message user">`,
		"You · 2024-02-03 04:05",
		"<p>&lt;b&gt;hi&lt;/b&gt;<br>there</p>",
		markdown.ToHTML(reply),
		`<div class="message tool-feedback">`,
		"<strong>Tool results:</strong>",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("expected document to contain %q, got:\n%s", want, doc)
		}
	}
	if strings.Contains(doc, "<script>") {
		t.Fatalf("unescaped markup leaked into document:\n%s", doc)
	}
}

func TestWrite_NilTranscript(t *testing.T) {
	if err := Write(&strings.Builder{}, nil); err == nil {
		t.Fatal("expected error for nil transcript")
	}
}
