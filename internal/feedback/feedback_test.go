package feedback

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ZaguanLabs/corelyn/internal/command"
	corerrors "github.com/ZaguanLabs/corelyn/internal/errors"
	"github.com/ZaguanLabs/corelyn/internal/trigger"
)

func TestCommands(t *testing.T) {
	got, ok := Commands([]command.Result{
		{Name: "create_file", OK: true, Message: "File **notes.txt** created and downloaded (11 bytes)."},
		{Name: "nope", OK: false, Message: "Unknown tool: nope"},
	})
	if !ok {
		t.Fatal("expected a feedback entry")
	}
	want := "🔧 **Tool results:**\n\n" +
		"✅ **`create_file`** — File **notes.txt** created and downloaded (11 bytes).\n" +
		"❌ **`nope`** — Unknown tool: nope"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Commands mismatch (-want +got):\n%s", diff)
	}
}

func TestCommands_Empty(t *testing.T) {
	if got, ok := Commands(nil); ok || got != "" {
		t.Fatalf("expected no entry, got %q", got)
	}
}

func strp(s string) *string { return &s }

func TestTrigger(t *testing.T) {
	tests := []struct {
		name    string
		outcome trigger.Outcome
		want    string
		ok      bool
	}{
		{
			name: "contains with preview",
			outcome: trigger.Outcome{
				Rule:    trigger.Rule{Match: "error", Kind: trigger.Contains, Action: "return #response"},
				Matched: true, MatchedText: "error", Captures: []*string{strp("error")},
				Preview: "17", HasPreview: true,
			},
			want: "⚡ **Trigger fired** — matched `error`\n\n✅ Action ran successfully → `17`",
			ok:   true,
		},
		{
			name: "regex without preview",
			outcome: trigger.Outcome{
				Rule:    trigger.Rule{Match: `(\d+)%`, Kind: trigger.Regex, Action: "alert(match[1])"},
				Matched: true, MatchedText: "42%", Captures: []*string{strp("42%"), strp("42")},
			},
			want: "⚡ **Trigger fired** — matched `(\\d+)%`\n\n↳ Regex capture: `42%`\n\n✅ Action ran successfully",
			ok:   true,
		},
		{
			name: "action error",
			outcome: trigger.Outcome{
				Rule:      trigger.Rule{Match: "x", Action: "error('boom')"},
				Matched:   true,
				ActionErr: corerrors.NewActionError(1, "<string>:1: boom", errors.New("boom")),
			},
			want: "⚡ **Trigger fired** — matched `x`\n\n❌ Action error: <string>:1: boom",
			ok:   true,
		},
		{
			name: "pattern error is not reported in chat",
			outcome: trigger.Outcome{
				Rule:       trigger.Rule{Match: "(", Kind: trigger.Regex, Action: "return 1"},
				PatternErr: errors.New("missing closing )"),
			},
		},
		{
			name:    "miss",
			outcome: trigger.Outcome{Rule: trigger.Rule{Match: "x", Action: "return 1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Trigger(tt.outcome)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Trigger mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTriggers_KeepsOrderAndDropsMisses(t *testing.T) {
	entries := Triggers([]trigger.Outcome{
		{Rule: trigger.Rule{Match: "a"}, Matched: true},
		{Rule: trigger.Rule{Match: "b"}},
		{Rule: trigger.Rule{Match: "c"}, Matched: true},
	})
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0] != "⚡ **Trigger fired** — matched `a`\n\n✅ Action ran successfully" {
		t.Fatalf("unexpected first entry %q", entries[0])
	}
}
