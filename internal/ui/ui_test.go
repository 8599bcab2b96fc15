package ui

import (
	"strings"
	"testing"
	"time"
)

func TestPaint(t *testing.T) {
	plain := Palette{}
	if got := plain.Paint(Red, "x"); got != "x" {
		t.Fatalf("expected uncoloured text, got %q", got)
	}
	colored := Palette{Enabled: true}
	if got := colored.Paint(Red, "x"); got != Red+"x"+Reset {
		t.Fatalf("expected coloured text, got %q", got)
	}
}

func TestMessageHeader(t *testing.T) {
	p := Palette{}
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	header := p.MessageHeader("tool-feedback", at, 40)
	if !strings.HasPrefix(header, "┌─ 🔧 Feedback │ 09:30 ") {
		t.Fatalf("unexpected header %q", header)
	}
	if got := p.MessageHeader("assistant", time.Time{}, 0); !strings.Contains(got, "Assistant ──") {
		t.Fatalf("expected minimum fill, got %q", got)
	}
}

func TestStatus(t *testing.T) {
	p := Palette{}
	if got := p.Status("⚠️", "careful", "warning"); got != "⚠️ careful" {
		t.Fatalf("unexpected status %q", got)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"héllo wörld", 5, "héll…"},
		{"abc", 1, "a"},
		{"abc", 0, "abc"},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.max); got != tc.want {
			t.Fatalf("Truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestSeparatorDefaultsWidth(t *testing.T) {
	if got := (Palette{}).Separator(0); len([]rune(got)) != defaultWidth {
		t.Fatalf("expected %d cells, got %d", defaultWidth, len([]rune(got)))
	}
}
