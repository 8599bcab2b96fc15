package tui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

const minWrap = 20

// TerminalRenderer renders markdown for the terminal with glamour. It is safe
// for concurrent use; replies are streamed from a command goroutine while the
// model renders feedback entries.
type TerminalRenderer struct {
	mu       sync.Mutex
	style    string
	width    int
	renderer *glamour.TermRenderer
}

// NewTerminalRenderer creates a renderer with the named glamour style
// ("dark", "light", "notty"...) wrapping at width.
func NewTerminalRenderer(style string, width int) *TerminalRenderer {
	t := &TerminalRenderer{style: style}
	t.SetWidth(width)
	return t
}

// SetWidth rebuilds the renderer for a new terminal width.
func (t *TerminalRenderer) SetWidth(width int) {
	wrap := width - 4
	if wrap < minWrap {
		wrap = minWrap
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.renderer != nil && t.width == wrap {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(t.style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return
	}
	t.renderer = r
	t.width = wrap
}

// Render converts markdown to styled output. It falls back to the raw text
// when rendering fails.
func (t *TerminalRenderer) Render(md string) string {
	if strings.TrimSpace(md) == "" {
		return md
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.renderer == nil {
		return md
	}
	out, err := t.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
