// Package ui holds the ANSI helpers used by the line-mode front end.
package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// ANSI colours and styles.
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Faint = "\033[2m"

	DeepBlue  = "\033[38;5;24m"
	DeepGreen = "\033[38;5;28m"
	Gray      = "\033[38;5;245m"
	Orange    = "\033[38;5;208m"
	Cyan      = "\033[38;5;51m"
	Yellow    = "\033[38;5;226m"
	Red       = "\033[38;5;196m"
	Green     = "\033[38;5;82m"
)

const defaultWidth = 80

// Palette switches colour output on or off.
type Palette struct {
	Enabled bool
}

// Paint wraps text in color when the palette is enabled.
func (p Palette) Paint(color, text string) string {
	if !p.Enabled || color == "" {
		return text
	}
	return color + text + Reset
}

// Speaker returns the label and colour used for a message role.
func Speaker(role string) (label, color string) {
	switch role {
	case "user":
		return "👤 You", DeepBlue
	case "assistant":
		return "🤖 Assistant", DeepGreen
	case "tool-feedback":
		return "🔧 Feedback", Orange
	default:
		return "💬 " + role, Gray
	}
}

// FormatTimestamp formats a time as a short clock reading.
func FormatTimestamp(t time.Time) string {
	return t.Format("15:04")
}

// MessageHeader renders the line printed above a message.
func (p Palette) MessageHeader(role string, at time.Time, width int) string {
	label, color := Speaker(role)
	text := label
	if !at.IsZero() {
		text += " │ " + FormatTimestamp(at)
	}
	fill := width - len([]rune(text)) - 4
	if fill < 2 {
		fill = 2
	}
	return p.Paint(color, "┌─ "+text+" "+strings.Repeat("─", fill))
}

// Separator returns a horizontal rule of width cells.
func (p Palette) Separator(width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	return p.Paint(Gray, strings.Repeat("─", width))
}

// Status renders a one-line notice. kind is success, error, warning or info.
func (p Palette) Status(emoji, message, kind string) string {
	var color string
	switch kind {
	case "success":
		color = Green
	case "error":
		color = Red
	case "warning":
		color = Yellow
	case "info":
		color = Cyan
	default:
		color = Gray
	}
	return p.Paint(color, fmt.Sprintf("%s %s", emoji, message))
}

// TerminalWidth reports the width of stdout, or 80 when it is not a terminal.
func TerminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Truncate shortens text to max runes, marking the cut with an ellipsis.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return text
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
