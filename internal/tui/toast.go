package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ZaguanLabs/corelyn/internal/trigger"
)

const (
	maxToasts = 3
	toastTTL  = 4 * time.Second
)

type toast struct {
	message string
	level   trigger.Level
	expiry  time.Time
}

// toasts is a short queue of auto-dismissing notices.
type toasts struct {
	queue []toast
	now   func() time.Time
}

func newToasts() toasts {
	return toasts{now: time.Now}
}

// Add enqueues a notice, dropping the oldest beyond maxToasts.
func (m *toasts) Add(message string, level trigger.Level) {
	m.queue = append(m.queue, toast{
		message: message,
		level:   level,
		expiry:  m.now().Add(toastTTL),
	})
	if len(m.queue) > maxToasts {
		m.queue = m.queue[len(m.queue)-maxToasts:]
	}
}

// Prune drops expired notices.
func (m *toasts) Prune() {
	now := m.now()
	alive := m.queue[:0]
	for _, t := range m.queue {
		if now.Before(t.expiry) {
			alive = append(alive, t)
		}
	}
	m.queue = alive
}

func (m toasts) Len() int { return len(m.queue) }

// View renders visible notices as right-aligned lines.
func (m toasts) View(width int) string {
	if len(m.queue) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.queue))
	for _, t := range m.queue {
		icon, color := "⚡", ColorSuccess
		if t.level == trigger.Error {
			icon, color = "✘", ColorError
		}
		rendered := lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf(" %s %s ", icon, t.message))
		pad := width - lipgloss.Width(rendered)
		if pad < 0 {
			pad = 0
		}
		lines = append(lines, strings.Repeat(" ", pad)+rendered)
	}
	return strings.Join(lines, "\n")
}
