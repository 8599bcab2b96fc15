package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaguanLabs/corelyn/internal/chat"
	"github.com/ZaguanLabs/corelyn/internal/command"
	"github.com/ZaguanLabs/corelyn/internal/logging"
	"github.com/ZaguanLabs/corelyn/internal/mocks"
	"github.com/ZaguanLabs/corelyn/internal/storage"
	"github.com/ZaguanLabs/corelyn/internal/stream"
	"github.com/ZaguanLabs/corelyn/internal/trigger"
)

func newTestModel(t *testing.T, replies ...string) Model {
	t.Helper()
	renderer := NewTerminalRenderer("notty", 80)
	engine, err := trigger.NewEngine(trigger.StaticSource{
		{Match: `(\d+)%`, Kind: trigger.Regex, Action: `notify("pct " .. match[1])`},
	}, trigger.DefaultOptions(), logging.Nop())
	require.NoError(t, err)

	ctrl, err := chat.New(chat.Config{
		Provider: mocks.NewMockProvider(replies...),
		Store:    mocks.NewMockStore(),
		Parser:   command.NewParser(command.NewDispatcher(logging.Nop())),
		Engine:   engine,
		Renderer: stream.New(renderer.Render, stream.WithSleep(func(context.Context, time.Duration) {})),
		Logger:   logging.Nop(),
	})
	require.NoError(t, err)

	host := chat.NewTerminalHost(t.TempDir(), "true", logging.Nop())
	m := NewModel(mocks.TestContext(t), ctrl, host, renderer, "mock-model")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func submit(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.textinput.SetValue(text)
	return update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

// drain feeds queued events to the model until the exchange completes.
func drain(t *testing.T, m Model) Model {
	t.Helper()
	for {
		select {
		case msg := <-m.events:
			m, _ = update(t, m, msg)
			if _, ok := msg.(exchangeDoneMsg); ok {
				return m
			}
		default:
			t.Fatal("exchange did not complete")
		}
	}
}

func TestModel_ExchangeStreamsAndCollectsFeedback(t *testing.T) {
	m := newTestModel(t, "Progress 42%\n<tool:alert hey></tool>")

	m, cmd := submit(t, m, "status?")
	require.NotNil(t, cmd)
	assert.True(t, m.streaming)
	assert.Contains(t, m.View(), "waiting for reply")

	assert.Nil(t, cmd())
	m = drain(t, m)

	assert.False(t, m.streaming)
	roles := make([]string, len(m.entries))
	for i, e := range m.entries {
		roles[i] = e.Role
	}
	assert.Equal(t, []string{
		storage.RoleUser, storage.RoleAssistant, storage.RoleToolFeedback, storage.RoleToolFeedback,
	}, roles)
	assert.Equal(t, "Progress 42%", m.entries[1].Content)
	assert.Contains(t, m.entries[2].Content, "Regex capture: `42%`")
	assert.Equal(t, "status?", m.title)

	assert.Equal(t, []string{"hey"}, m.alerts)
	assert.Equal(t, 2, m.toasts.Len())
	view := m.View()
	assert.Contains(t, view, "🔔 hey")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Empty(t, m.alerts)
	assert.Contains(t, m.View(), "pct 42")
}

func TestModel_IgnoresEnterWhileStreaming(t *testing.T) {
	m := newTestModel(t)
	m.streaming = true
	m, cmd := submit(t, m, "again")
	assert.Nil(t, cmd)
	assert.Empty(t, m.entries)
}

func TestModel_ProviderErrorShowsNotice(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, exchangeDoneMsg{err: assert.AnError})
	assert.False(t, m.streaming)
	assert.Contains(t, m.notice, "Error: "+assert.AnError.Error())

	m.notice = ""
	m, _ = update(t, m, exchangeDoneMsg{err: chat.ErrStreaming})
	assert.Empty(t, m.notice)
}

func TestModel_Commands(t *testing.T) {
	m := newTestModel(t, "hi")

	m, _ = submit(t, m, "/load abc")
	assert.Contains(t, m.notice, "Usage: /load <id>")

	m, _ = submit(t, m, "/bogus")
	assert.Contains(t, m.notice, "Unknown command: /bogus")

	m, _ = submit(t, m, "/title Nope")
	assert.Contains(t, m.notice, "no active chat")

	m, cmd := submit(t, m, "/chats")
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.notice, "No saved chats found.")

	m, cmd = submit(t, m, "hello")
	cmd()
	m = drain(t, m)

	m, _ = submit(t, m, "/title Renamed chat")
	assert.Equal(t, "Renamed chat", m.title)

	m, cmd = submit(t, m, "/new")
	m, _ = update(t, m, cmd())
	assert.Empty(t, m.entries)
	assert.Equal(t, storage.DefaultChatName, m.title)

	m, cmd = submit(t, m, "/load 1")
	m, _ = update(t, m, cmd())
	assert.Len(t, m.entries, 2)
	assert.Equal(t, "Renamed chat", m.title)
	assert.True(t, strings.Contains(m.notice, "Loaded chat #1"))

	_, cmd = submit(t, m, "/exit")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestToasts_QueueAndExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := newToasts()
	q.now = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		q.Add("toast", trigger.Info)
	}
	assert.Equal(t, maxToasts, q.Len())

	now = now.Add(toastTTL - time.Millisecond)
	q.Prune()
	assert.Equal(t, maxToasts, q.Len())

	now = now.Add(time.Millisecond)
	q.Prune()
	assert.Zero(t, q.Len())
	assert.Empty(t, q.View(80))
}

func TestTerminalRenderer_FallsBackOnBlank(t *testing.T) {
	r := NewTerminalRenderer("notty", 10)
	assert.Equal(t, "  ", r.Render("  "))
	assert.Contains(t, r.Render("**bold**"), "bold")
}

func TestModel_RunAndDelete(t *testing.T) {
	m := newTestModel(t, "Here:\n```lua\nprint(\"side\")\nreturn \"ok\"\n```")

	m, cmd := submit(t, m, "/run")
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.notice, "no lua code blocks in this chat")

	m, cmd = submit(t, m, "lua please")
	cmd()
	m = drain(t, m)

	m, cmd = submit(t, m, "/run")
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.notice, "side")
	assert.Contains(t, m.notice, "→ ok")

	m, cmd = submit(t, m, "/run 0")
	assert.Nil(t, cmd)
	assert.Contains(t, m.notice, "Usage: /run [n]")

	m, cmd = submit(t, m, "/delete 7")
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.notice, "Error: delete chat 7")
	assert.NotEmpty(t, m.entries)

	m, cmd = submit(t, m, "/delete")
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.notice, "Deleted chat #1.")
	assert.Empty(t, m.entries)
	assert.Equal(t, storage.DefaultChatName, m.title)
	assert.Zero(t, m.controller.ChatID())
}
