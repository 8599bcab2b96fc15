// Package tui is the Bubble Tea front end. Replies stream into a viewport
// frame by frame; trigger toasts and alerts are shown on top.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ZaguanLabs/corelyn/internal/chat"
	"github.com/ZaguanLabs/corelyn/internal/storage"
	"github.com/ZaguanLabs/corelyn/internal/trigger"
	"github.com/ZaguanLabs/corelyn/internal/validation"
)

const (
	eventBuffer  = 256
	tickInterval = time.Second
	headerHeight = 2
	footerHeight = 4
)

// entry is a chat message with its rendered view.
type entry struct {
	Role     string
	Content  string
	Rendered string
}

// Msg types
type (
	frameMsg       string
	alertMsg       string
	titleMsg       string
	chatsListedMsg []storage.SessionSummary
	errMsg         error
	noticeMsg      string
	tickMsg        time.Time
)

type toastMsg struct {
	level trigger.Level
	text  string
}

type exchangeDoneMsg struct {
	ex  *chat.Exchange
	err error
}

type transcriptMsg struct {
	transcript *storage.Transcript
	notice     string
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx        context.Context
	controller *chat.Controller
	host       *chat.TerminalHost
	renderer   *TerminalRenderer
	events     chan tea.Msg
	modelName  string

	viewport  viewport.Model
	textinput textinput.Model
	spinner   spinner.Model

	entries   []entry
	streaming bool
	frame     string
	notice    string
	toasts    toasts
	alerts    []string
	title     string

	width  int
	height int
}

// NewModel wires the model to controller. Side effects requested through host
// are delivered to the model as messages; renderer must be the one the
// controller streams with.
func NewModel(ctx context.Context, controller *chat.Controller, host *chat.TerminalHost, renderer *TerminalRenderer, modelName string) Model {
	ti := textinput.New()
	ti.Placeholder = "Type your message here..."
	ti.Focus()
	ti.CharLimit = validation.MaxUserMessageLength

	vp := viewport.New(80, 20)
	vp.SetContent("Welcome to Corelyn! Type a message to begin.\n")

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	events := make(chan tea.Msg, eventBuffer)
	host.OnAlert = func(text string) { events <- alertMsg(text) }
	host.OnTitle = func(title string) { events <- titleMsg(title) }
	host.OnToast = func(level trigger.Level, text string) { events <- toastMsg{level: level, text: text} }

	title := controller.Title()
	if title == "" {
		title = storage.DefaultChatName
	}

	return Model{
		ctx:        ctx,
		controller: controller,
		host:       host,
		renderer:   renderer,
		events:     events,
		modelName:  modelName,
		viewport:   vp,
		textinput:  ti,
		spinner:    sp,
		toasts:     newToasts(),
		title:      title,
	}
}

// Init starts the event listener and the toast clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tick(), m.spinner.Tick)
}

func waitForEvent(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - headerHeight - footerHeight
		if m.viewport.Height < 1 {
			m.viewport.Height = 1
		}
		m.textinput.Width = msg.Width - 4
		m.renderer.SetWidth(msg.Width)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if len(m.alerts) > 0 {
			m.alerts = m.alerts[1:]
			return m, nil
		}
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.streaming {
				return m, nil
			}
			input := validation.SanitizeInput(m.textinput.Value(), validation.MaxUserMessageLength)
			if input == "" {
				return m, nil
			}
			m.textinput.Reset()
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			return m.sendMessage(input)
		}

	case frameMsg:
		m.frame = string(msg)
		m.refresh()
		return m, waitForEvent(m.events)

	case toastMsg:
		m.toasts.Add(msg.text, msg.level)
		return m, waitForEvent(m.events)

	case alertMsg:
		m.alerts = append(m.alerts, string(msg))
		return m, waitForEvent(m.events)

	case titleMsg:
		m.title = string(msg)
		return m, waitForEvent(m.events)

	case exchangeDoneMsg:
		return m.handleExchangeDone(msg), waitForEvent(m.events)

	case transcriptMsg:
		m.loadTranscript(msg.transcript)
		m.notice = msg.notice
		m.refresh()
		return m, nil

	case noticeMsg:
		m.notice = string(msg)
		m.refresh()
		return m, nil

	case chatsListedMsg:
		m.notice = formatChats(msg, m.controller.ChatID())
		m.refresh()
		return m, nil

	case errMsg:
		m.notice = styleError.Render(fmt.Sprintf("Error: %v", error(msg)))
		m.refresh()
		return m, nil

	case tickMsg:
		m.toasts.Prune()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var tiCmd, vpCmd tea.Cmd
	m.textinput, tiCmd = m.textinput.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// View renders the UI.
func (m Model) View() string {
	header := styleHeader.Render(fmt.Sprintf("Corelyn • %s • %s", m.title, m.modelName))

	body := m.viewport.View()
	if len(m.alerts) > 0 {
		box := styleAlert.Render("🔔 " + m.alerts[0] + "\n\n" + styleFooter.Render("press any key"))
		body = lipgloss.Place(m.viewport.Width, m.viewport.Height, lipgloss.Center, lipgloss.Center, box)
	}

	status := ""
	if m.streaming && m.frame == "" {
		status = m.spinner.View() + " waiting for reply..."
	}
	if m.toasts.Len() > 0 {
		status = m.toasts.View(m.width)
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s",
		header,
		body,
		styleFooter.Render(status),
		styleInput.Render(m.textinput.View()),
	)
}

func (m *Model) refresh() {
	var b strings.Builder
	for _, e := range m.entries {
		b.WriteString(label(e.Role))
		b.WriteString("\n")
		b.WriteString(e.Rendered)
		b.WriteString("\n\n")
	}
	if m.streaming && m.frame != "" {
		b.WriteString(label(storage.RoleAssistant))
		b.WriteString("\n")
		b.WriteString(m.frame)
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(m.notice)
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func label(role string) string {
	switch role {
	case storage.RoleUser:
		return styleUserLabel.Render("You:")
	case storage.RoleAssistant:
		return styleAILabel.Render("AI:")
	default:
		return styleFeedbackLabel.Render("Feedback:")
	}
}

func (m *Model) render(role, content string) entry {
	rendered := content
	if role != storage.RoleUser {
		rendered = m.renderer.Render(content)
	}
	return entry{Role: role, Content: content, Rendered: rendered}
}

func (m Model) sendMessage(input string) (tea.Model, tea.Cmd) {
	m.entries = append(m.entries, m.render(storage.RoleUser, input))
	m.streaming = true
	m.frame = ""
	m.notice = ""
	m.refresh()

	ctx, controller, host, events := m.ctx, m.controller, m.host, m.events
	return m, func() tea.Msg {
		ex, err := controller.Send(ctx, host, input, func(frame string) {
			events <- frameMsg(frame)
		})
		events <- exchangeDoneMsg{ex: ex, err: err}
		return nil
	}
}

func (m Model) handleExchangeDone(msg exchangeDoneMsg) Model {
	m.streaming = false
	m.frame = ""
	if msg.err != nil {
		if !errors.Is(msg.err, chat.ErrStreaming) {
			m.notice = styleError.Render("Error: " + msg.err.Error())
		}
		m.refresh()
		return m
	}

	ex := msg.ex
	m.entries = append(m.entries, entry{Role: storage.RoleAssistant, Content: ex.Canonical, Rendered: ex.Frame})
	for _, fb := range ex.Feedback {
		m.entries = append(m.entries, m.render(fb.Role, fb.Content))
	}
	m.title = m.controller.Title()
	m.refresh()
	return m
}

// loadTranscript replaces the visible history. Stored feedback entries are
// rendered again; nothing is executed.
func (m *Model) loadTranscript(t *storage.Transcript) {
	m.entries = make([]entry, 0, len(t.Messages))
	for _, msg := range t.Messages {
		m.entries = append(m.entries, m.render(msg.Role, msg.Content))
	}
	m.title = t.Summary.Name
}

func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	if err := validation.ValidateCommand(input); err != nil {
		m.notice = styleError.Render("Invalid command: " + err.Error())
		m.refresh()
		return m, nil
	}

	parts := strings.Fields(input)
	cmd := parts[0]
	rest := strings.TrimSpace(strings.TrimPrefix(input, cmd))
	ctx, controller := m.ctx, m.controller

	switch cmd {
	case "/exit", "/quit":
		return m, tea.Quit

	case "/help":
		m.notice = styleSystem.Render(`Available commands:
/exit, /quit     - Exit application
/new             - Start a new chat
/chats, /list    - List saved chats
/load <id>       - Open a saved chat
/title <text>    - Rename the current chat
/delete [id]     - Delete a chat (the current one by default)
/run [n]         - Run the last (or nth) lua code block
/help            - Show this help`)
		m.refresh()
		return m, nil

	case "/new":
		return m, func() tea.Msg {
			if _, err := controller.NewChat(ctx); err != nil {
				return errMsg(err)
			}
			return transcriptMsg{
				transcript: &storage.Transcript{Summary: storage.SessionSummary{Name: controller.Title()}},
				notice:     styleSystem.Render("Started a new chat."),
			}
		}

	case "/chats", "/list":
		return m, func() tea.Msg {
			chats, err := controller.Chats(ctx, 0)
			if err != nil {
				return errMsg(fmt.Errorf("failed to list chats: %w", err))
			}
			return chatsListedMsg(chats)
		}

	case "/load":
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || id <= 0 {
			m.notice = styleError.Render("Usage: /load <id>")
			m.refresh()
			return m, nil
		}
		return m, func() tea.Msg {
			transcript, err := controller.Open(ctx, id)
			if err != nil {
				return errMsg(err)
			}
			return transcriptMsg{
				transcript: transcript,
				notice: styleSystem.Render(fmt.Sprintf("Loaded chat #%d: %s (%d messages)",
					transcript.Summary.ID, transcript.Summary.Name, len(transcript.Messages))),
			}
		}

	case "/title":
		if rest == "" {
			m.notice = styleError.Render("Usage: /title <text>")
			m.refresh()
			return m, nil
		}
		if err := controller.Rename(ctx, rest); err != nil {
			m.notice = styleError.Render("Error: " + err.Error())
		} else {
			m.title = controller.Title()
			m.notice = styleSystem.Render("Title set to " + m.title + ".")
		}
		m.refresh()
		return m, nil

	case "/delete":
		var id int64
		if rest != "" {
			parsed, err := strconv.ParseInt(rest, 10, 64)
			if err != nil || parsed <= 0 {
				m.notice = styleError.Render("Usage: /delete [id]")
				m.refresh()
				return m, nil
			}
			id = parsed
		}
		active := controller.ChatID()
		return m, func() tea.Msg {
			deleted, err := controller.Delete(ctx, id)
			if err != nil {
				return errMsg(err)
			}
			notice := styleSystem.Render(fmt.Sprintf("Deleted chat #%d.", deleted))
			if deleted != active {
				return noticeMsg(notice)
			}
			return transcriptMsg{
				transcript: &storage.Transcript{Summary: storage.SessionSummary{Name: storage.DefaultChatName}},
				notice:     notice,
			}
		}

	case "/run":
		n := 0
		if rest != "" {
			parsed, err := strconv.Atoi(rest)
			if err != nil || parsed <= 0 {
				m.notice = styleError.Render("Usage: /run [n]")
				m.refresh()
				return m, nil
			}
			n = parsed
		}
		host := m.host
		return m, func() tea.Msg {
			res, err := controller.Run(ctx, host, n)
			if err != nil {
				return errMsg(err)
			}
			if res.Err != nil {
				return noticeMsg(styleError.Render(res.String()))
			}
			return noticeMsg(styleSystem.Render(res.String()))
		}

	default:
		m.notice = styleError.Render("Unknown command: " + cmd + "\nUse /help to see available commands.")
		m.refresh()
		return m, nil
	}
}

func formatChats(chats []storage.SessionSummary, active int64) string {
	if len(chats) == 0 {
		return styleSystem.Render("No saved chats found.")
	}
	var b strings.Builder
	b.WriteString("Saved Chats:\n" + strings.Repeat("=", 50) + "\n")
	for _, c := range chats {
		marker := " "
		if c.ID == active {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s #%d: %s\n", marker, c.ID, c.Name)
		fmt.Fprintf(&b, "     %d messages • Last updated %s\n", c.MessageCount, formatRelative(c.UpdatedAt))
	}
	return styleSystem.Render(b.String())
}

// formatRelative formats a time relative to now.
func formatRelative(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	delta := time.Since(t)
	if delta < time.Minute {
		return "just now"
	}
	if delta < time.Hour {
		return fmt.Sprintf("%d min ago", int(delta.Minutes()))
	}
	if delta < 24*time.Hour {
		return fmt.Sprintf("%d hr ago", int(delta.Hours()))
	}
	if delta < 30*24*time.Hour {
		return fmt.Sprintf("%d d ago", int(delta.Hours()/24))
	}
	return t.Format("2006-01-02")
}
