package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/ZaguanLabs/corelyn/internal/storage"
	"github.com/ZaguanLabs/corelyn/internal/trigger"
	"github.com/ZaguanLabs/corelyn/internal/ui"
	"github.com/ZaguanLabs/corelyn/internal/validation"
)

const listLimit = 20

// Session is the line-mode front end.
type Session struct {
	controller     *Controller
	host           *TerminalHost
	input          io.Reader
	output         io.Writer
	palette        ui.Palette
	interactive    bool
	version        string
	model          string
	mdRenderer     *glamour.TermRenderer
	renderMarkdown bool
	logger         *zap.Logger
}

// NewSession creates a line-mode session. Alerts, toasts and title changes of
// host are printed to the session output.
func NewSession(controller *Controller, host *TerminalHost, version, model string, logger *zap.Logger) (*Session, error) {
	if controller == nil {
		return nil, errors.New("controller cannot be nil")
	}
	if host == nil {
		return nil, errors.New("host cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(ui.TerminalWidth()-4),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	s := &Session{
		controller:     controller,
		host:           host,
		input:          os.Stdin,
		output:         os.Stdout,
		palette:        ui.Palette{Enabled: true},
		interactive:    ui.IsTerminal(os.Stdin),
		version:        version,
		model:          model,
		mdRenderer:     renderer,
		renderMarkdown: true,
		logger:         logger.Named("repl"),
	}
	host.OnAlert = func(text string) {
		s.println(s.palette.Status("🔔", text, "warning"))
	}
	host.OnToast = func(level trigger.Level, text string) {
		kind := "info"
		if level == trigger.Error {
			kind = "error"
		}
		s.println(s.palette.Status("⚡", text, kind))
	}
	host.OnTitle = func(title string) {
		s.println(s.palette.Status("🏷️", "Title: "+title, "info"))
	}
	return s, nil
}

// SetIO overrides input/output streams and turns off line editing.
func (s *Session) SetIO(in io.Reader, out io.Writer) {
	if in != nil {
		s.input = in
		s.interactive = false
	}
	if out != nil {
		s.output = out
	}
}

// DisableColors turns off ANSI colour output.
func (s *Session) DisableColors() {
	s.palette.Enabled = false
}

// DisableMarkdown prints replies as plain text.
func (s *Session) DisableMarkdown() {
	s.renderMarkdown = false
}

// Run reads lines until EOF or /exit.
func (s *Session) Run(ctx context.Context) error {
	s.printWelcome()

	read, closeFn := s.reader()
	defer closeFn()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := read()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return err
		}

		input := validation.SanitizeInput(line, validation.MaxUserMessageLength)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			exit, err := s.handleCommand(ctx, input)
			if err != nil {
				s.printError(err.Error())
			}
			if exit {
				return nil
			}
			continue
		}

		if err := s.sendMessage(ctx, input); err != nil {
			s.printError(err.Error())
		}
	}
}

// reader returns a line source: liner with history on a terminal, a plain
// scanner otherwise.
func (s *Session) reader() (func() (string, error), func()) {
	if s.interactive {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		read := func() (string, error) {
			line, err := state.Prompt("> ")
			if err == nil && strings.TrimSpace(line) != "" {
				state.AppendHistory(line)
			}
			return line, err
		}
		return read, func() { _ = state.Close() }
	}

	scanner := bufio.NewScanner(s.input)
	scanner.Buffer(make([]byte, 0, 64*1024), validation.MaxUserMessageLength+1)
	read := func() (string, error) {
		fmt.Fprint(s.output, s.palette.Paint(ui.Cyan, "> "))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return scanner.Text(), nil
	}
	return read, func() {}
}

func (s *Session) sendMessage(ctx context.Context, input string) error {
	ex, err := s.controller.Send(ctx, s.host, input, nil)
	if err != nil {
		return err
	}
	s.printEntry(storage.Message{Role: storage.RoleAssistant, Content: ex.Canonical})
	for _, entry := range ex.Feedback {
		s.printEntry(entry)
	}
	return nil
}

func (s *Session) handleCommand(ctx context.Context, input string) (exit bool, err error) {
	if err := validation.ValidateCommand(input); err != nil {
		return false, err
	}
	fields := strings.Fields(input)
	cmd, rest := fields[0], strings.TrimSpace(strings.TrimPrefix(input, fields[0]))

	switch cmd {
	case "/exit", "/quit":
		s.println(s.palette.Paint(ui.Yellow, "Goodbye!"))
		return true, nil

	case "/help":
		s.printHelp()
		return false, nil

	case "/new":
		id, err := s.controller.NewChat(ctx)
		if err != nil {
			return false, err
		}
		s.println(s.palette.Status("✨", fmt.Sprintf("Started chat #%d.", id), "success"))
		return false, nil

	case "/chats", "/list":
		return false, s.printChats(ctx)

	case "/load":
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || id <= 0 {
			return false, errors.New("usage: /load <id>")
		}
		transcript, err := s.controller.Open(ctx, id)
		if err != nil {
			return false, err
		}
		s.printTranscript(transcript)
		return false, nil

	case "/history":
		transcript, err := s.controller.Transcript(ctx)
		if err != nil {
			return false, err
		}
		s.printTranscript(transcript)
		return false, nil

	case "/title":
		if rest == "" {
			s.println(s.palette.Status("🏷️", "Title: "+s.controller.Title(), "info"))
			return false, nil
		}
		if err := s.controller.Rename(ctx, rest); err != nil {
			return false, err
		}
		s.println(s.palette.Status("🏷️", "Title: "+s.controller.Title(), "info"))
		return false, nil

	case "/delete":
		var id int64
		if rest != "" {
			id, err = strconv.ParseInt(rest, 10, 64)
			if err != nil || id <= 0 {
				return false, errors.New("usage: /delete [id]")
			}
		}
		deleted, err := s.controller.Delete(ctx, id)
		if err != nil {
			return false, err
		}
		s.println(s.palette.Status("🗑️", fmt.Sprintf("Deleted chat #%d.", deleted), "success"))
		return false, nil

	case "/run":
		n := 0
		if rest != "" {
			n, err = strconv.Atoi(rest)
			if err != nil || n <= 0 {
				return false, errors.New("usage: /run [n]")
			}
		}
		res, err := s.controller.Run(ctx, s.host, n)
		if err != nil {
			return false, err
		}
		color := ui.Green
		if res.Err != nil {
			color = ui.Red
		}
		s.println(s.palette.Paint(color, res.String()))
		return false, nil

	case "/rules":
		s.printRules()
		return false, nil

	case "/markdown":
		s.renderMarkdown = !s.renderMarkdown
		status := "enabled"
		if !s.renderMarkdown {
			status = "disabled"
		}
		s.println(s.palette.Paint(ui.Yellow, fmt.Sprintf("Markdown rendering %s.", status)))
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %q. Try /help", cmd)
	}
}

func (s *Session) printWelcome() {
	s.println(s.palette.Paint(ui.Cyan, fmt.Sprintf("=== Corelyn v%s ===", s.version)))
	if s.model != "" {
		s.println("Model: " + s.model)
	}
	s.println(s.palette.Paint(ui.Yellow, "Type /help for commands, /exit to quit"))
	s.println("")
}

func (s *Session) printHelp() {
	help := `Available commands:
  /help        - Show this help message
  /exit        - Exit the chat
  /new         - Start a new chat
  /chats       - List saved chats
  /load <id>   - Open a saved chat
  /history     - Show the current chat
  /title [t]   - Show or set the chat title
  /delete [id] - Delete a chat (the current one by default)
  /run [n]     - Run the last (or nth) lua code block of the chat
  /rules       - List trigger rules
  /markdown    - Toggle markdown rendering`
	s.println(s.palette.Paint(ui.Yellow, help))
}

func (s *Session) printChats(ctx context.Context) error {
	chats, err := s.controller.Chats(ctx, listLimit)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		s.println(s.palette.Paint(ui.Yellow, "No saved chats."))
		return nil
	}
	active := s.controller.ChatID()
	for _, c := range chats {
		marker := " "
		if c.ID == active {
			marker = "*"
		}
		s.println(fmt.Sprintf("%s #%-4d %-40s %3d msgs  %s", marker, c.ID, ui.Truncate(c.Name, 40), c.MessageCount, c.UpdatedAt.Local().Format("2006-01-02 15:04")))
	}
	return nil
}

func (s *Session) printRules() {
	rules := s.controller.engine.Rules()
	if len(rules) == 0 {
		s.println(s.palette.Paint(ui.Yellow, "No trigger rules configured."))
		return
	}
	for i, r := range rules {
		s.println(fmt.Sprintf("#%d [%s] %s → %s", i+1, r.Kind.Normalized(), r.Match, ui.Truncate(r.Action, 60)))
	}
}

// printTranscript replays stored entries. Feedback entries are displayed as
// they were stored; nothing is executed again.
func (s *Session) printTranscript(t *storage.Transcript) {
	s.println(s.palette.Paint(ui.Bold, t.Summary.Name))
	if len(t.Messages) == 0 {
		s.println(s.palette.Paint(ui.Yellow, "No history yet."))
		return
	}
	for _, m := range t.Messages {
		s.printEntry(m)
	}
}

func (s *Session) printEntry(m storage.Message) {
	s.println(s.palette.MessageHeader(m.Role, m.CreatedAt, ui.TerminalWidth()))
	if m.Role == storage.RoleUser || !s.renderMarkdown || s.mdRenderer == nil {
		s.println(m.Content)
		return
	}
	rendered, err := s.mdRenderer.Render(m.Content)
	if err != nil {
		s.logger.Debug("markdown render failed", zap.Error(err))
		s.println(m.Content)
		return
	}
	fmt.Fprint(s.output, rendered)
}

func (s *Session) printError(text string) {
	s.println(s.palette.Paint(ui.Red, "Error: "+text))
}

func (s *Session) println(text string) {
	fmt.Fprintln(s.output, text)
}
