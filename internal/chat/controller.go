// Package chat runs one exchange at a time through the reply pipeline:
// provider, command extraction, persistence, streaming, triggers and feedback.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ZaguanLabs/corelyn/internal/command"
	corerrors "github.com/ZaguanLabs/corelyn/internal/errors"
	"github.com/ZaguanLabs/corelyn/internal/feedback"
	"github.com/ZaguanLabs/corelyn/internal/markdown"
	"github.com/ZaguanLabs/corelyn/internal/provider"
	"github.com/ZaguanLabs/corelyn/internal/storage"
	"github.com/ZaguanLabs/corelyn/internal/stream"
	"github.com/ZaguanLabs/corelyn/internal/trigger"
	"github.com/ZaguanLabs/corelyn/internal/validation"
)

const titleLength = 40

var (
	// ErrStreaming is returned while another reply is still streaming.
	ErrStreaming = errors.New("a reply is already streaming")
	// ErrEmptyTitle is returned when a title is blank after sanitising.
	ErrEmptyTitle = errors.New("title cannot be empty")
)

// Store persists chats as append-only message logs.
type Store interface {
	CreateSession(ctx context.Context, name string) (int64, error)
	UpdateSessionName(ctx context.Context, id int64, name string) error
	AppendMessage(ctx context.Context, sessionID int64, message storage.Message) error
	LoadSession(ctx context.Context, id int64) (*storage.Transcript, error)
	ListSessions(ctx context.Context, limit int) ([]storage.SessionSummary, error)
	DeleteSession(ctx context.Context, id int64) error
}

// Host is the front end's side of an exchange.
type Host interface {
	command.Host
	Toast(level trigger.Level, text string)
}

// Exchange describes one completed round trip.
type Exchange struct {
	ID        string
	ChatID    int64
	Raw       string
	Canonical string
	Frame     string
	Commands  []command.Result
	Triggers  []trigger.Outcome
	// Feedback holds the entries appended after the assistant message, in
	// log order.
	Feedback []storage.Message
}

// Config wires a Controller.
type Config struct {
	Provider     provider.Provider
	Store        Store
	Parser       *command.Parser
	Engine       *trigger.Engine
	Renderer     *stream.Renderer
	SystemPrompt string
	Logger       *zap.Logger
}

// Controller owns the state of the active chat.
type Controller struct {
	provider provider.Provider
	store    Store
	parser   *command.Parser
	engine   *trigger.Engine
	renderer *stream.Renderer
	system   string
	logger   *zap.Logger

	mu        sync.Mutex
	streaming bool
	chatID    int64
	title     string
}

// New creates a Controller. Provider, Store, Parser and Renderer are required.
func New(cfg Config) (*Controller, error) {
	if cfg.Provider == nil {
		return nil, errors.New("provider cannot be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if cfg.Parser == nil {
		return nil, errors.New("parser cannot be nil")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("renderer cannot be nil")
	}
	if cfg.Engine == nil {
		engine, err := trigger.NewEngine(nil, trigger.DefaultOptions(), cfg.Logger)
		if err != nil {
			return nil, err
		}
		cfg.Engine = engine
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controller{
		provider: cfg.Provider,
		store:    cfg.Store,
		parser:   cfg.Parser,
		engine:   cfg.Engine,
		renderer: cfg.Renderer,
		system:   cfg.SystemPrompt,
		logger:   logger.Named("chat"),
	}, nil
}

// ChatID returns the active chat, 0 when none has been started.
func (c *Controller) ChatID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// Title returns the title of the active chat.
func (c *Controller) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}

// Streaming reports whether a reply is in flight.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// Renderer returns the renderer replies are streamed with.
func (c *Controller) Renderer() *stream.Renderer {
	return c.renderer
}

// NewChat starts a fresh chat and makes it active.
func (c *Controller) NewChat(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streaming {
		return 0, ErrStreaming
	}
	return c.newChatLocked(ctx)
}

func (c *Controller) newChatLocked(ctx context.Context) (int64, error) {
	id, err := c.store.CreateSession(ctx, storage.DefaultChatName)
	if err != nil {
		return 0, fmt.Errorf("create chat: %w", err)
	}
	c.chatID = id
	c.title = storage.DefaultChatName
	c.logger.Debug("chat created", zap.Int64("chat_id", id))
	return id, nil
}

// Open makes a stored chat active and returns its transcript.
func (c *Controller) Open(ctx context.Context, id int64) (*storage.Transcript, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streaming {
		return nil, ErrStreaming
	}
	transcript, err := c.store.LoadSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load chat %d: %w", id, err)
	}
	c.chatID = transcript.Summary.ID
	c.title = transcript.Summary.Name
	return transcript, nil
}

// Transcript returns the log of the active chat.
func (c *Controller) Transcript(ctx context.Context) (*storage.Transcript, error) {
	id := c.ChatID()
	if id == 0 {
		return &storage.Transcript{Summary: storage.SessionSummary{Name: storage.DefaultChatName}}, nil
	}
	return c.store.LoadSession(ctx, id)
}

// Chats lists stored chats, most recent first.
func (c *Controller) Chats(ctx context.Context, limit int) ([]storage.SessionSummary, error) {
	return c.store.ListSessions(ctx, limit)
}

// Delete removes a stored chat; id 0 means the active one. Deleting the active
// chat leaves none active, so the next Send starts a new one.
func (c *Controller) Delete(ctx context.Context, id int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streaming {
		return 0, ErrStreaming
	}
	if id == 0 {
		id = c.chatID
	}
	if id == 0 {
		return 0, errors.New("no active chat")
	}
	if err := c.store.DeleteSession(ctx, id); err != nil {
		return 0, fmt.Errorf("delete chat %d: %w", id, err)
	}
	if id == c.chatID {
		c.chatID = 0
		c.title = ""
	}
	c.logger.Debug("chat deleted", zap.Int64("chat_id", id))
	return id, nil
}

// LuaBlocks returns the fenced lua blocks of the active chat's assistant
// replies, oldest first.
func (c *Controller) LuaBlocks(ctx context.Context) ([]string, error) {
	transcript, err := c.Transcript(ctx)
	if err != nil {
		return nil, err
	}
	var blocks []string
	for _, m := range transcript.Messages {
		if m.Role != storage.RoleAssistant {
			continue
		}
		for _, b := range markdown.CodeBlocks(m.Content) {
			if strings.EqualFold(b.Lang, "lua") && b.Code != "" {
				blocks = append(blocks, b.Code)
			}
		}
	}
	return blocks, nil
}

// Run executes the nth lua block of the active chat, counting from 1; n of 0
// runs the most recent one. Nothing is persisted.
func (c *Controller) Run(ctx context.Context, host Host, n int) (trigger.RunResult, error) {
	blocks, err := c.LuaBlocks(ctx)
	if err != nil {
		return trigger.RunResult{}, err
	}
	if len(blocks) == 0 {
		return trigger.RunResult{}, errors.New("no lua code blocks in this chat")
	}
	if n == 0 {
		n = len(blocks)
	}
	if n < 0 || n > len(blocks) {
		return trigger.RunResult{}, fmt.Errorf("code block %d not found; this chat has %d", n, len(blocks))
	}
	if host == nil {
		host = nopHost{}
	}
	res := c.engine.Run(ctx, host, blocks[n-1])
	c.logger.Debug("code block run", zap.Int("block", n), zap.Int64("chat_id", c.ChatID()), zap.Error(res.Err))
	return res, nil
}

// Rename sets the title of the active chat.
func (c *Controller) Rename(ctx context.Context, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renameLocked(ctx, title)
}

func (c *Controller) renameLocked(ctx context.Context, title string) error {
	if c.chatID == 0 {
		return errors.New("no active chat")
	}
	name := storage.SanitizeName(title)
	if name == "" {
		return ErrEmptyTitle
	}
	if err := c.store.UpdateSessionName(ctx, c.chatID, name); err != nil {
		return err
	}
	c.title = name
	return nil
}

func (c *Controller) begin(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streaming {
		return 0, ErrStreaming
	}
	if c.chatID == 0 {
		if _, err := c.newChatLocked(ctx); err != nil {
			return 0, err
		}
	}
	c.streaming = true
	return c.chatID, nil
}

func (c *Controller) end() {
	c.mu.Lock()
	c.streaming = false
	c.mu.Unlock()
}

// Send runs one exchange for input. Frames of the assistant reply are passed
// to emit as they are produced. A provider failure is returned as a
// corerrors.SecureError and leaves no assistant entry in the log; the user
// message stays.
func (c *Controller) Send(ctx context.Context, host Host, input string, emit func(frame string)) (*Exchange, error) {
	if err := validation.ValidateUserMessage(input); err != nil {
		return nil, err
	}

	if host == nil {
		host = nopHost{}
	}

	chatID, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer c.end()

	ex := &Exchange{ID: uuid.NewString(), ChatID: chatID}
	log := c.logger.With(zap.String("exchange", ex.ID), zap.Int64("chat_id", chatID))

	if err := c.append(ctx, chatID, storage.RoleUser, input); err != nil {
		return nil, err
	}
	c.autoTitle(ctx, input, log)

	history, err := c.history(ctx, chatID)
	if err != nil {
		return nil, err
	}

	log.Debug("sending to provider", zap.String("provider", c.provider.Name()), zap.Int("messages", len(history)))
	raw, err := c.provider.Send(ctx, history, c.system)
	if err != nil {
		log.Error("provider exchange failed", zap.Error(err))
		return nil, corerrors.NewSecureProviderError(err)
	}
	ex.Raw = raw

	exHost := &exchangeHost{Host: host, controller: c, ctx: ctx}
	ex.Canonical, ex.Commands = c.parser.Process(ctx, exHost, raw)
	log.Debug("commands dispatched", zap.Int("count", len(ex.Commands)))

	if err := c.append(ctx, chatID, storage.RoleAssistant, ex.Canonical); err != nil {
		return ex, err
	}

	ex.Frame = c.renderer.Stream(ctx, ex.Canonical, emit)

	ex.Triggers = c.engine.Evaluate(ctx, host, ex.Canonical)
	for _, entry := range feedback.Triggers(ex.Triggers) {
		if err := c.appendFeedback(ctx, ex, entry); err != nil {
			return ex, err
		}
	}

	if entry, ok := feedback.Commands(ex.Commands); ok {
		if err := c.appendFeedback(ctx, ex, entry); err != nil {
			return ex, err
		}
	}

	log.Info("exchange complete",
		zap.Int("commands", len(ex.Commands)),
		zap.Int("triggers", len(ex.Triggers)),
		zap.Int("feedback", len(ex.Feedback)))
	return ex, nil
}

func (c *Controller) append(ctx context.Context, chatID int64, role, content string) error {
	if err := c.store.AppendMessage(ctx, chatID, storage.Message{Role: role, Content: content}); err != nil {
		return fmt.Errorf("append %s message: %w", role, err)
	}
	return nil
}

func (c *Controller) appendFeedback(ctx context.Context, ex *Exchange, entry string) error {
	if err := c.append(ctx, ex.ChatID, storage.RoleToolFeedback, entry); err != nil {
		return err
	}
	ex.Feedback = append(ex.Feedback, storage.Message{Role: storage.RoleToolFeedback, Content: entry})
	return nil
}

// autoTitle names an untitled chat after the start of its first message.
func (c *Controller) autoTitle(ctx context.Context, input string, log *zap.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.title != storage.DefaultChatName {
		return
	}
	title := strings.TrimSpace(truncate(input, titleLength))
	if err := c.renameLocked(ctx, title); err != nil {
		log.Warn("auto title failed", zap.Error(err))
	}
}

// history returns the user and assistant turns of a chat. Feedback entries
// never go back to the provider, and neither do assistant turns left empty
// by a command-only reply.
func (c *Controller) history(ctx context.Context, chatID int64) ([]provider.Message, error) {
	transcript, err := c.store.LoadSession(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	messages := make([]provider.Message, 0, len(transcript.Messages))
	for _, m := range transcript.Messages {
		switch m.Role {
		case storage.RoleUser:
		case storage.RoleAssistant:
			if strings.TrimSpace(m.Content) == "" {
				continue
			}
		default:
			continue
		}
		messages = append(messages, provider.Message{Role: m.Role, Content: m.Content})
	}
	return messages, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

type nopHost struct{}

func (nopHost) Download(name string, _ []byte) (string, error) { return name, nil }
func (nopHost) OpenURL(string) error { return nil }
func (nopHost) Alert(string) error { return nil }
func (nopHost) SetTitle(title string) (string, error) { return title, nil }
func (nopHost) Toast(trigger.Level, string) {}

// exchangeHost routes set_title through the controller so the new title is
// persisted before the front end hears about it.
type exchangeHost struct {
	Host
	controller *Controller
	ctx        context.Context
}

func (h *exchangeHost) SetTitle(title string) (string, error) {
	if err := h.controller.Rename(h.ctx, title); err != nil {
		if errors.Is(err, ErrEmptyTitle) {
			return "", command.Refuse("No title provided.")
		}
		return "", err
	}
	return h.Host.SetTitle(h.controller.Title())
}
