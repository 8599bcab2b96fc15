// Package storage persists chats and their append-only message logs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	_ "modernc.org/sqlite"

	corerrors "github.com/ZaguanLabs/corelyn/internal/errors"
)

const (
	defaultDirName  = ".local/share/corelyn"
	defaultFileName = "corelyn.db"
	timestampLayout = time.RFC3339

	// DefaultChatName is the title of a chat nobody has named yet.
	DefaultChatName = "New Chat"

	maxSessionNameLength = 200
	maxMessageLength     = 1 << 20
)

// Message roles.
const (
	RoleUser         = "user"
	RoleAssistant    = "assistant"
	RoleToolFeedback = "tool-feedback"
	RoleSystem       = "system"
)

var validRoles = map[string]bool{
	RoleUser:         true,
	RoleAssistant:    true,
	RoleToolFeedback: true,
	RoleSystem:       true,
}

// Store wraps access to the persistent conversation database.
type Store struct {
	db            *sql.DB
	preparedStmts map[string]*sql.Stmt
	preparedMutex sync.RWMutex
}

// Message represents a persisted chat message.
type Message struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// SessionSummary describes a saved conversation.
type SessionSummary struct {
	ID           int64
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// Transcript bundles a session summary with its messages.
type Transcript struct {
	Summary  SessionSummary
	Messages []Message
}

// Open initialises the storage layer, creating the database if necessary.
func Open(path string) (*Store, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", resolved)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, corerrors.NewStorageError("open", "failed to open sqlite database", err)
	}

	// One connection serialises writers and keeps the pragmas in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		store.Close()
		return nil, err
	}

	if err := store.initializePreparedStatements(); err != nil {
		store.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) initializePreparedStatements() error {
	s.preparedStmts = make(map[string]*sql.Stmt)

	stmts := map[string]string{
		"createSession":     `INSERT INTO sessions(name) VALUES (?)`,
		"updateSessionName": `UPDATE sessions SET name = ?, updated_at = (strftime('%Y-%m-%dT%H:%M:%SZ','now')) WHERE id = ?`,
		"appendMessage":     `INSERT INTO messages(session_id, role, content) VALUES (?, ?, ?)`,
		"touchSession":      `UPDATE sessions SET updated_at = (strftime('%Y-%m-%dT%H:%M:%SZ','now')) WHERE id = ?`,
		"listSessions":      `SELECT s.id, s.name, s.created_at, s.updated_at, COUNT(m.id) AS message_count FROM sessions s LEFT JOIN messages m ON m.session_id = s.id GROUP BY s.id ORDER BY s.updated_at DESC, s.id DESC LIMIT ?`,
		"getSession":        `SELECT s.id, s.name, s.created_at, s.updated_at, COUNT(m.id) AS message_count FROM sessions s LEFT JOIN messages m ON m.session_id = s.id WHERE s.id = ? GROUP BY s.id`,
		"getMessages":       `SELECT role, content, created_at FROM messages WHERE session_id = ? ORDER BY id ASC`,
		"deleteSession":     `DELETE FROM sessions WHERE id = ?`,
	}

	for name, query := range stmts {
		stmt, err := s.db.Prepare(query)
		if err != nil {
			return corerrors.NewStorageError("prepare", fmt.Sprintf("statement %s", name), err)
		}
		s.preparedStmts[name] = stmt
	}

	return nil
}

// Close releases underlying database resources and prepared statements.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}

	var firstError error

	s.preparedMutex.Lock()
	for _, stmt := range s.preparedStmts {
		if err := stmt.Close(); err != nil && firstError == nil {
			firstError = err
		}
	}
	s.preparedStmts = nil
	s.preparedMutex.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil && firstError == nil {
			firstError = err
		}
	}

	return firstError
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
            updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            session_id INTEGER NOT NULL,
            role TEXT NOT NULL,
            content TEXT NOT NULL,
            created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
            FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages(session_id);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return corerrors.NewStorageError("migrate", "apply migration", err)
		}
	}

	return nil
}

func (s *Store) getPreparedStmt(name string) (*sql.Stmt, error) {
	s.preparedMutex.RLock()
	stmt := s.preparedStmts[name]
	s.preparedMutex.RUnlock()

	if stmt == nil {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return errors.New("storage not initialised")
	}
	return nil
}

// CreateSession inserts a new chat and returns its identifier. An empty name
// becomes DefaultChatName.
func (s *Store) CreateSession(ctx context.Context, name string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	title := SanitizeName(name)
	if title == "" {
		title = DefaultChatName
	}

	stmt, err := s.getPreparedStmt("createSession")
	if err != nil {
		return 0, err
	}

	res, err := stmt.ExecContext(ctx, title)
	if err != nil {
		return 0, corerrors.NewStorageError("create", "insert session", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, corerrors.NewStorageError("create", "resolve session id", err)
	}

	return id, nil
}

// UpdateSessionName renames a chat. The name is sanitised, not rejected.
func (s *Store) UpdateSessionName(ctx context.Context, id int64, name string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if id <= 0 {
		return corerrors.NewValidationError("id", "must be greater than 0", id, nil)
	}

	title := SanitizeName(name)
	if title == "" {
		return corerrors.NewValidationError("name", "cannot be empty", name, nil)
	}

	stmt, err := s.getPreparedStmt("updateSessionName")
	if err != nil {
		return err
	}

	res, err := stmt.ExecContext(ctx, title, id)
	if err != nil {
		return corerrors.NewStorageError("rename", "update session name", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return corerrors.NewStorageError("rename", fmt.Sprintf("session %d not found", id), nil)
	}

	return nil
}

// AppendMessage appends a message to the end of a chat's log.
func (s *Store) AppendMessage(ctx context.Context, sessionID int64, message Message) error {
	if err := s.ready(); err != nil {
		return err
	}
	if sessionID <= 0 {
		return corerrors.NewValidationError("sessionID", "must be greater than 0", sessionID, nil)
	}
	if err := validateMessageRole(message.Role); err != nil {
		return corerrors.NewValidationError("role", err.Error(), message.Role, err)
	}
	if err := validateMessageContent(message.Role, message.Content); err != nil {
		return corerrors.NewValidationError("content", err.Error(), nil, err)
	}

	stmt, err := s.getPreparedStmt("appendMessage")
	if err != nil {
		return err
	}

	if _, err := stmt.ExecContext(ctx, sessionID, message.Role, message.Content); err != nil {
		return corerrors.NewStorageError("append", "insert message", err)
	}

	touchStmt, err := s.getPreparedStmt("touchSession")
	if err != nil {
		return err
	}

	if _, err := touchStmt.ExecContext(ctx, sessionID); err != nil {
		return corerrors.NewStorageError("append", "touch session", err)
	}

	return nil
}

// DeleteSession removes a chat and its messages.
func (s *Store) DeleteSession(ctx context.Context, id int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	stmt, err := s.getPreparedStmt("deleteSession")
	if err != nil {
		return err
	}
	res, err := stmt.ExecContext(ctx, id)
	if err != nil {
		return corerrors.NewStorageError("delete", "delete session", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return corerrors.NewStorageError("delete", fmt.Sprintf("session %d not found", id), nil)
	}
	return nil
}

// ListSessions returns stored conversations ordered by most recent activity.
// A limit of zero or less lists everything.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	stmt, err := s.getPreparedStmt("listSessions")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, corerrors.NewStorageError("list", "list sessions", err)
	}
	defer rows.Close()

	summaries := make([]SessionSummary, 0, 8)
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session summaries: %w", err)
	}

	return summaries, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSummary(row scanner) (SessionSummary, error) {
	var summary SessionSummary
	var created, updated string
	if err := row.Scan(&summary.ID, &summary.Name, &created, &updated, &summary.MessageCount); err != nil {
		return summary, err
	}

	var err error
	if summary.CreatedAt, err = parseTimestamp(created); err != nil {
		return summary, err
	}
	if summary.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return summary, err
	}
	return summary, nil
}

// LoadSession fetches the chat metadata and its full message log in order.
func (s *Store) LoadSession(ctx context.Context, id int64) (*Transcript, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, corerrors.NewValidationError("id", "must be greater than 0", id, nil)
	}

	stmt, err := s.getPreparedStmt("getSession")
	if err != nil {
		return nil, err
	}
	summary, err := scanSummary(stmt.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, corerrors.NewStorageError("load", fmt.Sprintf("session %d not found", id), err)
		}
		return nil, corerrors.NewStorageError("load", "select session", err)
	}

	msgStmt, err := s.getPreparedStmt("getMessages")
	if err != nil {
		return nil, err
	}
	rows, err := msgStmt.QueryContext(ctx, id)
	if err != nil {
		return nil, corerrors.NewStorageError("load", "load messages", err)
	}
	defer rows.Close()

	messages := make([]Message, 0, summary.MessageCount)
	for rows.Next() {
		var msg Message
		var createdAt string
		if err := rows.Scan(&msg.Role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt, err = parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return &Transcript{Summary: summary, Messages: messages}, nil
}

func resolvePath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == ":memory:" {
		return trimmed, nil
	}
	if trimmed == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(home, defaultDirName, defaultFileName)
	}

	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create storage directory: %w", err)
	}

	return absPath, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}

// SanitizeName collapses whitespace, drops control characters and limits a
// chat title to 200 runes.
func SanitizeName(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, input)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	runes := []rune(cleaned)
	if len(runes) > maxSessionNameLength {
		cleaned = strings.TrimSpace(string(runes[:maxSessionNameLength]))
	}
	return cleaned
}

func validateMessageRole(role string) error {
	if !validRoles[role] {
		return fmt.Errorf("invalid message role %q (must be one of: user, assistant, tool-feedback, system)", role)
	}
	return nil
}

// validateMessageContent allows an empty assistant entry: a reply made only of
// commands still takes its turn in the history.
func validateMessageContent(role, content string) error {
	if strings.TrimSpace(content) == "" && role != RoleAssistant {
		return errors.New("message content cannot be empty")
	}

	if len(content) > maxMessageLength {
		return fmt.Errorf("message content too long (max %d bytes)", maxMessageLength)
	}

	if strings.ContainsRune(content, 0) {
		return errors.New("message content contains a NUL byte")
	}

	return nil
}
