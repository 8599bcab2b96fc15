package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ZaguanLabs/corelyn/internal/provider"
	"github.com/ZaguanLabs/corelyn/internal/storage"
)

// MockProvider returns scripted replies in sequence.
type MockProvider struct {
	mu            sync.Mutex
	name          string
	responses     []string
	responseIndex int
	err           error
	delay         time.Duration
	callCount     int
	lastMessages  []provider.Message
	lastSystem    string
}

// NewMockProvider creates a provider that answers with responses in order,
// wrapping around at the end.
func NewMockProvider(responses ...string) *MockProvider {
	if len(responses) == 0 {
		responses = []string{"Hello! How can I help you today?"}
	}
	return &MockProvider{name: "mock", responses: responses}
}

// Name implements provider.Provider.
func (m *MockProvider) Name() string { return m.name }

// SetResponses replaces the scripted replies.
func (m *MockProvider) SetResponses(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	m.responseIndex = 0
}

// SetError makes every following Send fail with err.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay sets a simulated network delay.
func (m *MockProvider) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
}

// Send implements provider.Provider.
func (m *MockProvider) Send(ctx context.Context, messages []provider.Message, system string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.lastMessages = append([]provider.Message(nil), messages...)
	m.lastSystem = system
	delay := m.delay
	err := m.err
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return provider.NoResponse, nil
	}
	response := m.responses[m.responseIndex%len(m.responses)]
	m.responseIndex++
	return response, nil
}

// GetCallCount returns the number of Send calls made.
func (m *MockProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastRequest returns the messages and system prompt of the latest Send.
func (m *MockProvider) LastRequest() ([]provider.Message, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.Message(nil), m.lastMessages...), m.lastSystem
}

// MockStore is an in-memory chat store.
type MockStore struct {
	mu        sync.Mutex
	sessions  map[int64]*storage.SessionSummary
	messages  map[int64][]storage.Message
	nextID    int64
	errors    map[string]error
	callCount int
	clock     time.Time
}

// NewMockStore creates an empty store.
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[int64]*storage.SessionSummary),
		messages: make(map[int64][]storage.Message),
		errors:   make(map[string]error),
		nextID:   1,
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// SetError simulates an error for a specific operation, by method name.
func (m *MockStore) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[operation] = err
}

// tick returns a strictly increasing timestamp so ordering is deterministic.
func (m *MockStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *MockStore) begin(ctx context.Context, operation string) error {
	m.callCount++
	if err := m.errors[operation]; err != nil {
		return err
	}
	return ctx.Err()
}

// CreateSession implements the chat store.
func (m *MockStore) CreateSession(ctx context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, "CreateSession"); err != nil {
		return 0, err
	}
	if name == "" {
		name = storage.DefaultChatName
	}
	now := m.tick()
	session := &storage.SessionSummary{ID: m.nextID, Name: name, CreatedAt: now, UpdatedAt: now}
	m.sessions[session.ID] = session
	m.nextID++
	return session.ID, nil
}

// UpdateSessionName implements the chat store.
func (m *MockStore) UpdateSessionName(ctx context.Context, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, "UpdateSessionName"); err != nil {
		return err
	}
	session, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %d not found", id)
	}
	session.Name = name
	session.UpdatedAt = m.tick()
	return nil
}

// AppendMessage implements the chat store.
func (m *MockStore) AppendMessage(ctx context.Context, sessionID int64, message storage.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, "AppendMessage"); err != nil {
		return err
	}
	session, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %d not found", sessionID)
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = m.tick()
	}
	m.messages[sessionID] = append(m.messages[sessionID], message)
	session.MessageCount++
	session.UpdatedAt = message.CreatedAt
	return nil
}

// ListSessions implements the chat store, most recently updated first.
func (m *MockStore) ListSessions(ctx context.Context, limit int) ([]storage.SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, "ListSessions"); err != nil {
		return nil, err
	}
	sessions := make([]storage.SessionSummary, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, *session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].UpdatedAt.Equal(sessions[j].UpdatedAt) {
			return sessions[i].ID > sessions[j].ID
		}
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// LoadSession implements the chat store.
func (m *MockStore) LoadSession(ctx context.Context, id int64) (*storage.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, "LoadSession"); err != nil {
		return nil, err
	}
	session, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %d not found", id)
	}
	return &storage.Transcript{
		Summary:  *session,
		Messages: append([]storage.Message(nil), m.messages[id]...),
	}, nil
}

// DeleteSession implements the chat store.
func (m *MockStore) DeleteSession(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, "DeleteSession"); err != nil {
		return err
	}
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("session %d not found", id)
	}
	delete(m.sessions, id)
	delete(m.messages, id)
	return nil
}

// Messages returns the log of a session.
func (m *MockStore) Messages(id int64) []storage.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.Message(nil), m.messages[id]...)
}

// GetCallCount returns the number of store calls made.
func (m *MockStore) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
