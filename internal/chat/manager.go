// Package chat maintains the realtime companion chat session: one live
// connection per authenticated identity, message delivery, unread tracking
// and teardown on identity change.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// State is the coarse connection state surfaced to consumers.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// HistoryLoader fetches previously persisted conversation history.
type HistoryLoader interface {
	ConversationHistory(ctx context.Context) ([]Message, error)
}

// MessageStore caches messages locally so a relaunch can render before the
// network answers.
type MessageStore interface {
	SaveMessage(ctx context.Context, identity string, msg Message) error
	Messages(ctx context.Context, identity string, limit int) ([]Message, error)
}

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	URL          string
	DialTimeout  time.Duration
	Reconnection Reconnection
}

// SessionManager owns at most one live connection bound to the current
// identity. All mutation happens under a single mutex; consumers receive
// copies and invoke the documented commands.
type SessionManager struct {
	transport Transport
	cfg       SessionConfig

	mu       sync.Mutex
	identity string
	conn     Conn
	state    State
	seq      uint64 // increments per connection attempt and per teardown
	messages []Message
	seen     map[string]struct{}
	unread   int

	store     MessageStore
	history   HistoryLoader
	typingFn  func(bool)
	messageFn func(Message)
}

// NewSessionManager creates an idle manager. Call Connect or wire
// OnIdentityChanged into an identity provider to bring it up.
func NewSessionManager(transport Transport, cfg SessionConfig) *SessionManager {
	return &SessionManager{
		transport: transport,
		cfg:       cfg,
		seen:      make(map[string]struct{}),
	}
}

// SetStore attaches a local message cache.
func (m *SessionManager) SetStore(store MessageStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
}

// SetHistoryLoader attaches the backend history source used by LoadHistory.
func (m *SessionManager) SetHistoryLoader(loader HistoryLoader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = loader
}

// SetTypingFunc registers a callback for the transient typing indicator.
func (m *SessionManager) SetTypingFunc(fn func(bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typingFn = fn
}

// SetMessageFunc registers a callback invoked for each inbound message.
func (m *SessionManager) SetMessageFunc(fn func(Message)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messageFn = fn
}

// OnIdentityChanged is the identity provider hook: it tears the current
// session down and, for a non-empty id, brings a fresh one up.
func (m *SessionManager) OnIdentityChanged(id string) {
	if id == "" {
		m.Disconnect()
		m.mu.Lock()
		m.identity = ""
		m.mu.Unlock()
		return
	}
	if err := m.Connect(context.Background(), id); err != nil {
		slog.Error("Chat session connect failed", "error", err, "user_id", id)
	}
}

// Connect establishes the session for identity. A live connection for the
// same identity makes this a no-op; any other existing connection is fully
// disposed before the new dial so two live connections never coexist.
func (m *SessionManager) Connect(ctx context.Context, identity string) error {
	if identity == "" {
		return fmt.Errorf("connect requires an identity")
	}

	m.mu.Lock()
	if m.identity == identity && m.conn != nil && m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.disposeLocked()
	m.identity = identity
	m.messages = nil
	m.seen = make(map[string]struct{})
	m.unread = 0
	m.seq++
	seq := m.seq
	m.state = StateConnecting
	opts := DialOptions{
		Identity:     identity,
		Timeout:      m.cfg.DialTimeout,
		Reconnection: m.cfg.Reconnection,
	}
	url := m.cfg.URL
	m.mu.Unlock()

	slog.Info("Chat session connecting", "user_id", identity, "instance", seq)
	conn, err := m.transport.Dial(ctx, url, opts)

	m.mu.Lock()
	if m.seq != seq {
		// Identity changed while dialing; this connection is superseded.
		m.mu.Unlock()
		if err == nil {
			_ = conn.Close()
		}
		return nil
	}
	if err != nil {
		m.state = StateDisconnected
		m.mu.Unlock()
		return fmt.Errorf("dial chat transport: %w", err)
	}
	m.conn = conn
	m.state = StateConnected
	m.mu.Unlock()

	m.registerHandlers(conn, seq)
	slog.Info("Chat session connected", "user_id", identity, "instance", seq)
	return nil
}

// Disconnect removes all event handlers, requests transport close and
// clears the connection handle. Safe to call when already disconnected.
func (m *SessionManager) Disconnect() {
	m.mu.Lock()
	m.disposeLocked()
	m.mu.Unlock()
}

// disposeLocked fully disposes the current connection. Bumping seq makes
// in-flight dials and late events for the old instance no-ops.
func (m *SessionManager) disposeLocked() {
	m.seq++
	if m.conn == nil {
		m.state = StateDisconnected
		return
	}
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected

	for _, event := range []string{EventConnect, EventDisconnect, EventConnectError, EventMessage, EventTyping} {
		conn.Off(event)
	}
	if err := conn.Close(); err != nil {
		slog.Debug("Chat connection close failed", "error", err)
	}
	slog.Info("Chat session disposed", "user_id", m.identity)
}

func (m *SessionManager) registerHandlers(conn Conn, seq uint64) {
	conn.On(EventConnect, func(json.RawMessage) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.seq != seq {
			return
		}
		m.state = StateConnected
		slog.Info("Chat session reconnected", "user_id", m.identity, "instance", seq)
	})

	conn.On(EventDisconnect, func(data json.RawMessage) {
		var p DisconnectPayload
		_ = json.Unmarshal(data, &p)

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.seq != seq {
			return
		}
		if p.Reason == ReasonRetriesExhausted || !m.cfg.Reconnection.Enabled {
			m.state = StateDisconnected
			m.conn = nil
			slog.Warn("Chat session down until next connect", "user_id", m.identity, "reason", p.Reason)
			return
		}
		m.state = StateConnecting
		slog.Info("Chat session lost, transport retrying", "user_id", m.identity)
	})

	conn.On(EventConnectError, func(json.RawMessage) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.seq != seq {
			return
		}
		slog.Warn("Chat session connect error", "user_id", m.identity, "instance", seq)
	})

	conn.On(EventMessage, func(data json.RawMessage) {
		var p MessagePayload
		if err := json.Unmarshal(data, &p); err != nil {
			slog.Debug("Chat session dropped malformed message event", "error", err)
			return
		}
		m.onMessage(seq, p)
	})

	conn.On(EventTyping, func(data json.RawMessage) {
		var p TypingPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		m.mu.Lock()
		stale := m.seq != seq
		fn := m.typingFn
		m.mu.Unlock()
		if stale || fn == nil {
			return
		}
		fn(p.Typing)
	})
}

// onMessage appends an inbound assistant message and bumps the unread
// count. Redelivered ids are dropped.
func (m *SessionManager) onMessage(seq uint64, p MessagePayload) {
	msg := NewAssistantMessage(p.ID, p.Text)

	m.mu.Lock()
	if m.seq != seq {
		m.mu.Unlock()
		return
	}
	if _, dup := m.seen[msg.ID]; dup {
		m.mu.Unlock()
		slog.Debug("Chat session dropped redelivered message", "message_id", msg.ID)
		return
	}
	m.seen[msg.ID] = struct{}{}
	m.messages = append(m.messages, msg)
	m.unread++
	identity := m.identity
	store := m.store
	fn := m.messageFn
	m.mu.Unlock()

	m.persist(identity, store, msg)
	if fn != nil {
		fn(msg)
	}
}

// SendMessage appends a local echo immediately and publishes the text
// fire-and-forget. Returns false for empty text or a signed-out manager.
func (m *SessionManager) SendMessage(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	m.mu.Lock()
	if m.identity == "" {
		m.mu.Unlock()
		return false
	}
	msg := NewUserMessage(text)
	m.seen[msg.ID] = struct{}{}
	m.messages = append(m.messages, msg)
	identity := m.identity
	conn := m.conn
	store := m.store
	m.mu.Unlock()

	m.persist(identity, store, msg)

	if conn == nil {
		slog.Warn("Chat message queued locally only, no connection", "user_id", identity)
		return true
	}
	if err := conn.Emit(EventSendMessage, SendPayload{UserID: identity, Text: text}); err != nil {
		// Failure is only observable through the connection state.
		slog.Warn("Chat message publish failed", "error", err, "user_id", identity)
	}
	return true
}

func (m *SessionManager) persist(identity string, store MessageStore, msg Message) {
	if store == nil || identity == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.SaveMessage(ctx, identity, msg); err != nil {
			slog.Warn("Failed to cache chat message", "error", err, "user_id", identity)
		}
	}()
}

// LoadHistory seeds the message list from the backend, falling back to the
// local cache when the backend is unreachable. Live messages that already
// arrived stay appended after the history.
func (m *SessionManager) LoadHistory(ctx context.Context) error {
	m.mu.Lock()
	identity := m.identity
	loader := m.history
	store := m.store
	seq := m.seq
	m.mu.Unlock()

	if identity == "" {
		return fmt.Errorf("load history requires an identity")
	}

	var history []Message
	var err error
	if loader != nil {
		history, err = loader.ConversationHistory(ctx)
	}
	if (loader == nil || err != nil) && store != nil {
		if err != nil {
			slog.Warn("History fetch failed, falling back to cache", "error", err, "user_id", identity)
		}
		history, err = store.Messages(ctx, identity, 200)
	}
	if err != nil {
		return fmt.Errorf("load conversation history: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq != seq {
		return nil
	}
	live := m.messages
	m.messages = make([]Message, 0, len(history)+len(live))
	for _, msg := range history {
		if _, dup := m.seen[msg.ID]; dup {
			continue
		}
		m.seen[msg.ID] = struct{}{}
		m.messages = append(m.messages, msg)
	}
	m.messages = append(m.messages, live...)
	return nil
}

// MarkAsRead resets the unread count. Called when the chat view gains focus.
func (m *SessionManager) MarkAsRead() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unread = 0
}

// Unread returns the number of inbound messages since the last MarkAsRead.
func (m *SessionManager) Unread() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unread
}

// State returns the coarse connection state.
func (m *SessionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Identity returns the identity the session is bound to, "" when idle.
func (m *SessionManager) Identity() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// Messages returns a copy of the visible message list.
func (m *SessionManager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}
