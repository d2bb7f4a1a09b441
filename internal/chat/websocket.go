package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// WebSocketTransport dials the realtime backend over a websocket carrying
// JSON event envelopes.
type WebSocketTransport struct{}

// NewWebSocketTransport creates a websocket-backed Transport.
func NewWebSocketTransport() *WebSocketTransport {
	return &WebSocketTransport{}
}

// Dial opens a connection for opts.Identity and starts its read loop.
func (t *WebSocketTransport) Dial(ctx context.Context, rawURL string, opts DialOptions) (Conn, error) {
	c := &wsConn{
		url:      rawURL,
		opts:     opts,
		handlers: make(map[string]Handler),
	}
	if err := c.dial(ctx); err != nil {
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

type wsConn struct {
	url  string
	opts DialOptions

	mu       sync.Mutex
	ws       *websocket.Conn
	handlers map[string]Handler
	closed   bool
}

func (c *wsConn) dial(ctx context.Context) error {
	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("parse transport url: %w", err)
	}
	q := u.Query()
	q.Set("userId", c.opts.Identity)
	u.RawQuery = q.Encode()

	timeout := c.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ws, _, err := websocket.Dial(dialCtx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = ws.Close(websocket.StatusNormalClosure, "session superseded")
		return fmt.Errorf("connection is closed")
	}
	c.ws = ws
	c.mu.Unlock()
	return nil
}

// On registers a handler for a named event, replacing any previous one.
func (c *wsConn) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = h
}

// Off removes the handler for a named event.
func (c *wsConn) Off(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, event)
}

// Emit sends a named event to the backend. Fire-and-forget: delivery is
// only observable through the connection state.
func (c *wsConn) Emit(event string, data any) error {
	env, err := NewEnvelope(event, data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event, err)
	}

	c.mu.Lock()
	ws := c.ws
	closed := c.closed
	c.mu.Unlock()
	if closed || ws == nil {
		return fmt.Errorf("emit %s: connection is down", event)
	}
	return ws.Write(context.Background(), websocket.MessageText, frame)
}

// Close removes the connection from service. Safe to call more than once.
func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		return ws.Close(websocket.StatusNormalClosure, "session ended")
	}
	return nil
}

func (c *wsConn) dispatch(event string, data json.RawMessage) {
	c.mu.Lock()
	h := c.handlers[event]
	c.mu.Unlock()
	if h != nil {
		h(data)
	}
}

func (c *wsConn) readLoop() {
	for {
		c.mu.Lock()
		ws := c.ws
		closed := c.closed
		c.mu.Unlock()
		if closed || ws == nil {
			return
		}

		_, frame, err := ws.Read(context.Background())
		if err != nil {
			if c.isClosed() {
				return
			}
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("Chat transport closed by peer", "user_id", c.opts.Identity)
			} else {
				slog.Warn("Chat transport read error", "error", err, "user_id", c.opts.Identity)
			}
			if !c.reconnect() {
				return
			}
			continue
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			slog.Debug("Chat transport dropped malformed frame", "error", err)
			continue
		}
		c.dispatch(env.Event, env.Data)
	}
}

func (c *wsConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// reconnect runs the bounded redial loop after a dropped connection.
// Returns false when the connection is permanently down.
func (c *wsConn) reconnect() bool {
	policy := c.opts.Reconnection
	if !policy.Enabled || policy.MaxAttempts <= 0 {
		c.dispatch(EventDisconnect, mustPayload(DisconnectPayload{Reason: ReasonRetriesExhausted}))
		_ = c.Close()
		return false
	}

	c.dispatch(EventDisconnect, mustPayload(DisconnectPayload{Reason: ReasonConnectionLost}))

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if c.isClosed() {
			return false
		}
		delay := reconnectDelay(attempt, policy)
		slog.Info("Chat transport reconnecting",
			"user_id", c.opts.Identity,
			"attempt", attempt,
			"delay", delay)
		time.Sleep(delay)

		if c.isClosed() {
			return false
		}
		if err := c.dial(context.Background()); err != nil {
			slog.Warn("Chat transport reconnect failed", "error", err, "attempt", attempt)
			c.dispatch(EventConnectError, nil)
			continue
		}

		slog.Info("Chat transport reconnected", "user_id", c.opts.Identity, "attempt", attempt)
		c.dispatch(EventConnect, nil)
		return true
	}

	slog.Warn("Chat transport gave up reconnecting",
		"user_id", c.opts.Identity,
		"attempts", policy.MaxAttempts)
	c.dispatch(EventDisconnect, mustPayload(DisconnectPayload{Reason: ReasonRetriesExhausted}))
	_ = c.Close()
	return false
}

// reconnectDelay doubles BaseDelay per attempt, capped at MaxDelay.
func reconnectDelay(attempt int, policy Reconnection) time.Duration {
	delay := policy.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if policy.MaxDelay > 0 && delay >= policy.MaxDelay {
			return policy.MaxDelay
		}
	}
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		return policy.MaxDelay
	}
	return delay
}

func mustPayload(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
