package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Named events exchanged with the realtime backend. A successful dial
// stands in for the first "connect"; the transport emits EventConnect
// only when an automatic reconnect succeeds.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
	EventMessage      = "messageResponse"
	EventTyping       = "typing"
	EventSendMessage  = "sendMessage"
	EventPing         = "ping"
	EventPong         = "pong"
)

// Disconnect reasons carried in DisconnectPayload.
const (
	ReasonConnectionLost   = "connection_lost"
	ReasonRetriesExhausted = "retries_exhausted"
)

// Envelope is the wire frame: a named event plus its JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope wraps a payload into a wire frame.
func NewEnvelope(event string, data any) (Envelope, error) {
	if data == nil {
		return Envelope{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: raw}, nil
}

// SendPayload is the payload of an outbound EventSendMessage.
type SendPayload struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

// MessagePayload is the payload of an inbound EventMessage.
type MessagePayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// TypingPayload is the payload of an inbound EventTyping.
type TypingPayload struct {
	Typing bool `json:"typing"`
}

// DisconnectPayload is the payload of a transport-generated EventDisconnect.
type DisconnectPayload struct {
	Reason string `json:"reason"`
}

// Handler receives the decoded payload of a named event.
type Handler func(data json.RawMessage)

// Conn is a live connection to the realtime backend. On, Off and Emit are
// safe for concurrent use; Close is idempotent.
type Conn interface {
	On(event string, h Handler)
	Off(event string)
	Emit(event string, data any) error
	Close() error
}

// Reconnection bounds the transport's automatic reconnect behavior. After
// MaxAttempts failed redials the transport gives up until a new dial is
// requested.
type Reconnection struct {
	Enabled     bool
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DialOptions configure a single connection attempt.
type DialOptions struct {
	Identity     string
	Timeout      time.Duration
	Reconnection Reconnection
}

// Transport dials connections to the realtime backend.
type Transport interface {
	Dial(ctx context.Context, url string, opts DialOptions) (Conn, error)
}
