package devserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/mindhaven/companion/internal/chat"
)

// handleWebSocket upgrades the connection and runs the chat read loop for
// one client. Each frame is a chat.Envelope; a sendMessage event produces a
// typing signal, an assistant reply, and a typing-stopped signal.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	if userID == "" {
		Error(w, http.StatusUnauthorized, "missing user id")
		return
	}
	slog.Info("Chat connection request", "user_id", userID, "ip", r.RemoteAddr)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept chat connection", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close chat connection", "error", closeErr, "user_id", userID)
		}
	}()

	ctx := r.Context()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			slog.Info("Chat connection closed", "user_id", userID, "error", err)
			return
		}

		var env chat.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("Dropping malformed chat frame", "error", err, "user_id", userID)
			continue
		}

		switch env.Event {
		case chat.EventPing:
			if err := writeEnvelope(ctx, ws, chat.EventPong, nil); err != nil {
				return
			}
		case chat.EventSendMessage:
			var payload chat.SendPayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				slog.Warn("Dropping malformed send payload", "error", err, "user_id", userID)
				continue
			}
			if err := s.answer(ctx, ws, userID, payload.Text); err != nil {
				slog.Info("Chat connection closed mid-reply", "user_id", userID, "error", err)
				return
			}
		default:
			slog.Debug("Ignoring unknown chat event", "event", env.Event, "user_id", userID)
		}
	}
}

// answer stores the user message, generates a reply, and streams the
// typing / messageResponse / typing sequence back to the client.
func (s *Server) answer(ctx context.Context, ws *websocket.Conn, userID, text string) error {
	userMsg := chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleUser,
		Content:   text,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	st := s.state(userID)
	st.conversation = append(st.conversation, userMsg)
	history := make([]chat.Message, len(st.conversation))
	copy(history, st.conversation)
	s.mu.Unlock()

	if err := writeEnvelope(ctx, ws, chat.EventTyping, chat.TypingPayload{Typing: true}); err != nil {
		return err
	}

	reply := s.responder.Reply(ctx, history)
	replyMsg := chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleAssistant,
		Content:   reply,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	st = s.state(userID)
	st.conversation = append(st.conversation, replyMsg)
	s.mu.Unlock()

	if err := writeEnvelope(ctx, ws, chat.EventMessage, chat.MessagePayload{ID: replyMsg.ID, Text: replyMsg.Content}); err != nil {
		return err
	}
	return writeEnvelope(ctx, ws, chat.EventTyping, chat.TypingPayload{Typing: false})
}

func writeEnvelope(ctx context.Context, ws *websocket.Conn, event string, payload any) error {
	env, err := chat.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
