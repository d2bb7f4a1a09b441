package chat

import (
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message in the companion conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUserMessage creates a locally-authored message for optimistic echo.
func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewAssistantMessage creates an inbound assistant message. An empty id is
// replaced with a generated one so de-duplication still has a key.
func NewAssistantMessage(id, content string) Message {
	if id == "" {
		id = uuid.NewString()
	}
	return Message{
		ID:        id,
		Role:      RoleAssistant,
		Content:   content,
		CreatedAt: time.Now(),
	}
}
