package api

import (
	"context"
	"net/http"

	"github.com/mindhaven/companion/internal/chat"
)

type conversationHistoryResponse struct {
	Data []chat.Message `json:"data"`
}

// ConversationHistory fetches the persisted chat history. Satisfies
// chat.HistoryLoader.
func (c *Client) ConversationHistory(ctx context.Context) ([]chat.Message, error) {
	var resp conversationHistoryResponse
	if err := c.do(ctx, http.MethodGet, "/chat/conversation", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ClearConversation deletes the persisted chat history.
func (c *Client) ClearConversation(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/chat/clear-conversation", nil, nil)
}
