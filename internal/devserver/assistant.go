package devserver

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/mindhaven/companion/internal/chat"
)

// Responder produces the assistant's reply to a conversation.
type Responder interface {
	Reply(ctx context.Context, history []chat.Message) string
}

// CannedResponder rotates through a fixed set of supportive replies.
// It is the default when no model is configured, and the fallback when
// a model call fails.
type CannedResponder struct {
	mu      sync.Mutex
	next    int
	replies []string
}

// NewCannedResponder creates a responder with the built-in reply set.
func NewCannedResponder() *CannedResponder {
	return &CannedResponder{
		replies: []string{
			"Thank you for sharing that with me. How long have you been feeling this way?",
			"That sounds really difficult. What do you think has been weighing on you the most?",
			"I hear you. It takes courage to put that into words. What would feeling a little better look like for you today?",
			"It makes sense that you'd feel that way. Have you been able to talk to anyone else about this?",
			"Let's take this one step at a time. What's one small thing that usually helps you feel grounded?",
		},
	}
}

// Reply returns the next canned reply in rotation.
func (c *CannedResponder) Reply(_ context.Context, _ []chat.Message) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	reply := c.replies[c.next%len(c.replies)]
	c.next++
	return reply
}

const systemPrompt = `You are a warm, supportive mental-health companion.
Listen carefully, validate feelings, and ask gentle follow-up questions.
Keep replies short (2-4 sentences). Never give medical diagnoses; suggest
professional help when the conversation warrants it.`

// historyWindow bounds how much conversation is sent to the model.
const historyWindow = 10

// OpenAIResponder answers with a chat completion, falling back to canned
// replies when the model call fails.
type OpenAIResponder struct {
	client   *openai.Client
	model    string
	fallback *CannedResponder
}

// NewOpenAIResponder creates a model-backed responder.
func NewOpenAIResponder(apiKey, model string) *OpenAIResponder {
	return &OpenAIResponder{
		client:   openai.NewClient(apiKey),
		model:    model,
		fallback: NewCannedResponder(),
	}
}

// Reply generates a reply from the recent conversation window.
func (o *OpenAIResponder) Reply(ctx context.Context, history []chat.Message) string {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}

	window := history
	if len(window) > historyWindow {
		window = window[len(window)-historyWindow:]
	}
	for _, msg := range window {
		role := openai.ChatMessageRoleUser
		if msg.Role == chat.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		slog.Warn("Chat completion failed, using canned reply", "error", err)
		return o.fallback.Reply(ctx, history)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("Chat completion returned no choices, using canned reply")
		return o.fallback.Reply(ctx, history)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}
