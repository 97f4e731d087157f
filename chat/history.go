package chat

import (
	"sync"

	"github.com/sashabaranov/go-openai"
)

// History is the bounded conversation log sent with every completion.
type History struct {
	mu       sync.Mutex
	messages []openai.ChatCompletionMessage
	limit    int
}

// NewHistory keeps at most limit messages; older ones are dropped first.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

func (h *History) Add(role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, openai.ChatCompletionMessage{Role: role, Content: content})
	if h.limit > 0 && len(h.messages) > h.limit {
		h.messages = append(h.messages[:0:0], h.messages[len(h.messages)-h.limit:]...)
	}
}

// SetLimit changes the bound, trimming immediately if needed.
func (h *History) SetLimit(limit int) {
	h.mu.Lock()
	h.limit = limit
	if limit > 0 && len(h.messages) > limit {
		h.messages = append(h.messages[:0:0], h.messages[len(h.messages)-limit:]...)
	}
	h.mu.Unlock()
}

// Reset forgets the conversation.
func (h *History) Reset() {
	h.mu.Lock()
	h.messages = nil
	h.mu.Unlock()
}

// Messages renders the log as "role: content" lines.
func (h *History) Messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, len(h.messages))
	for i, m := range h.messages {
		out[i] = m.Role + ": " + m.Content
	}
	return out
}

// prompt returns the system prompt followed by a copy of the log.
func (h *History) prompt(system string) []openai.ChatCompletionMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := make([]openai.ChatCompletionMessage, 0, len(h.messages)+1)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	return append(msgs, h.messages...)
}
