package core

import "strings"

// MaxChatMessages bounds the conversation forwarded to the agent
const MaxChatMessages = 12

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation with the agent
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TrimConversation keeps the last max non-empty user and assistant turns, with contents trimmed.
// Any other role, such as a client-supplied system prompt, is dropped.
func TrimConversation(msgs []ChatMessage, max int) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != ChatRoleUser && m.Role != ChatRoleAssistant {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		out = append(out, ChatMessage{Role: m.Role, Content: content})
	}

	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

// HasUserMessage reports whether any turn comes from the user
func HasUserMessage(msgs []ChatMessage) bool {
	for _, m := range msgs {
		if m.Role == ChatRoleUser {
			return true
		}
	}
	return false
}
