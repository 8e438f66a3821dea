package ai

import (
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// Role - автор сообщения в переписке с моделью.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage - одна реплика в транскрипте.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func (r Role) messageType() schema.ChatMessageType {
	switch r {
	case RoleAssistant:
		return schema.ChatMessageTypeAI
	case RoleSystem:
		return schema.ChatMessageTypeSystem
	default:
		return schema.ChatMessageTypeHuman
	}
}

func toMessageContent(msgs []ChatMessage) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llms.TextParts(m.Role.messageType(), m.Content))
	}
	return out
}
