package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	MaxMessages       = 50
	MaxMessageContent = 8000

	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type StreamRequest struct {
	Messages []Message `json:"messages"`
}

// ValidateMessages checks the conversation shape and trims content in place.
func ValidateMessages(messages []Message) error {
	if len(messages) == 0 {
		return ErrNoMessages
	}
	if len(messages) > MaxMessages {
		return ErrTooManyMessages
	}
	for i := range messages {
		role := strings.ToLower(strings.TrimSpace(messages[i].Role))
		if role != RoleUser && role != RoleAssistant {
			return ErrInvalidRole
		}
		content := strings.TrimSpace(messages[i].Content)
		if content == "" || utf8.RuneCountInString(content) > MaxMessageContent {
			return ErrInvalidContent
		}
		messages[i].Role = role
		messages[i].Content = content
	}
	if messages[len(messages)-1].Role != RoleUser {
		return ErrLastNotUser
	}
	return nil
}
