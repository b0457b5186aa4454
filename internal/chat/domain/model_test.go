package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMessages(t *testing.T) {
	many := make([]Message, MaxMessages+1)
	for i := range many {
		many[i] = Message{Role: RoleUser, Content: "hi"}
	}

	tests := []struct {
		name     string
		messages []Message
		want     error
	}{
		{name: "empty", messages: nil, want: ErrNoMessages},
		{name: "too many", messages: many, want: ErrTooManyMessages},
		{name: "bad role", messages: []Message{{Role: "system", Content: "x"}}, want: ErrInvalidRole},
		{name: "blank content", messages: []Message{{Role: RoleUser, Content: "   "}}, want: ErrInvalidContent},
		{name: "oversized content", messages: []Message{{Role: RoleUser, Content: strings.Repeat("a", MaxMessageContent+1)}}, want: ErrInvalidContent},
		{name: "assistant last", messages: []Message{{Role: RoleUser, Content: "q"}, {Role: RoleAssistant, Content: "a"}}, want: ErrLastNotUser},
		{name: "at content limit", messages: []Message{{Role: RoleUser, Content: strings.Repeat("é", MaxMessageContent)}}},
		{name: "conversation", messages: []Message{
			{Role: RoleUser, Content: "They offered 20%"},
			{Role: RoleAssistant, Content: "Counter with the full amount."},
			{Role: " User ", Content: " how do I word it? "},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessages(tt.messages)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateMessagesNormalizes(t *testing.T) {
	messages := []Message{{Role: " USER ", Content: "  hello  "}}
	require.NoError(t, ValidateMessages(messages))
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
}
