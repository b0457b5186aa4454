package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Stream answers the last user message about the case, emitting text as it arrives.
	Stream(ctx context.Context, accountID, caseID snowflake.ID, messages []Message, emit func(chunk string) error) error
}

var (
	ErrNoMessages      = errors.New("invalid_messages")
	ErrTooManyMessages = errors.New("too_many_messages")
	ErrInvalidRole     = errors.New("invalid_message_role")
	ErrInvalidContent  = errors.New("invalid_message_content")
	ErrLastNotUser     = errors.New("invalid_last_message")
)
