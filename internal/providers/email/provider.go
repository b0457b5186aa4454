package email

import (
	"context"
	"errors"
)

var ErrRecipientRequired = errors.New("email_recipient_required")

// Message is one outbound letter email. Headers are added verbatim after the
// standard ones; callers must not pass From, To or Subject there.
type Message struct {
	To      []string
	ReplyTo string
	Subject string
	HTML    string
	Headers map[string]string
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

// NoOpProvider accepts every message. It is used when SMTP is not configured.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrRecipientRequired
	}
	return nil
}
