package email

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPProviderSend(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	p := NewSMTP(Config{Host: "mail.local", Port: 2525, From: "letters@redress.local"})
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.Nil(t, a)
		return nil
	}

	err := p.Send(context.Background(), Message{
		To:      []string{"complaints@acme.test"},
		ReplyTo: "jane@example.com",
		Subject: "Formal complaint",
		HTML:    "<p>Hello</p>",
		Headers: map[string]string{"X-Redress-Reference": "RD-1\r\nBcc: x@evil.test"},
	})
	require.NoError(t, err)
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, "letters@redress.local", gotFrom)
	assert.Equal(t, []string{"complaints@acme.test"}, gotTo)

	raw := string(gotMsg)
	assert.Contains(t, raw, "Subject: Formal complaint\r\n")
	assert.Contains(t, raw, "Reply-To: jane@example.com\r\n")
	assert.Contains(t, raw, "X-Redress-Reference: RD-1  Bcc: x@evil.test\r\n")
	assert.NotContains(t, raw, "\r\nBcc:")
	assert.Contains(t, raw, "\r\n\r\n<p>Hello</p>")
}

func TestSMTPProviderRequiresRecipient(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.local", Port: 25})
	assert.ErrorIs(t, p.Send(context.Background(), Message{Subject: "s"}), ErrRecipientRequired)
}

func TestNoOpProviderRequiresRecipient(t *testing.T) {
	p := &NoOpProvider{}
	assert.ErrorIs(t, p.Send(context.Background(), Message{}), ErrRecipientRequired)
	assert.NoError(t, p.Send(context.Background(), Message{To: []string{"a@acme.test"}}))
}
