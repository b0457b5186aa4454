package pdf

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLetter(t *testing.T) {
	p := New()
	r, err := p.GenerateLetter(context.Background(), LetterDocument{
		Reference:     "ryanair-1ab2",
		Date:          "14 October 2026",
		SenderName:    "Jane Doe",
		SenderAddress: []string{"1 High Street", "AB1 2CD"},
		Recipient:     "Ryanair",
		Subject:       "Formal complaint",
		Body:          "Dear Sir or Madam,\n\nI am writing to complain.\n\nYours faithfully,\nJane Doe",
	})
	require.NoError(t, err)

	raw, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "%PDF"))
}

func TestGenerateLetterRejectsEmptyBody(t *testing.T) {
	_, err := New().GenerateLetter(context.Background(), LetterDocument{Body: "  "})
	assert.Error(t, err)
}

func TestParagraphs(t *testing.T) {
	assert.Equal(t, []string{"a", "b\nc"}, paragraphs("a\r\n\r\n\n\nb\nc\n"))
	assert.Greater(t, paragraphHeight(strings.Repeat("x", 300)), paragraphHeight("x"))
}
