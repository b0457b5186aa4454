package drafter

import (
	"context"
	"errors"
	"testing"
	"time"

	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	"github.com/smallbiznis/redress/internal/letter/domain"
	"github.com/smallbiznis/redress/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Generate(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) Stream(ctx context.Context, req llm.Request, emit func(string) error) error {
	return m.Called(ctx, req, emit).Error(0)
}

func sampleContext() domain.DraftContext {
	return domain.BuildContext(domain.GenerateRequest{
		Case: casedomain.Case{
			Reference:     "ryanair-42",
			CompanyName:   "Ryanair",
			ComplaintText: "My flight was cancelled and no refund was offered.",
		},
	}, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
}

func TestTemplateWithEmptyResearch(t *testing.T) {
	dc := sampleContext()
	draft, err := NewTemplate().Draft(context.Background(), dc)
	require.NoError(t, err)

	assert.Contains(t, draft.Body, "Ryanair")
	assert.Contains(t, draft.Body, dc.Outcome)
	assert.Contains(t, draft.Body, domain.SenderPlaceholder)
	assert.Contains(t, draft.Subject, "ryanair-42")
	assert.NotContains(t, draft.Body, "I rely on the following")
	assert.NoError(t, domain.Validate(draft.Body, dc.CompanyName, dc.SenderPresent))
}

func TestTemplateWithSenderHasNoPlaceholder(t *testing.T) {
	dc := sampleContext()
	dc.SenderPresent = true
	dc.SenderName = "Jo Bloggs"
	dc.SenderLines = []string{"1 High St", "AB1 2CD"}
	dc.LetterType = domain.TypeLetterBeforeAction
	dc.Citations = []domain.Citation{{Law: "Consumer Rights Act 2015", Section: "s.49", Tier: domain.TierPrimary}}

	draft, err := NewTemplate().Draft(context.Background(), dc)
	require.NoError(t, err)

	assert.NotContains(t, draft.Body, domain.SenderPlaceholder)
	assert.Contains(t, draft.Body, "letter before action")
	assert.Contains(t, draft.Body, "- Consumer Rights Act 2015, s.49")
	assert.NoError(t, domain.Validate(draft.Body, dc.CompanyName, true))
}

func TestLiveDecodesDraft(t *testing.T) {
	p := &mockProvider{}
	p.On("Generate", mock.Anything, mock.MatchedBy(func(r llm.Request) bool { return r.JSON })).
		Return("```json\n{\"subject\":\"Complaint\",\"body\":\"Dear Ryanair, ...\",\"tone\":\"\"}\n```", nil).Once()

	draft, err := NewLive(p).Draft(context.Background(), sampleContext())
	require.NoError(t, err)
	assert.Equal(t, "Complaint", draft.Subject)
	assert.Equal(t, "formal", draft.Tone)
	p.AssertExpectations(t)
}

func TestLiveClassifiesFailures(t *testing.T) {
	p := &mockProvider{}
	p.On("Generate", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded).Once()
	p.On("Generate", mock.Anything, mock.Anything).Return(`{"subject":"","body":""}`, nil).Once()

	live := NewLive(p)

	_, err := live.Draft(context.Background(), sampleContext())
	var perr *llm.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, llm.KindTimeout, perr.Kind)

	_, err = live.Draft(context.Background(), sampleContext())
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, llm.KindInvalidOutput, perr.Kind)
}

func TestPromptIncludesFeedbackAndTiers(t *testing.T) {
	dc := sampleContext()
	dc.Feedback = "Make it shorter."
	dc.Citations = []domain.Citation{{Law: "UK261", Tier: domain.TierPrimary}}

	prompt := Prompt(dc)
	assert.Contains(t, prompt, "Make it shorter.")
	assert.Contains(t, prompt, "[primary] UK261")
	assert.Contains(t, prompt, domain.SenderPlaceholder)
}

func TestTemplateNeverPrintsFeedback(t *testing.T) {
	for _, feedback := range []string{"Make the tone much angrier and shorter.", "Mention my holiday plans."} {
		dc := sampleContext()
		dc.Feedback = feedback

		draft, err := NewTemplate().Draft(context.Background(), dc)
		require.NoError(t, err)
		assert.NotContains(t, draft.Body, feedback)
		assert.NoError(t, domain.Validate(draft.Body, dc.CompanyName, dc.SenderPresent))
	}
}

func TestTemplateFirmFeedbackShortensDeadline(t *testing.T) {
	dc := sampleContext()
	plain, err := NewTemplate().Draft(context.Background(), dc)
	require.NoError(t, err)
	assert.Contains(t, plain.Body, "within 14 days")
	assert.Equal(t, "formal", plain.Tone)

	dc.Feedback = "Make the tone much angrier and shorter."
	firm, err := NewTemplate().Draft(context.Background(), dc)
	require.NoError(t, err)
	assert.Contains(t, firm.Body, "within 7 days")
	assert.Contains(t, firm.Body, "treated as a priority")
	assert.Equal(t, "firm", firm.Tone)
}

func TestTemplateNeutralizesBracketedUserText(t *testing.T) {
	dc := domain.BuildContext(domain.GenerateRequest{
		Case: casedomain.Case{
			Reference:     "ryanair-43",
			CompanyName:   "Ryanair",
			ComplaintText: "My booking [ref TBC] was cancelled and I was never refunded.",
		},
		Sender: &domain.SenderProfile{Name: "Jo Bloggs", AddressLines: []string{"1 High St"}},
	}, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	dc.Issues = []string{"flight {{cancelled}}"}
	require.True(t, dc.SenderPresent)

	draft, err := NewTemplate().Draft(context.Background(), dc)
	require.NoError(t, err)
	assert.Contains(t, draft.Body, "My booking (ref TBC) was cancelled")
	assert.NotContains(t, draft.Body, "[ref TBC]")
	assert.NoError(t, domain.Validate(draft.Body, dc.CompanyName, true))
	assert.Contains(t, dc.Complaint, "[ref TBC]")
}
