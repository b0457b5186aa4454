package source

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	evidencedomain "github.com/smallbiznis/redress/internal/evidence/domain"
	"github.com/smallbiznis/redress/internal/llm"
	"github.com/smallbiznis/redress/internal/research/domain"
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

func TestFactoryWithoutProviderHasNoSources(t *testing.T) {
	f := NewFactory(FactoryParams{})
	assert.Empty(t, f.Sources(domain.Query{CompanyName: "Acme"}))
}

func TestFactoryCapsEvidenceLookups(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	items := make([]evidencedomain.Evidence, 15)
	for i := range items {
		items[i] = evidencedomain.Evidence{ID: node.Generate()}
	}

	f := NewFactory(FactoryParams{Provider: &mockProvider{}})
	sources := f.Sources(domain.Query{Evidence: items})
	// company + legal + default cap of 10
	assert.Len(t, sources, 12)
	assert.Equal(t, domain.SourceCompany, sources[0].Kind())
	assert.Equal(t, domain.SourceLegal, sources[1].Kind())
}

func TestLegalSourceValidatesOutput(t *testing.T) {
	p := &mockProvider{}
	p.On("Generate", mock.Anything, mock.MatchedBy(func(r llm.Request) bool { return r.JSON })).
		Return(`{"citations":[{"law":"Consumer Rights Act 2015","section":"s.20","strength":"HIGH"},{"law":""}]}`, nil).Once()

	c, err := (&Legal{provider: p}).Fetch(context.Background(), domain.Query{Complaint: "x"})
	require.NoError(t, err)
	require.Len(t, c.Citations, 1)
	assert.Equal(t, "strong", c.Citations[0].Strength)
	p.AssertExpectations(t)
}

func TestLegalSourceRejectsEmptyCitations(t *testing.T) {
	p := &mockProvider{}
	p.On("Generate", mock.Anything, mock.Anything).Return(`{"citations":[]}`, nil).Once()

	_, err := (&Legal{provider: p}).Fetch(context.Background(), domain.Query{})
	var pe *llm.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, llm.KindInvalidOutput, pe.Kind)
}

func TestCompanySourceWrapsProviderFailure(t *testing.T) {
	p := &mockProvider{}
	p.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("connection reset")).Once()

	_, err := (&Company{provider: p}).Fetch(context.Background(), domain.Query{CompanyName: "Acme"})
	var pe *llm.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, llm.KindUnavailable, pe.Kind)
}
