package service

import (
	"context"
	"errors"
	"testing"
	"time"

	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	"github.com/smallbiznis/redress/internal/config"
	"github.com/smallbiznis/redress/internal/research/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	id    string
	kind  domain.SourceKind
	delay time.Duration
	out   domain.Contribution
	err   error
}

func (f *fakeSource) ID() string               { return f.id }
func (f *fakeSource) Kind() domain.SourceKind { return f.kind }

func (f *fakeSource) Fetch(ctx context.Context, q domain.Query) (domain.Contribution, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.Contribution{}, ctx.Err()
		}
	}
	return f.out, f.err
}

// stubbornSource ignores cancellation entirely.
type stubbornSource struct{ fakeSource }

func (s *stubbornSource) Fetch(ctx context.Context, q domain.Query) (domain.Contribution, error) {
	time.Sleep(s.delay)
	return s.out, nil
}

type staticFactory []domain.Source

func (f staticFactory) Sources(domain.Query) []domain.Source { return f }

func newTestService(sources ...domain.Source) domain.Service {
	cfg := config.DefaultPipelineConfig()
	cfg.Research.CompanyTimeout = 50 * time.Millisecond
	cfg.Research.LegalTimeout = 50 * time.Millisecond
	cfg.Research.EvidenceTimeout = 50 * time.Millisecond
	return NewService(Params{
		Log:      zap.NewNop(),
		Sources:  staticFactory(sources),
		Pipeline: config.NewStaticPipelineConfig(cfg),
	})
}

func TestResearchMergesAdditively(t *testing.T) {
	svc := newTestService(
		&fakeSource{id: "company", kind: domain.SourceCompany, out: domain.Contribution{
			Contacts:   []domain.Contact{{Channel: "email", Value: "complaints@acme.test"}},
			Reputation: &domain.Reputation{Summary: "slow to respond"},
		}},
		&fakeSource{id: "legal", kind: domain.SourceLegal, out: domain.Contribution{
			Citations: []casedomain.LegalBasis{{Law: "Consumer Rights Act 2015", Section: "s.49"}},
		}},
		&fakeSource{id: "evidence:1", kind: domain.SourceEvidence, out: domain.Contribution{
			EvidenceAnalyses: []domain.EvidenceAnalysis{{EvidenceID: "1", Summary: "receipt"}},
		}},
	)

	merged := svc.Research(context.Background(), domain.Query{CompanyName: "Acme"})
	assert.Len(t, merged.Contacts, 1)
	assert.Len(t, merged.Citations, 1)
	assert.Len(t, merged.EvidenceAnalyses, 1)
	require.NotNil(t, merged.Reputation)
	assert.Empty(t, merged.Warnings)
	assert.False(t, merged.AllFailed())
	require.Len(t, merged.Results, 3)
	assert.Equal(t, "company", merged.Results[0].Source)
}

func TestResearchAbsorbsFailuresAndTimeouts(t *testing.T) {
	svc := newTestService(
		&fakeSource{id: "company", kind: domain.SourceCompany, err: errors.New("boom")},
		&fakeSource{id: "legal", kind: domain.SourceLegal, delay: time.Second},
		&fakeSource{id: "evidence:1", kind: domain.SourceEvidence, out: domain.Contribution{
			EvidenceAnalyses: []domain.EvidenceAnalysis{{EvidenceID: "1", Summary: "photo"}},
		}},
	)

	started := time.Now()
	merged := svc.Research(context.Background(), domain.Query{})
	assert.Less(t, time.Since(started), 500*time.Millisecond)

	assert.Empty(t, merged.Contacts)
	assert.Empty(t, merged.Citations)
	assert.Len(t, merged.EvidenceAnalyses, 1)
	require.Len(t, merged.Warnings, 2)
	assert.Equal(t, "company", merged.Warnings[0].Source)
	assert.Equal(t, "legal lookup timed out", merged.Warnings[1].Message)
	assert.False(t, merged.AllFailed())
}

func TestResearchJoinDoesNotWaitOnStubbornSource(t *testing.T) {
	svc := newTestService(&stubbornSource{fakeSource{id: "legal", kind: domain.SourceLegal, delay: time.Second}})

	started := time.Now()
	merged := svc.Research(context.Background(), domain.Query{})
	assert.Less(t, time.Since(started), 500*time.Millisecond)
	assert.True(t, merged.AllFailed())
}

func TestResearchWithoutSources(t *testing.T) {
	merged := newTestService().Research(context.Background(), domain.Query{})
	assert.False(t, merged.AllFailed())
	assert.NotNil(t, merged.Contacts)
	assert.Empty(t, merged.Results)
}
