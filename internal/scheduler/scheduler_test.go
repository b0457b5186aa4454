package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	caserepo "github.com/smallbiznis/redress/internal/casefile/repository"
	caseservice "github.com/smallbiznis/redress/internal/casefile/service"
	"github.com/smallbiznis/redress/internal/clock"
	letterdomain "github.com/smallbiznis/redress/internal/letter/domain"
	"github.com/smallbiznis/redress/internal/migration"
	pipelinedomain "github.com/smallbiznis/redress/internal/pipeline/domain"
	pipelineservice "github.com/smallbiznis/redress/internal/pipeline/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockPipeline struct {
	mock.Mock
}

func (m *mockPipeline) CreateCase(ctx context.Context, accountID snowflake.ID, req casedomain.CreateCaseRequest) (*casedomain.Case, error) {
	panic("unused")
}

func (m *mockPipeline) Analyze(ctx context.Context, caseID snowflake.ID) (*casedomain.Case, error) {
	panic("unused")
}

func (m *mockPipeline) GenerateInitial(ctx context.Context, caseID snowflake.ID, feedback string) (*letterdomain.Letter, error) {
	panic("unused")
}

func (m *mockPipeline) Run(ctx context.Context, caseID snowflake.ID) error {
	return m.Called(ctx, caseID).Error(0)
}

func (m *mockPipeline) Reanalyze(ctx context.Context, accountID, caseID snowflake.ID) (*casedomain.Case, error) {
	panic("unused")
}

func (m *mockPipeline) Retry(ctx context.Context, accountID, caseID snowflake.ID) (*casedomain.Case, error) {
	panic("unused")
}

func (m *mockPipeline) GenerateFollowUp(ctx context.Context, accountID, caseID snowflake.ID, letterType string, feedback string) (*letterdomain.Letter, error) {
	panic("unused")
}

func (m *mockPipeline) UpdateCase(ctx context.Context, accountID, caseID snowflake.ID, req casedomain.UpdateCaseRequest) (*casedomain.Case, error) {
	panic("unused")
}

func (m *mockPipeline) SendLetter(ctx context.Context, accountID, caseID, letterID snowflake.ID, recipient string) (*pipelinedomain.SendResult, error) {
	panic("unused")
}

func TestRecoverySweep(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	cases := caseservice.NewService(caseservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: caserepo.Provide(), Clock: clk})

	newCase := func(status casedomain.Status) snowflake.ID {
		c, err := cases.Create(ctx, db, 0, node.Generate(), casedomain.CreateCaseRequest{
			AccountID:   node.Generate(),
			Complaint:   "The parcel never arrived and nobody answers the phone.",
			CompanyName: "Parcel Co",
		})
		require.NoError(t, err)
		_, err = cases.Transition(ctx, c.ID, casedomain.StatusAnalyzing, nil)
		require.NoError(t, err)
		if status == casedomain.StatusAnalyzed {
			_, err = cases.Transition(ctx, c.ID, casedomain.StatusAnalyzed, nil)
			require.NoError(t, err)
		}
		return c.ID
	}
	stuck := newCase(casedomain.StatusAnalyzing)
	busy := newCase(casedomain.StatusAnalyzing)
	unfinished := newCase(casedomain.StatusAnalyzed)

	clk.Advance(20 * time.Minute)
	fresh := newCase(casedomain.StatusAnalyzing)

	runner := pipelineservice.NewRunner(nil, zap.NewNop())
	hold := make(chan struct{})
	require.True(t, runner.Go(ctx, busy, func(context.Context) error {
		<-hold
		return nil
	}))
	defer close(hold)

	pipeline := &mockPipeline{}
	pipeline.On("Run", mock.Anything, unfinished).Return(nil).Once()

	sched, err := New(Params{Log: zap.NewNop(), CaseSvc: cases, PipelineSvc: pipeline, Runner: runner, Clock: clk})
	require.NoError(t, err)

	res, err := sched.RecoverySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RolledBack)
	assert.Equal(t, 1, res.Resumed)
	assert.Equal(t, 1, res.Skipped)

	for id, want := range map[snowflake.ID]casedomain.Status{
		stuck: casedomain.StatusDraft,
		busy:  casedomain.StatusAnalyzing,
		fresh: casedomain.StatusAnalyzing,
	} {
		c, err := cases.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, c.Status, id.String())
	}
	pipeline.AssertExpectations(t)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
