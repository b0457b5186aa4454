package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/redress/internal/approval/domain"
	"github.com/smallbiznis/redress/internal/approval/repository"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	caserepo "github.com/smallbiznis/redress/internal/casefile/repository"
	caseservice "github.com/smallbiznis/redress/internal/casefile/service"
	"github.com/smallbiznis/redress/internal/config"
	dispatchdomain "github.com/smallbiznis/redress/internal/dispatch/domain"
	letterdomain "github.com/smallbiznis/redress/internal/letter/domain"
	letterrepo "github.com/smallbiznis/redress/internal/letter/repository"
	letterservice "github.com/smallbiznis/redress/internal/letter/service"
	"github.com/smallbiznis/redress/internal/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockDispatch struct {
	mock.Mock
}

func (m *mockDispatch) Send(ctx context.Context, req dispatchdomain.SendRequest) (*dispatchdomain.LetterSend, error) {
	args := m.Called(ctx, req)
	send, _ := args.Get(0).(*dispatchdomain.LetterSend)
	return send, args.Error(1)
}

func (m *mockDispatch) RecordOpen(ctx context.Context, trackingID string) error {
	return m.Called(ctx, trackingID).Error(0)
}

func (m *mockDispatch) ListByCase(ctx context.Context, caseID snowflake.ID) ([]dispatchdomain.LetterSend, error) {
	args := m.Called(ctx, caseID)
	return nil, args.Error(1)
}

type recordingSlack struct {
	messages []string
}

func (r *recordingSlack) PostMessage(ctx context.Context, channelID string, message string) error {
	r.messages = append(r.messages, message)
	return nil
}

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	cases    casedomain.Service
	letters  letterdomain.Service
	dispatch *mockDispatch
	slack    *recordingSlack
	svc      domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migration.AutoMigrate(db))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	f := &fixture{
		db:       db,
		node:     node,
		cases:    caseservice.NewService(caseservice.Params{DB: db, Log: log, GenID: node, Repo: caserepo.Provide()}),
		letters:  letterservice.NewService(letterservice.Params{DB: db, Log: log, GenID: node, Repo: letterrepo.Provide()}),
		dispatch: &mockDispatch{},
		slack:    &recordingSlack{},
	}
	cfg := config.Config{Slack: config.SlackConfig{Channel: "#approvals", SigningSecret: "s3cret"}}
	f.svc = NewService(Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Repo:        repository.Provide(),
		CaseSvc:     f.cases,
		LetterSvc:   f.letters,
		DispatchSvc: f.dispatch,
		Slack:       f.slack,
		Cfg:         cfg,
	})
	return f
}

func (f *fixture) readyCase(t *testing.T) (*casedomain.Case, *letterdomain.Letter) {
	t.Helper()
	ctx := context.Background()
	c, err := f.cases.Create(ctx, f.db, f.node.Generate(), f.node.Generate(), casedomain.CreateCaseRequest{
		AccountID:   f.node.Generate(),
		Complaint:   "My deposit was never returned despite several reminders.",
		CompanyName: "Lettings Ltd",
		Currency:    "GBP",
	})
	require.NoError(t, err)
	_, err = f.cases.Transition(ctx, c.ID, casedomain.StatusAnalyzing, nil)
	require.NoError(t, err)
	_, err = f.cases.Transition(ctx, c.ID, casedomain.StatusAnalyzed, nil)
	require.NoError(t, err)
	letter, _, err := f.letters.GenerateLetter(ctx, letterdomain.GenerateRequest{Case: *c, LetterType: letterdomain.TypeLetterBeforeAction})
	require.NoError(t, err)
	c, err = f.cases.Transition(ctx, c.ID, casedomain.StatusReady, func(tx *gorm.DB, _ *casedomain.Case) error {
		return f.letters.Save(ctx, tx, letter)
	})
	require.NoError(t, err)
	return c, letter
}

func TestApproveDispatchesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, letter := f.readyCase(t)

	approval, err := f.svc.RequestApproval(ctx, c.ID, letter.ID, c.AccountID, "legal@lettings.test")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, approval.Status)
	require.Len(t, f.slack.messages, 1)
	assert.Contains(t, f.slack.messages[0], approval.ID.String())

	f.dispatch.On("Send", mock.Anything, mock.MatchedBy(func(r dispatchdomain.SendRequest) bool {
		return r.LetterID == letter.ID && r.Recipient == "legal@lettings.test"
	})).Return(&dispatchdomain.LetterSend{}, nil).Once()

	decided, err := f.svc.Decide(ctx, domain.Decision{ApprovalID: approval.ID, Action: domain.ActionApprove, Actor: "ops@redress"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, decided.Status)

	_, err = f.svc.Decide(ctx, domain.Decision{ApprovalID: approval.ID, Action: domain.ActionReject, Actor: "ops@redress"})
	assert.ErrorIs(t, err, domain.ErrAlreadyDecided)
	f.dispatch.AssertExpectations(t)
}

func TestApproveRevertsWhenDispatchFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, letter := f.readyCase(t)
	approval, err := f.svc.RequestApproval(ctx, c.ID, letter.ID, c.AccountID, "legal@lettings.test")
	require.NoError(t, err)

	f.dispatch.On("Send", mock.Anything, mock.Anything).Return(nil, dispatchdomain.ErrDeliveryFailed).Once()
	_, err = f.svc.Decide(ctx, domain.Decision{ApprovalID: approval.ID, Action: domain.ActionApprove, Actor: "ops"})
	require.ErrorIs(t, err, dispatchdomain.ErrDeliveryFailed)

	reloaded, err := f.svc.Get(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, reloaded.Status)
}

func TestRejectDoesNotDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, letter := f.readyCase(t)
	approval, err := f.svc.RequestApproval(ctx, c.ID, letter.ID, c.AccountID, "legal@lettings.test")
	require.NoError(t, err)

	decided, err := f.svc.Decide(ctx, domain.Decision{ApprovalID: approval.ID, Action: domain.ActionReject, Actor: "ops"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, decided.Status)
	f.dispatch.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDecideValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Decide(ctx, domain.Decision{ApprovalID: 1, Action: "maybe", Actor: "ops"})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
	_, err = f.svc.Decide(ctx, domain.Decision{ApprovalID: 1, Action: domain.ActionApprove})
	assert.ErrorIs(t, err, domain.ErrInvalidActor)
	_, err = f.svc.Decide(ctx, domain.Decision{ApprovalID: 1, Action: domain.ActionApprove, Actor: "ops"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerifySignatureUsesConfiguredSecret(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	body := []byte(`{"action":"approve"}`)
	h := http.Header{}
	h.Set(domain.HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
	h.Set(domain.HeaderSignature, domain.Sign("s3cret", now.Unix(), body))

	assert.NoError(t, f.svc.VerifySignature(h, body, now))
	assert.True(t, errors.Is(f.svc.VerifySignature(h, body, now.Add(10*time.Minute)), domain.ErrStaleTimestamp))
}
