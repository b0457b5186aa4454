package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	approvaldomain "github.com/smallbiznis/redress/internal/approval/domain"
	"github.com/smallbiznis/redress/internal/auth"
	"github.com/smallbiznis/redress/internal/authorization"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	chatdomain "github.com/smallbiznis/redress/internal/chat/domain"
	"github.com/smallbiznis/redress/internal/config"
	creditdomain "github.com/smallbiznis/redress/internal/credit/domain"
	dispatchdomain "github.com/smallbiznis/redress/internal/dispatch/domain"
	paymentdomain "github.com/smallbiznis/redress/internal/payment/domain"
	pipelinedomain "github.com/smallbiznis/redress/internal/pipeline/domain"
	"github.com/smallbiznis/redress/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "server-test-secret"

type fakePipelineService struct {
	pipelinedomain.Service
	createErr  error
	sendResult *pipelinedomain.SendResult
	created    int
}

func (f *fakePipelineService) CreateCase(ctx context.Context, accountID snowflake.ID, req casedomain.CreateCaseRequest) (*casedomain.Case, error) {
	f.created++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &casedomain.Case{ID: 42, AccountID: accountID, CompanyName: req.CompanyName, Status: casedomain.StatusAnalyzing}, nil
}

func (f *fakePipelineService) SendLetter(ctx context.Context, accountID, caseID, letterID snowflake.ID, recipient string) (*pipelinedomain.SendResult, error) {
	return f.sendResult, nil
}

type fakeDispatchService struct {
	dispatchdomain.Service
	opens []string
}

func (f *fakeDispatchService) RecordOpen(ctx context.Context, trackingID string) error {
	f.opens = append(f.opens, trackingID)
	if trackingID != "known" {
		return dispatchdomain.ErrNotFound
	}
	return nil
}

type fakePaymentService struct {
	err error
}

func (f *fakePaymentService) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	return f.err
}

type fakeApprovalService struct {
	approvaldomain.Service
	verifyErr error
	decided   []approvaldomain.Decision
}

func (f *fakeApprovalService) VerifySignature(headers http.Header, body []byte, now time.Time) error {
	return f.verifyErr
}

func (f *fakeApprovalService) Decide(ctx context.Context, decision approvaldomain.Decision) (*approvaldomain.Approval, error) {
	f.decided = append(f.decided, decision)
	return &approvaldomain.Approval{ID: decision.ApprovalID, Status: approvaldomain.StatusApproved}, nil
}

type fakeChatService struct {
	chunks []string
	err    error
}

func (f *fakeChatService) Stream(ctx context.Context, accountID, caseID snowflake.ID, messages []chatdomain.Message, emit func(string) error) error {
	for _, chunk := range f.chunks {
		if err := emit(chunk); err != nil {
			return err
		}
	}
	return f.err
}

type fakeAuthorizer struct {
	allow bool
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, accountID snowflake.ID, object string, action string) error {
	if !f.allow {
		return authorization.ErrForbidden
	}
	return nil
}

func (f *fakeAuthorizer) AuthorizeCase(ctx context.Context, accountID, ownerID snowflake.ID, action string) error {
	if accountID != ownerID && !f.allow {
		return authorization.ErrForbidden
	}
	return nil
}

type fakeCreditService struct {
	creditdomain.Service
	grants []creditdomain.GrantRequest
}

func (f *fakeCreditService) Grant(ctx context.Context, req creditdomain.GrantRequest) (int64, error) {
	f.grants = append(f.grants, req)
	return 5, nil
}

type testDeps struct {
	pipeline *fakePipelineService
	dispatch *fakeDispatchService
	payment  *fakePaymentService
	approval *fakeApprovalService
	chat     *fakeChatService
	authz    *fakeAuthorizer
	credit   *fakeCreditService
}

func newTestServer(t *testing.T) (*gin.Engine, *testDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	deps := &testDeps{
		pipeline: &fakePipelineService{},
		dispatch: &fakeDispatchService{},
		payment:  &fakePaymentService{},
		approval: &fakeApprovalService{},
		chat:     &fakeChatService{},
		authz:    &fakeAuthorizer{},
		credit:   &fakeCreditService{},
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())

	srv := &Server{
		engine:      router,
		cfg:         config.Config{AuthJWTSecret: testSecret},
		log:         zap.NewNop(),
		verifier:    auth.NewVerifier(config.Config{AuthJWTSecret: testSecret}),
		authzSvc:    deps.authz,
		creditSvc:   deps.credit,
		pipelineSvc: deps.pipeline,
		dispatchSvc: deps.dispatch,
		approvalSvc: deps.approval,
		paymentSvc:  deps.payment,
		chatSvc:     deps.chat,
		now:         time.Now,
	}
	srv.registerPublicRoutes()
	srv.registerAPIRoutes()
	srv.registerAdminRoutes()

	return router, deps
}

func bearer(t *testing.T, accountID snowflake.ID) string {
	t.Helper()
	token, err := auth.Sign(testSecret, accountID, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func do(router *gin.Engine, method, path, authz string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestTrackOpenServesSamePixelForKnownAndUnknownIDs(t *testing.T) {
	router, deps := newTestServer(t)

	known := do(router, http.MethodGet, "/t/known/pixel.gif", "", "")
	unknown := do(router, http.MethodGet, "/t/missing/pixel.gif", "", "")

	for _, rec := range []*httptest.ResponseRecorder{known, unknown} {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
		assert.Equal(t, dispatchdomain.Pixel(), rec.Body.Bytes())
	}
	assert.Equal(t, []string{"known", "missing"}, deps.dispatch.opens)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	router, deps := newTestServer(t)

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(router, http.MethodPost, "/api/cases", tc.header, `{}`)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", decodeError(t, rec).Type)
		})
	}
	assert.Zero(t, deps.pipeline.created)
}

func TestCreateCaseReturnsCreated(t *testing.T) {
	router, _ := newTestServer(t)

	rec := do(router, http.MethodPost, "/api/cases", bearer(t, 7001),
		`{"complaint":"Flight cancelled","company_name":"Ryanair","currency":"GBP","amount":"120.50"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data casedomain.Case `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, snowflake.ID(7001), resp.Data.AccountID)
	assert.Equal(t, "Ryanair", resp.Data.CompanyName)
}

func TestCreateCaseWithoutCreditsIsPaymentRequired(t *testing.T) {
	router, deps := newTestServer(t)
	deps.pipeline.createErr = pipelinedomain.ErrNoCredits

	rec := do(router, http.MethodPost, "/api/cases", bearer(t, 7001), `{"complaint":"x","company_name":"y"}`)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "no_credits", decodeError(t, rec).Type)
}

func TestCreateCaseRateLimitedSetsRetryAfter(t *testing.T) {
	router, deps := newTestServer(t)
	deps.pipeline.createErr = &ratelimit.Denied{RetryAfter: 2500 * time.Millisecond}

	rec := do(router, http.MethodPost, "/api/cases", bearer(t, 7001), `{}`)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeError(t, rec).Type)
}

func TestPaymentWebhookDuplicateIsOK(t *testing.T) {
	router, deps := newTestServer(t)

	deps.payment.err = paymentdomain.ErrEventAlreadyProcessed
	rec := do(router, http.MethodPost, "/webhooks/payments/stripe", "", `{}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	deps.payment.err = paymentdomain.ErrInvalidSignature
	rec = do(router, http.MethodPost, "/webhooks/payments/stripe", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_signature", decodeError(t, rec).Type)

	deps.payment.err = paymentdomain.ErrProviderNotFound
	rec = do(router, http.MethodPost, "/webhooks/payments/paypal", "", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApprovalWebhookVerifiesBeforeDeciding(t *testing.T) {
	router, deps := newTestServer(t)

	deps.approval.verifyErr = approvaldomain.ErrStaleTimestamp
	rec := do(router, http.MethodPost, "/webhooks/approvals", "", `{"approval_id":"9","action":"approve","actor":"ops"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_signature", decodeError(t, rec).Type)
	assert.Empty(t, deps.approval.decided)

	deps.approval.verifyErr = nil
	rec = do(router, http.MethodPost, "/webhooks/approvals", "", `{"approval_id":"9","action":"approve","actor":"ops"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, deps.approval.decided, 1)
	assert.Equal(t, approvaldomain.Decision{ApprovalID: 9, Action: approvaldomain.ActionApprove, Actor: "ops"}, deps.approval.decided[0])
}

func TestSendLetterPendingApprovalIsAccepted(t *testing.T) {
	router, deps := newTestServer(t)
	deps.pipeline.sendResult = &pipelinedomain.SendResult{
		Status:   pipelinedomain.SendStatusPendingApproval,
		Approval: &approvaldomain.Approval{ID: 11, Status: approvaldomain.StatusPending},
	}

	rec := do(router, http.MethodPost, "/api/cases/42/letters/43/send", bearer(t, 7001), `{"recipient":"complaints@example.com"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"pending_approval"`)

	deps.pipeline.sendResult = &pipelinedomain.SendResult{Status: pipelinedomain.SendStatusSent}
	rec = do(router, http.MethodPost, "/api/cases/42/letters/43/send", bearer(t, 7001), `{"recipient":"complaints@example.com"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSendLetterRejectsBadLetterID(t *testing.T) {
	router, _ := newTestServer(t)

	rec := do(router, http.MethodPost, "/api/cases/42/letters/abc/send", bearer(t, 7001), `{"recipient":"a@b.com"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "letterID", payload.Errors[0].Field)
}

func TestStreamChatWritesDeltasThenDone(t *testing.T) {
	router, deps := newTestServer(t)
	deps.chat.chunks = []string{"Hello", " there"}

	rec := do(router, http.MethodPost, "/api/cases/42/chat", bearer(t, 7001), `{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t,
		"data: {\"delta\":\"Hello\"}\n\n"+
			"data: {\"delta\":\" there\"}\n\n"+
			"event: done\ndata: {}\n\n",
		rec.Body.String())
}

func TestStreamChatValidationFailsAsJSON(t *testing.T) {
	router, deps := newTestServer(t)
	deps.chat.err = chatdomain.ErrNoMessages

	rec := do(router, http.MethodPost, "/api/cases/42/chat", bearer(t, 7001), `{"messages":[]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "messages", payload.Errors[0].Field)
}

func TestStreamChatFailureMidStreamIsAnEvent(t *testing.T) {
	router, deps := newTestServer(t)
	deps.chat.chunks = []string{"Partial"}
	deps.chat.err = errors.New("boom")

	rec := do(router, http.MethodPost, "/api/cases/42/chat", bearer(t, 7001), `{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: {\"delta\":\"Partial\"}\n\n"))
	assert.Contains(t, body, "event: error\n")
	assert.NotContains(t, body, "event: done")
}

func TestAdjustCreditsRequiresPermission(t *testing.T) {
	router, deps := newTestServer(t)

	rec := do(router, http.MethodPost, "/api/admin/accounts/7002/credits", bearer(t, 7001), `{"amount":3,"idempotency_key":"k1"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, deps.credit.grants)

	deps.authz.allow = true
	rec = do(router, http.MethodPost, "/api/admin/accounts/7002/credits", bearer(t, 7001), `{"amount":3,"note":" goodwill ","idempotency_key":"k1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, deps.credit.grants, 1)
	grant := deps.credit.grants[0]
	assert.Equal(t, snowflake.ID(7002), grant.AccountID)
	assert.Equal(t, int64(3), grant.Amount)
	assert.Equal(t, creditdomain.KindAdminAdjustment, grant.Kind)
	assert.Equal(t, "admin:k1", grant.IdempotencyKey)
	assert.Equal(t, "goodwill", grant.Note)
}

func TestAdjustCreditsRequiresIdempotencyKey(t *testing.T) {
	router, deps := newTestServer(t)
	deps.authz.allow = true

	rec := do(router, http.MethodPost, "/api/admin/accounts/7002/credits", bearer(t, 7001), `{"amount":3}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, deps.credit.grants)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err      error
		status   int
		errType  string
		errField string
	}{
		{err: creditdomain.ErrInsufficientCredits, status: http.StatusPaymentRequired, errType: "no_credits"},
		{err: pipelinedomain.ErrResearchUnavailable, status: http.StatusServiceUnavailable, errType: "service_unavailable"},
		{err: creditdomain.ErrLedgerUnavailable, status: http.StatusServiceUnavailable, errType: "service_unavailable"},
		{err: casedomain.ErrInvalidTransition, status: http.StatusConflict, errType: "conflict"},
		{err: casedomain.ErrForbidden, status: http.StatusForbidden, errType: "forbidden"},
		{err: casedomain.ErrNotFound, status: http.StatusNotFound, errType: "not_found"},
		{err: auth.ErrInvalidToken, status: http.StatusUnauthorized, errType: "unauthorized"},
		{err: approvaldomain.ErrInvalidSignature, status: http.StatusUnauthorized, errType: "invalid_signature"},
		{err: casedomain.ErrInvalidCurrency, status: http.StatusBadRequest, errType: "validation_error", errField: "currency"},
		{err: errors.New("disk on fire"), status: http.StatusInternalServerError, errType: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.errType, payload.Type)
			if tc.errField != "" {
				require.Len(t, payload.Errors, 1)
				assert.Equal(t, tc.errField, payload.Errors[0].Field)
			}
		})
	}
}
