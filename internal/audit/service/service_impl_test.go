package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/redress/internal/audit/domain"
	"github.com/smallbiznis/redress/internal/audit/repository"
	"github.com/smallbiznis/redress/internal/clock"
	"github.com/smallbiznis/redress/internal/migration"
	obscontext "github.com/smallbiznis/redress/internal/observability/context"
	"github.com/smallbiznis/redress/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide(), Clock: clk}), clk
}

func strPtr(v string) *string { return &v }

func TestAuditLogMasksMetadataAndStampsRequest(t *testing.T) {
	svc, _ := newTestService(t)
	accountID := snowflake.ID(10)
	ctx := obscontext.WithRequestID(context.Background(), "req-1")

	err := svc.AuditLog(ctx, &accountID, "", nil, "case.transition", "case", strPtr("42"), map[string]any{
		"from":  "draft",
		"email": "jane@example.com",
	})
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), domain.ListAuditLogRequest{AccountID: &accountID})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, string(domain.ActorTypeSystem), entry.ActorType)
	assert.Equal(t, "draft", entry.Metadata["from"])
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	assert.NotEqual(t, "jane@example.com", entry.Metadata["email"])
}

func TestAuditLogUsesContextActor(t *testing.T) {
	svc, _ := newTestService(t)
	accountID := snowflake.ID(11)
	ctx := obscontext.WithActor(context.Background(), "account", "11")

	require.NoError(t, svc.AuditLog(ctx, &accountID, " ", nil, "credit.grant", "account", strPtr("11"), nil))

	resp, err := svc.List(context.Background(), domain.ListAuditLogRequest{AccountID: &accountID})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "account", resp.AuditLogs[0].ActorType)
	require.NotNil(t, resp.AuditLogs[0].ActorID)
	assert.Equal(t, "11", *resp.AuditLogs[0].ActorID)
}

func TestAuditLogRequiresAction(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.AuditLog(context.Background(), nil, "", nil, "  ", "case", nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}

func TestListPagesNewestFirstAndFiltersByPrefix(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	accountID := snowflake.ID(12)

	for _, action := range []string{"case.transition", "credit.grant", "case.transition", "letter.sent"} {
		require.NoError(t, svc.AuditLog(ctx, &accountID, "", nil, action, "case", strPtr("7"), nil))
		clk.Advance(time.Minute)
	}

	first, err := svc.List(ctx, domain.ListAuditLogRequest{
		AccountID:  &accountID,
		Pagination: pagination.Pagination{PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "letter.sent", first.AuditLogs[0].Action)

	second, err := svc.List(ctx, domain.ListAuditLogRequest{
		AccountID:  &accountID,
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 2)
	assert.False(t, second.HasMore)
	assert.Equal(t, "case.transition", second.AuditLogs[1].Action)

	cases, err := svc.List(ctx, domain.ListAuditLogRequest{AccountID: &accountID, Action: "case."})
	require.NoError(t, err)
	assert.Len(t, cases.AuditLogs, 2)
}

func TestListRejectsBadPageToken(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.List(context.Background(), domain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageToken: "%%%"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}
