package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/redress/internal/account/domain"
	"github.com/smallbiznis/redress/internal/account/repository"
	"github.com/smallbiznis/redress/internal/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	return NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()})
}

func strptr(s string) *string { return &s }

func TestCreateNormalizesEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	account, err := svc.Create(ctx, domain.CreateAccountRequest{Email: "  Jo@Example.COM "})
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", account.Email)
	assert.Equal(t, domain.RoleUser, account.Role)

	_, err = svc.Create(ctx, domain.CreateAccountRequest{Email: "jo@example.com"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	got, err := svc.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.Email, got.Email)
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateAccountRequest{Email: "not an email"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	_, err = svc.Create(ctx, domain.CreateAccountRequest{Email: "a@b.test", Role: "owner"})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
	_, err = svc.Create(ctx, domain.CreateAccountRequest{Email: "a@b.test", Credits: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidCredits)
}

func TestGetByIDMissing(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.GetByID(context.Background(), snowflake.ID(1234))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.GetByID(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProfileRequiresSenderIdentity(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	account, err := svc.Create(ctx, domain.CreateAccountRequest{Email: "sam@redress.test"})
	require.NoError(t, err)

	profile, err := svc.Profile(ctx, account.ID)
	require.NoError(t, err)
	assert.Nil(t, profile)

	_, err = svc.UpdateProfile(ctx, account.ID, domain.UpdateProfileRequest{
		FullName:     strptr(" Sam Taylor "),
		AddressLine1: strptr("12 High Street"),
		City:         strptr("Leeds"),
		Postcode:     strptr("LS1 4AP"),
	})
	require.NoError(t, err)

	profile, err = svc.Profile(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Sam Taylor", profile.Name)
	assert.Equal(t, []string{"12 High Street", "Leeds", "LS1 4AP"}, profile.AddressLines)
	assert.Equal(t, "sam@redress.test", profile.Email)
}

func TestUpdateProfileLimitsFieldLength(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	account, err := svc.Create(ctx, domain.CreateAccountRequest{Email: "long@redress.test"})
	require.NoError(t, err)

	_, err = svc.UpdateProfile(ctx, account.ID, domain.UpdateProfileRequest{FullName: strptr(strings.Repeat("x", 201))})
	assert.ErrorIs(t, err, domain.ErrFieldTooLong)

	got, err := svc.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, got.FullName)
}
