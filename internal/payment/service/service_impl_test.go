package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	accountdomain "github.com/smallbiznis/redress/internal/account/domain"
	accountrepo "github.com/smallbiznis/redress/internal/account/repository"
	accountservice "github.com/smallbiznis/redress/internal/account/service"
	"github.com/smallbiznis/redress/internal/config"
	creditdomain "github.com/smallbiznis/redress/internal/credit/domain"
	creditrepo "github.com/smallbiznis/redress/internal/credit/repository"
	creditservice "github.com/smallbiznis/redress/internal/credit/service"
	"github.com/smallbiznis/redress/internal/migration"
	paymentdomain "github.com/smallbiznis/redress/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/redress/internal/payment/repository"
	paymentservice "github.com/smallbiznis/redress/internal/payment/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	credits   creditdomain.Service
	svc       *paymentservice.Service
	accountID snowflake.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migration.AutoMigrate(db))
	node, err := snowflake.NewNode(10)
	require.NoError(t, err)

	log := zap.NewNop()
	accounts := accountservice.NewService(accountservice.Params{DB: db, Log: log, GenID: node, Repo: accountrepo.Provide()})
	account, err := accounts.Create(context.Background(), accountdomain.CreateAccountRequest{Email: "buyer@redress.test"})
	require.NoError(t, err)

	credits := creditservice.NewService(creditservice.Params{DB: db, Log: log, GenID: node, Repo: creditrepo.Provide()})
	svc := paymentservice.NewService(paymentservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		CreditSvc: credits,
		Repo:      paymentrepo.Provide(),
		Pipeline:  config.NewStaticPipelineConfig(config.DefaultPipelineConfig()),
	})
	return &fixture{db: db, credits: credits, svc: svc, accountID: account.ID}
}

func (f *fixture) event(priceID, reference string) *paymentdomain.PaymentEvent {
	return &paymentdomain.PaymentEvent{
		Provider:         "Stripe",
		ProviderEventID:  "evt_" + reference,
		Type:             paymentdomain.EventTypeCheckoutCompleted,
		AccountID:        f.accountID,
		PriceID:          priceID,
		PaymentReference: reference,
	}
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	balance, err := f.credits.Balance(context.Background(), f.accountID)
	require.NoError(t, err)
	return balance
}

func TestProcessEventGrantsCatalogCredits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ProcessEvent(ctx, f.event("price_bundle_3", "cs_1"), []byte(`{"id":"evt_cs_1"}`)))
	assert.EqualValues(t, 3, f.balance(t))

	var stored paymentdomain.EventRecord
	require.NoError(t, f.db.First(&stored).Error)
	assert.Equal(t, "stripe", stored.Provider)
	assert.NotNil(t, stored.ProcessedAt)

	var txn creditdomain.Transaction
	require.NoError(t, f.db.Where("account_id = ?", f.accountID).First(&txn).Error)
	assert.Equal(t, creditdomain.KindBundlePurchase, txn.Kind)
	require.NotNil(t, txn.IdempotencyKey)
	assert.Equal(t, "stripe:cs_1", *txn.IdempotencyKey)
}

func TestProcessEventRedeliveryIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ProcessEvent(ctx, f.event("price_single", "cs_2"), []byte(`{}`)))
	err := f.svc.ProcessEvent(ctx, f.event("price_single", "cs_2"), []byte(`{}`))
	assert.ErrorIs(t, err, paymentdomain.ErrEventAlreadyProcessed)
	assert.EqualValues(t, 1, f.balance(t))
}

func TestProcessEventSameReferenceNewEventID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ProcessEvent(ctx, f.event("price_single", "cs_3"), []byte(`{}`)))
	retry := f.event("price_single", "cs_3")
	retry.ProviderEventID = "evt_retry"
	require.NoError(t, f.svc.ProcessEvent(ctx, retry, []byte(`{}`)))
	assert.EqualValues(t, 1, f.balance(t))
}

func TestConcurrentRedeliveryGrantsOnce(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.svc.ProcessEvent(context.Background(), f.event("price_bundle_10", "cs_4"), []byte(`{}`))
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 10, f.balance(t))
}

func TestProcessEventRejectsBadEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unknown := f.svc.ProcessEvent(ctx, f.event("price_gold", "cs_5"), []byte(`{}`))
	assert.ErrorIs(t, unknown, paymentdomain.ErrUnknownPrice)

	noAccount := f.event("price_single", "cs_6")
	noAccount.AccountID = 0
	assert.ErrorIs(t, f.svc.ProcessEvent(ctx, noAccount, []byte(`{}`)), paymentdomain.ErrInvalidAccount)

	wrongType := f.event("price_single", "cs_7")
	wrongType.Type = "refund"
	assert.ErrorIs(t, f.svc.ProcessEvent(ctx, wrongType, []byte(`{}`)), paymentdomain.ErrInvalidEvent)

	assert.ErrorIs(t, f.svc.ProcessEvent(ctx, f.event("price_single", "cs_8"), []byte(`nope`)), paymentdomain.ErrInvalidPayload)
	assert.ErrorIs(t, f.svc.ProcessEvent(ctx, nil, []byte(`{}`)), paymentdomain.ErrInvalidEvent)

	var count int64
	require.NoError(t, f.db.Model(&paymentdomain.EventRecord{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, f.balance(t))
}
