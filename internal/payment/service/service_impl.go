package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/redress/internal/audit/domain"
	"github.com/smallbiznis/redress/internal/clock"
	"github.com/smallbiznis/redress/internal/config"
	creditdomain "github.com/smallbiznis/redress/internal/credit/domain"
	obsmetrics "github.com/smallbiznis/redress/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/redress/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	CreditSvc  creditdomain.Service
	Repo       paymentdomain.Repository
	Pipeline   *config.PipelineConfigHolder
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
	Clock      clock.Clock         `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	creditSvc  creditdomain.Service
	repo       paymentdomain.Repository
	pipeline   *config.PipelineConfigHolder
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
	clock      clock.Clock
}

func NewService(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		creditSvc:  p.CreditSvc,
		repo:       p.Repo,
		pipeline:   p.Pipeline,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
		clock:      clk,
	}
}

// ProcessEvent records a verified purchase once and grants its credits.
// A redelivered event that already granted returns ErrEventAlreadyProcessed.
func (s *Service) ProcessEvent(ctx context.Context, event *paymentdomain.PaymentEvent, payload []byte) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}
	if err := validateEvent(event); err != nil {
		return err
	}

	entry, ok := s.pipeline.Get().Lookup(event.PriceID)
	if !ok {
		s.record(ctx, event.Provider, "unknown_price")
		return paymentdomain.ErrUnknownPrice
	}

	now := s.clock.Now().UTC()
	received := paymentdomain.EventRecord{
		ID:               s.genID.Generate(),
		Provider:         event.Provider,
		ProviderEventID:  event.ProviderEventID,
		EventType:        event.Type,
		AccountID:        event.AccountID,
		PriceID:          event.PriceID,
		PaymentReference: event.PaymentReference,
		Payload:          datatypes.JSON(payload),
		ReceivedAt:       now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			s.record(ctx, event.Provider, "duplicate")
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	// Grant is keyed on provider:reference, so a crash between grant and
	// MarkProcessed replays into the stored balance instead of a second grant.
	balance, err := s.creditSvc.Grant(ctx, creditdomain.GrantRequest{
		AccountID:         event.AccountID,
		Amount:            entry.Credits,
		Kind:              creditdomain.Kind(entry.Kind),
		IdempotencyKey:    event.IdempotencyKey(),
		Provider:          event.Provider,
		ExternalReference: event.PaymentReference,
		Note:              "purchase " + entry.PriceID,
	})
	if err != nil {
		s.record(ctx, event.Provider, "grant_failed")
		return err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, now); err != nil {
		return err
	}

	s.record(ctx, event.Provider, "granted")
	s.writeAuditLog(ctx, stored, map[string]any{
		"credits":       entry.Credits,
		"balance_after": balance,
	})
	s.log.Info("purchase credited",
		zap.String("provider", event.Provider),
		zap.String("account_id", event.AccountID.String()),
		zap.String("price_id", entry.PriceID),
		zap.Int64("credits", entry.Credits),
	)
	return nil
}

func validateEvent(event *paymentdomain.PaymentEvent) error {
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if strings.TrimSpace(event.Type) != paymentdomain.EventTypeCheckoutCompleted {
		return paymentdomain.ErrInvalidEvent
	}
	if event.AccountID == 0 {
		return paymentdomain.ErrInvalidAccount
	}
	event.PaymentReference = strings.TrimSpace(event.PaymentReference)
	if event.PaymentReference == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.PriceID = strings.TrimSpace(event.PriceID)
	if event.PriceID == "" {
		return paymentdomain.ErrUnknownPrice
	}
	return nil
}

func (s *Service) record(ctx context.Context, provider, outcome string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordPaymentEvent(ctx, provider, outcome)
	}
}

func (s *Service) writeAuditLog(ctx context.Context, stored *paymentdomain.EventRecord, extra map[string]any) {
	if s.auditSvc == nil {
		return
	}
	metadata := map[string]any{
		"provider":          stored.Provider,
		"provider_event_id": stored.ProviderEventID,
		"price_id":          stored.PriceID,
		"payment_reference": stored.PaymentReference,
		"payment_event_id":  stored.ID.String(),
	}
	for key, value := range extra {
		metadata[key] = value
	}

	targetID := stored.ID.String()
	accountID := stored.AccountID
	if err := s.auditSvc.AuditLog(ctx, &accountID, string(auditdomain.ActorTypeWebhook), &stored.Provider, "payment.credited", "payment_event", &targetID, metadata); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Warn("failed to write payment audit log", zap.Error(err))
	}
}
