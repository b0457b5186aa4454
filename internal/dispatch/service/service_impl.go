package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/redress/internal/audit/domain"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	"github.com/smallbiznis/redress/internal/clock"
	"github.com/smallbiznis/redress/internal/config"
	"github.com/smallbiznis/redress/internal/dispatch/domain"
	letterdomain "github.com/smallbiznis/redress/internal/letter/domain"
	"github.com/smallbiznis/redress/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/redress/internal/observability/metrics"
	"github.com/smallbiznis/redress/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed templates/letter.html
var templateFS embed.FS

var letterHTML = template.Must(template.ParseFS(templateFS, "templates/letter.html"))

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Repo            domain.Repository
	CaseSvc         casedomain.Service
	LetterSvc       letterdomain.Service
	Email           email.Provider
	Cfg             config.Config
	AuditSvc        auditdomain.Service         `optional:"true"`
	Metrics         *obsmetrics.Metrics         `optional:"true"`
	PipelineMetrics *obsmetrics.PipelineMetrics `optional:"true"`
	Clock           clock.Clock                 `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	repo            domain.Repository
	caseSvc         casedomain.Service
	letterSvc       letterdomain.Service
	email           email.Provider
	baseURL         string
	auditSvc        auditdomain.Service
	metrics         *obsmetrics.Metrics
	pipelineMetrics *obsmetrics.PipelineMetrics
	clock           clock.Clock
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("dispatch.service"),
		genID:           p.GenID,
		repo:            p.Repo,
		caseSvc:         p.CaseSvc,
		letterSvc:       p.LetterSvc,
		email:           p.Email,
		baseURL:         strings.TrimRight(p.Cfg.PublicBaseURL, "/"),
		auditSvc:        p.AuditSvc,
		metrics:         p.Metrics,
		pipelineMetrics: p.PipelineMetrics,
		clock:           clk,
	}
}

// Send delivers the letter, then records the send and moves the case to sent in one write.
// No lock is held while the mail provider is called.
func (s *Service) Send(ctx context.Context, req domain.SendRequest) (*domain.LetterSend, error) {
	recipient, err := normalizeRecipient(req.Recipient)
	if err != nil {
		return nil, err
	}

	c, err := s.caseSvc.Load(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if c.Status != casedomain.StatusReady && c.Status != casedomain.StatusSent {
		return nil, domain.ErrNotSendable
	}
	letter, err := s.letterSvc.Get(ctx, req.CaseID, req.LetterID)
	if err != nil {
		return nil, err
	}

	started := s.clock.Now()
	trackingID := ulid.Make().String()
	html, err := s.render(c, letter, trackingID)
	if err != nil {
		return nil, err
	}
	msg := email.Message{
		To:      []string{recipient},
		Subject: letter.Subject,
		HTML:    html,
		Headers: map[string]string{"X-Redress-Reference": c.Reference},
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.pipelineMetrics.RecordStageError(obsmetrics.StageDispatch, err)
		return nil, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}

	now := s.clock.Now().UTC()
	send := &domain.LetterSend{
		ID:         s.genID.Generate(),
		TrackingID: trackingID,
		CaseID:     c.ID,
		LetterID:   letter.ID,
		Recipient:  recipient,
		Status:     domain.SendStatusSent,
		SentAt:     now,
		CreatedAt:  now,
	}
	_, err = s.caseSvc.Transition(ctx, c.ID, casedomain.StatusSent, func(tx *gorm.DB, _ *casedomain.Case) error {
		return s.repo.Insert(ctx, tx, send)
	})
	if err != nil {
		// The mail is already out; the caller can retry and the recipient gets a duplicate.
		logger.WithContext(ctx, s.log).Error("letter sent but not recorded",
			zap.String("case_id", c.ID.String()),
			zap.String("tracking_id", trackingID),
			zap.Error(err),
		)
		return nil, err
	}

	s.pipelineMetrics.ObserveStage(obsmetrics.StageDispatch, s.clock.Now().Sub(started))
	s.metrics.RecordLetterSent(ctx, string(letter.LetterType))
	s.audit(ctx, c.AccountID, req.Actor, send)
	logger.WithContext(ctx, s.log).Info("letter dispatched",
		zap.String("case_id", c.ID.String()),
		zap.String("letter_id", letter.ID.String()),
		zap.String("tracking_id", trackingID),
	)
	return send, nil
}

func (s *Service) RecordOpen(ctx context.Context, trackingID string) error {
	if _, err := ulid.ParseStrict(trackingID); err != nil {
		return domain.ErrNotFound
	}
	found, err := s.repo.RecordOpen(ctx, s.db, trackingID, s.clock.Now().UTC())
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrNotFound
	}
	s.metrics.RecordLetterOpen(ctx)
	return nil
}

func (s *Service) ListByCase(ctx context.Context, caseID snowflake.ID) ([]domain.LetterSend, error) {
	return s.repo.ListByCase(ctx, s.db, caseID)
}

func (s *Service) render(c *casedomain.Case, letter *letterdomain.Letter, trackingID string) (string, error) {
	view := struct {
		Subject    string
		Reference  string
		Paragraphs []string
		PixelURL   string
	}{
		Subject:    letter.Subject,
		Reference:  c.Reference,
		Paragraphs: paragraphs(letter.Body),
		PixelURL:   s.baseURL + "/t/" + trackingID + "/pixel.gif",
	}
	var buf bytes.Buffer
	if err := letterHTML.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render letter email: %w", err)
	}
	return buf.String(), nil
}

func (s *Service) audit(ctx context.Context, accountID snowflake.ID, actor string, send *domain.LetterSend) {
	if s.auditSvc == nil {
		return
	}
	if actor == "" {
		actor = string(auditdomain.ActorTypeAccount)
	}
	targetID := send.CaseID.String()
	metadata := map[string]any{
		"letter_id":   send.LetterID.String(),
		"tracking_id": send.TrackingID,
	}
	if err := s.auditSvc.AuditLog(ctx, &accountID, actor, nil, "letter.sent", "case", &targetID, metadata); err != nil {
		s.log.Warn("dispatch audit failed", zap.Error(err))
	}
}

func normalizeRecipient(value string) (string, error) {
	value = strings.TrimSpace(value)
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return "", domain.ErrInvalidRecipient
	}
	return strings.ToLower(addr.Address), nil
}

func paragraphs(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(body, "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			out = append(out, block)
		}
	}
	return out
}
