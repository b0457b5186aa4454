package service

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redress/internal/approval/domain"
	auditdomain "github.com/smallbiznis/redress/internal/audit/domain"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	"github.com/smallbiznis/redress/internal/clock"
	"github.com/smallbiznis/redress/internal/config"
	dispatchdomain "github.com/smallbiznis/redress/internal/dispatch/domain"
	letterdomain "github.com/smallbiznis/redress/internal/letter/domain"
	"github.com/smallbiznis/redress/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/redress/internal/observability/metrics"
	"github.com/smallbiznis/redress/internal/providers/slack"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxActor = 120

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	CaseSvc     casedomain.Service
	LetterSvc   letterdomain.Service
	DispatchSvc dispatchdomain.Service
	Slack       slack.Provider
	Cfg         config.Config
	AuditSvc    auditdomain.Service `optional:"true"`
	Metrics     *obsmetrics.Metrics `optional:"true"`
	Clock       clock.Clock         `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	caseSvc     casedomain.Service
	letterSvc   letterdomain.Service
	dispatchSvc dispatchdomain.Service
	slack       slack.Provider
	channel     string
	secret      string
	auditSvc    auditdomain.Service
	metrics     *obsmetrics.Metrics
	clock       clock.Clock
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("approval.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		caseSvc:     p.CaseSvc,
		letterSvc:   p.LetterSvc,
		dispatchSvc: p.DispatchSvc,
		slack:       p.Slack,
		channel:     p.Cfg.Slack.Channel,
		secret:      p.Cfg.Slack.SigningSecret,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,
		clock:       clk,
	}
}

func (s *Service) RequestApproval(ctx context.Context, caseID, letterID, accountID snowflake.ID, recipient string) (*domain.Approval, error) {
	recipient = strings.TrimSpace(recipient)
	if addr, err := mail.ParseAddress(recipient); err != nil || addr.Address != recipient {
		return nil, dispatchdomain.ErrInvalidRecipient
	}
	c, err := s.caseSvc.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status != casedomain.StatusReady && c.Status != casedomain.StatusSent {
		return nil, dispatchdomain.ErrNotSendable
	}
	letter, err := s.letterSvc.Get(ctx, caseID, letterID)
	if err != nil {
		return nil, err
	}

	approval := &domain.Approval{
		ID:          s.genID.Generate(),
		CaseID:      caseID,
		LetterID:    letterID,
		AccountID:   accountID,
		Recipient:   strings.ToLower(recipient),
		Status:      domain.StatusPending,
		RequestedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, approval); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Approval needed for a %s letter on case %s to %s.\nSubject: %s\nApproval id: %s",
		letter.LetterType, c.Reference, approval.Recipient, letter.Subject, approval.ID)
	if err := s.slack.PostMessage(ctx, s.channel, message); err != nil {
		// The item stays pending and can still be decided.
		logger.WithContext(ctx, s.log).Warn("approval request not posted",
			zap.String("approval_id", approval.ID.String()),
			zap.Error(err),
		)
	}
	s.audit(ctx, approval, "approval.requested", string(auditdomain.ActorTypeAccount), nil)
	return approval, nil
}

func (s *Service) VerifySignature(headers http.Header, body []byte, now time.Time) error {
	return domain.Verify(s.secret, headers, body, now)
}

// Decide settles a pending approval. Approve claims the item before dispatching
// and returns it to pending when the send fails.
func (s *Service) Decide(ctx context.Context, decision domain.Decision) (*domain.Approval, error) {
	actor := strings.TrimSpace(decision.Actor)
	if actor == "" || len(actor) > maxActor {
		return nil, domain.ErrInvalidActor
	}
	var target domain.Status
	switch decision.Action {
	case domain.ActionApprove:
		target = domain.StatusApproved
	case domain.ActionReject:
		target = domain.StatusRejected
	default:
		return nil, domain.ErrInvalidAction
	}

	approval, err := s.Get(ctx, decision.ApprovalID)
	if err != nil {
		return nil, err
	}
	if approval.Status != domain.StatusPending {
		return nil, domain.ErrAlreadyDecided
	}

	now := s.clock.Now().UTC()
	claimed, err := s.repo.SetStatus(ctx, s.db, approval.ID, domain.StatusPending, target, &now, &actor)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, domain.ErrAlreadyDecided
	}

	if target == domain.StatusApproved {
		_, err := s.dispatchSvc.Send(ctx, dispatchdomain.SendRequest{
			CaseID:    approval.CaseID,
			LetterID:  approval.LetterID,
			Recipient: approval.Recipient,
			Actor:     string(auditdomain.ActorTypeChatOps),
		})
		if err != nil {
			if _, revertErr := s.repo.SetStatus(context.WithoutCancel(ctx), s.db, approval.ID, domain.StatusApproved, domain.StatusPending, nil, nil); revertErr != nil {
				s.log.Error("approval revert failed", zap.String("approval_id", approval.ID.String()), zap.Error(revertErr))
			}
			return nil, err
		}
	}

	approval.Status = target
	approval.DecidedAt = &now
	approval.DecidedBy = &actor
	s.metrics.RecordApprovalDecision(ctx, string(target))
	s.audit(ctx, approval, "approval."+string(target), string(auditdomain.ActorTypeChatOps), &actor)
	logger.WithContext(ctx, s.log).Info("approval decided",
		zap.String("approval_id", approval.ID.String()),
		zap.String("status", string(target)),
	)
	return approval, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Approval, error) {
	approval, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if approval == nil {
		return nil, domain.ErrNotFound
	}
	return approval, nil
}

func (s *Service) audit(ctx context.Context, approval *domain.Approval, action, actorType string, actorID *string) {
	if s.auditSvc == nil {
		return
	}
	accountID := approval.AccountID
	targetID := approval.ID.String()
	metadata := map[string]any{
		"case_id":   approval.CaseID.String(),
		"letter_id": approval.LetterID.String(),
	}
	if err := s.auditSvc.AuditLog(ctx, &accountID, actorType, actorID, action, "approval", &targetID, metadata); err != nil {
		s.log.Warn("approval audit failed", zap.Error(err))
	}
}
