package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/redress/internal/account/domain"
	approvaldomain "github.com/smallbiznis/redress/internal/approval/domain"
	auditdomain "github.com/smallbiznis/redress/internal/audit/domain"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	"github.com/smallbiznis/redress/internal/config"
	creditdomain "github.com/smallbiznis/redress/internal/credit/domain"
	dispatchdomain "github.com/smallbiznis/redress/internal/dispatch/domain"
	evidencedomain "github.com/smallbiznis/redress/internal/evidence/domain"
	letterdomain "github.com/smallbiznis/redress/internal/letter/domain"
	"github.com/smallbiznis/redress/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/redress/internal/observability/metrics"
	"github.com/smallbiznis/redress/internal/pipeline/domain"
	"github.com/smallbiznis/redress/internal/ratelimit"
	researchdomain "github.com/smallbiznis/redress/internal/research/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	rollbackTimeout = 10 * time.Second
	runLease        = 10 * time.Minute
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	CaseSvc         casedomain.Service
	CreditSvc       creditdomain.Service
	EvidenceSvc     evidencedomain.Service
	ResearchSvc     researchdomain.Service
	LetterSvc       letterdomain.Service
	AccountSvc      accountdomain.Service
	DispatchSvc     dispatchdomain.Service
	ApprovalSvc     approvaldomain.Service       `optional:"true"`
	Runner          *Runner                      `optional:"true"`
	Limiter         *ratelimit.CaseLimiter       `optional:"true"`
	Pipeline        *config.PipelineConfigHolder `optional:"true"`
	AuditSvc        auditdomain.Service          `optional:"true"`
	Metrics         *obsmetrics.Metrics          `optional:"true"`
	PipelineMetrics *obsmetrics.PipelineMetrics  `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	caseSvc         casedomain.Service
	creditSvc       creditdomain.Service
	evidenceSvc     evidencedomain.Service
	researchSvc     researchdomain.Service
	letterSvc       letterdomain.Service
	accountSvc      accountdomain.Service
	dispatchSvc     dispatchdomain.Service
	approvalSvc     approvaldomain.Service
	runner          *Runner
	limiter         *ratelimit.CaseLimiter
	pipeline        *config.PipelineConfigHolder
	auditSvc        auditdomain.Service
	metrics         *obsmetrics.Metrics
	pipelineMetrics *obsmetrics.PipelineMetrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("pipeline.service"),
		genID:           p.GenID,
		caseSvc:         p.CaseSvc,
		creditSvc:       p.CreditSvc,
		evidenceSvc:     p.EvidenceSvc,
		researchSvc:     p.ResearchSvc,
		letterSvc:       p.LetterSvc,
		accountSvc:      p.AccountSvc,
		dispatchSvc:     p.DispatchSvc,
		approvalSvc:     p.ApprovalSvc,
		runner:          p.Runner,
		limiter:         p.Limiter,
		pipeline:        p.Pipeline,
		auditSvc:        p.AuditSvc,
		metrics:         p.Metrics,
		pipelineMetrics: p.PipelineMetrics,
	}
}

func (s *Service) CreateCase(ctx context.Context, accountID snowflake.ID, req casedomain.CreateCaseRequest) (*casedomain.Case, error) {
	if accountID == 0 {
		return nil, casedomain.ErrForbidden
	}
	req.AccountID = accountID
	if err := casedomain.ValidateCreate(&req); err != nil {
		return nil, err
	}
	if err := s.limiter.AllowCreate(ctx, accountID); err != nil {
		s.metrics.RecordRateLimitDenied(ctx, "case.create", obsmetrics.ClassifyReason(err))
		return nil, err
	}

	caseID := s.genID.Generate()
	var created *casedomain.Case
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reservation, err := s.creditSvc.ReserveForCase(ctx, tx, accountID, caseID)
		if err != nil {
			return err
		}
		created, err = s.caseSvc.Create(ctx, tx, caseID, reservation.ID, req)
		return err
	})
	if errors.Is(err, creditdomain.ErrInsufficientCredits) {
		return nil, domain.ErrNoCredits
	}
	if err != nil {
		return nil, err
	}
	s.metrics.RecordCaseCreated(ctx)
	s.audit(ctx, created, "case.created", map[string]any{"reference": created.Reference})

	analyzing, err := s.caseSvc.Transition(ctx, caseID, casedomain.StatusAnalyzing, nil)
	if err != nil {
		return nil, err
	}
	if s.async() {
		s.schedule(ctx, caseID)
		return analyzing, nil
	}
	if err := s.Run(ctx, caseID); err != nil {
		logger.WithContext(ctx, s.log).Warn("case run failed", zap.String("case_id", caseID.String()), zap.Error(err))
	}
	return s.caseSvc.Load(ctx, caseID)
}

func (s *Service) Analyze(ctx context.Context, caseID snowflake.ID) (*casedomain.Case, error) {
	started := time.Now()
	c, err := s.caseSvc.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status != casedomain.StatusAnalyzing {
		return nil, casedomain.ErrInvalidTransition
	}

	evidence, err := s.evidenceSvc.List(ctx, caseID)
	if err != nil {
		s.rollback(ctx, caseID, "evidence unavailable")
		return nil, err
	}
	if max := s.pipeline.Get().Research.MaxEvidence; max > 0 && len(evidence) > max {
		evidence = evidence[:max]
	}

	intel := s.researchSvc.Research(ctx, researchdomain.Query{
		Complaint:   c.ComplaintText,
		CompanyName: c.CompanyName,
		Domain:      c.CompanyDomain,
		Evidence:    evidence,
	})
	if err := ctx.Err(); err != nil {
		s.pipelineMetrics.RecordStageError(obsmetrics.StageResearch, err)
		s.rollback(ctx, caseID, "analysis cancelled")
		return nil, err
	}
	if intel.AllFailed() {
		s.pipelineMetrics.RecordStageError(obsmetrics.StageResearch, domain.ErrResearchUnavailable)
		s.rollback(ctx, caseID, "research unavailable")
		return nil, domain.ErrResearchUnavailable
	}

	issues := researchdomain.DetectIssues(c.ComplaintText)
	score := researchdomain.ConfidenceScore(researchdomain.ScoreInput{
		ComplaintLength: utf8.RuneCountInString(c.ComplaintText),
		Amount:          c.Amount(),
		CompanyName:     c.CompanyName,
		DesiredOutcome:  c.Outcome(),
		IssueCount:      len(issues),
	})
	intelJSON, err := json.Marshal(intel)
	if err != nil {
		s.rollback(ctx, caseID, "intel encoding failed")
		return nil, err
	}
	citations := intel.Citations
	if citations == nil {
		citations = []casedomain.LegalBasis{}
	}

	analyzed, err := s.caseSvc.Transition(ctx, caseID, casedomain.StatusAnalyzed, func(_ *gorm.DB, c *casedomain.Case) error {
		c.ConfidenceScore = &score
		c.IdentifiedIssues = issues
		c.LegalBasis = citations
		c.CompanyIntel = datatypes.JSON(intelJSON)
		return nil
	})
	if err != nil {
		if !errors.Is(err, casedomain.ErrInvalidTransition) {
			s.rollback(ctx, caseID, "analysis not stored")
		}
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("case analyzed",
		zap.String("case_id", caseID.String()),
		zap.Int("confidence_score", score),
		zap.Int("issues", len(issues)),
		zap.Int("warnings", len(intel.Warnings)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return analyzed, nil
}

func (s *Service) GenerateInitial(ctx context.Context, caseID snowflake.ID, feedback string) (*letterdomain.Letter, error) {
	c, err := s.caseSvc.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status != casedomain.StatusAnalyzed {
		return nil, casedomain.ErrInvalidTransition
	}
	letter, err := s.draft(ctx, c, letterdomain.TypeInitial, feedback)
	if err != nil {
		return nil, err
	}
	_, err = s.caseSvc.Transition(ctx, caseID, casedomain.StatusReady, func(tx *gorm.DB, c *casedomain.Case) error {
		body := letter.Body
		c.GeneratedLetter = &body
		return s.letterSvc.Save(ctx, tx, letter)
	})
	if err != nil {
		return nil, err
	}
	return letter, nil
}

func (s *Service) Run(ctx context.Context, caseID snowflake.ID) error {
	release, ok := s.limiter.LockRun(ctx, caseID, runLease)
	if !ok {
		return domain.ErrRunInProgress
	}
	defer release()

	c, err := s.caseSvc.Load(ctx, caseID)
	if err != nil {
		return err
	}
	if c.Status == casedomain.StatusAnalyzing {
		if _, err := s.Analyze(ctx, caseID); err != nil {
			return err
		}
	}
	_, err = s.GenerateInitial(ctx, caseID, "")
	return err
}

// Reanalyze reuses the reservation taken at creation; no credit is debited.
func (s *Service) Reanalyze(ctx context.Context, accountID, caseID snowflake.ID) (*casedomain.Case, error) {
	if err := s.caseSvc.Authorize(ctx, accountID, caseID, casedomain.ActionWrite); err != nil {
		return nil, err
	}
	c, err := s.caseSvc.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status != casedomain.StatusReady {
		return nil, casedomain.ErrInvalidTransition
	}
	c, err = s.caseSvc.Transition(ctx, caseID, casedomain.StatusAnalyzing, nil)
	if err != nil {
		return nil, err
	}
	return s.kickoff(ctx, c)
}

// Retry restarts a case that a failed run left in draft or analyzed.
func (s *Service) Retry(ctx context.Context, accountID, caseID snowflake.ID) (*casedomain.Case, error) {
	if err := s.caseSvc.Authorize(ctx, accountID, caseID, casedomain.ActionWrite); err != nil {
		return nil, err
	}
	c, err := s.caseSvc.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	switch c.Status {
	case casedomain.StatusDraft:
		c, err = s.caseSvc.Transition(ctx, caseID, casedomain.StatusAnalyzing, nil)
		if err != nil {
			return nil, err
		}
	case casedomain.StatusAnalyzed:
	default:
		return nil, domain.ErrNotRetryable
	}
	return s.kickoff(ctx, c)
}

func (s *Service) GenerateFollowUp(ctx context.Context, accountID, caseID snowflake.ID, letterType string, feedback string) (*letterdomain.Letter, error) {
	t, err := letterdomain.ParseType(letterType)
	if err != nil {
		return nil, err
	}
	if err := s.caseSvc.Authorize(ctx, accountID, caseID, casedomain.ActionWrite); err != nil {
		return nil, err
	}
	c, err := s.caseSvc.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status != casedomain.StatusReady && c.Status != casedomain.StatusSent {
		return nil, domain.ErrNotFollowable
	}

	letter, err := s.draft(ctx, c, t, feedback)
	if err != nil {
		return nil, err
	}
	// Same-status transition: the row lock guards against a concurrent resolve.
	_, err = s.caseSvc.Transition(ctx, caseID, c.Status, func(tx *gorm.DB, c *casedomain.Case) error {
		if t == letterdomain.TypeInitial {
			body := letter.Body
			c.GeneratedLetter = &body
		}
		return s.letterSvc.Save(ctx, tx, letter)
	})
	if err != nil {
		return nil, err
	}
	return letter, nil
}

func (s *Service) UpdateCase(ctx context.Context, accountID, caseID snowflake.ID, req casedomain.UpdateCaseRequest) (*casedomain.Case, error) {
	c, err := s.caseSvc.UpdateComplaint(ctx, accountID, caseID, req)
	if err != nil {
		return nil, err
	}
	if c.Status != casedomain.StatusAnalyzing {
		return c, nil
	}
	return s.kickoff(ctx, c)
}

func (s *Service) SendLetter(ctx context.Context, accountID, caseID, letterID snowflake.ID, recipient string) (*domain.SendResult, error) {
	if err := s.caseSvc.Authorize(ctx, accountID, caseID, casedomain.ActionWrite); err != nil {
		return nil, err
	}
	letter, err := s.letterSvc.Get(ctx, caseID, letterID)
	if err != nil {
		return nil, err
	}

	if s.approvalSvc != nil && s.pipeline.Get().RequiresApproval(string(letter.LetterType)) {
		approval, err := s.approvalSvc.RequestApproval(ctx, caseID, letterID, accountID, recipient)
		if err != nil {
			return nil, err
		}
		return &domain.SendResult{Status: domain.SendStatusPendingApproval, Approval: approval}, nil
	}

	send, err := s.dispatchSvc.Send(ctx, dispatchdomain.SendRequest{
		CaseID:    caseID,
		LetterID:  letterID,
		Recipient: recipient,
		Actor:     string(auditdomain.ActorTypeAccount),
	})
	if err != nil {
		return nil, err
	}
	return &domain.SendResult{Status: domain.SendStatusSent, Send: send}, nil
}

// kickoff runs the case in the background when async is enabled and inline otherwise.
func (s *Service) kickoff(ctx context.Context, c *casedomain.Case) (*casedomain.Case, error) {
	if s.async() {
		if !s.schedule(ctx, c.ID) {
			return nil, domain.ErrRunInProgress
		}
		return c, nil
	}
	if err := s.Run(ctx, c.ID); err != nil {
		return nil, err
	}
	return s.caseSvc.Load(ctx, c.ID)
}

func (s *Service) async() bool {
	return s.runner != nil && s.pipeline.Get().Async
}

// schedule hands the run to the background runner. It reports false when a
// run for the case is already in flight or the runner is shutting down.
func (s *Service) schedule(ctx context.Context, caseID snowflake.ID) bool {
	scheduled := s.runner.Go(ctx, caseID, func(runCtx context.Context) error {
		return s.Run(runCtx, caseID)
	})
	if !scheduled {
		logger.WithContext(ctx, s.log).Info("case run not scheduled",
			zap.String("case_id", caseID.String()),
		)
	}
	return scheduled
}

func (s *Service) draft(ctx context.Context, c *casedomain.Case, t letterdomain.Type, feedback string) (*letterdomain.Letter, error) {
	evidence, err := s.evidenceSvc.List(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	sender, err := s.accountSvc.Profile(ctx, c.AccountID)
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("sender profile unavailable",
			zap.String("case_id", c.ID.String()),
			zap.Error(err),
		)
		sender = nil
	}

	letter, usedFallback, err := s.letterSvc.GenerateLetter(ctx, letterdomain.GenerateRequest{
		Case:       *c,
		Intel:      storedIntel(c),
		Evidence:   evidence,
		Sender:     sender,
		Feedback:   feedback,
		LetterType: t,
	})
	if err != nil {
		return nil, err
	}
	if usedFallback {
		logger.WithContext(ctx, s.log).Info("letter drafted from template",
			zap.String("case_id", c.ID.String()),
			zap.String("letter_type", string(t)),
		)
	}
	return letter, nil
}

// storedIntel rebuilds research output from the case row. Citations live in legal_basis.
func storedIntel(c *casedomain.Case) researchdomain.MergedIntel {
	var intel researchdomain.MergedIntel
	if len(c.CompanyIntel) > 0 {
		_ = json.Unmarshal(c.CompanyIntel, &intel)
	}
	intel.Citations = c.LegalBasis
	return intel
}

func (s *Service) rollback(ctx context.Context, caseID snowflake.ID, reason string) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	_ = s.caseSvc.Rollback(dctx, caseID, reason)
}

func (s *Service) audit(ctx context.Context, c *casedomain.Case, action string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	accountID := c.AccountID
	actorID := c.AccountID.String()
	targetID := c.ID.String()
	if err := s.auditSvc.AuditLog(ctx, &accountID, string(auditdomain.ActorTypeAccount), &actorID, action, "case", &targetID, metadata); err != nil {
		s.log.Warn("pipeline audit failed", zap.String("action", action), zap.Error(err))
	}
}
