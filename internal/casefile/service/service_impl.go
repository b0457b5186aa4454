package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/redress/internal/audit/domain"
	"github.com/smallbiznis/redress/internal/casefile/domain"
	"github.com/smallbiznis/redress/internal/clock"
	"github.com/smallbiznis/redress/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/redress/internal/observability/metrics"
	"github.com/smallbiznis/redress/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Clock      clock.Clock                 `optional:"true"`
	Authorizer domain.Authorizer           `optional:"true"`
	AuditSvc   auditdomain.Service         `optional:"true"`
	Pipeline   *obsmetrics.PipelineMetrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	clock      clock.Clock
	authorizer domain.Authorizer
	auditSvc   auditdomain.Service
	pipeline   *obsmetrics.PipelineMetrics
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("casefile.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      clk,
		authorizer: p.Authorizer,
		auditSvc:   p.AuditSvc,
		pipeline:   p.Pipeline,
	}
}

func (s *Service) Create(ctx context.Context, tx *gorm.DB, id snowflake.ID, reservationID snowflake.ID, req domain.CreateCaseRequest) (*domain.Case, error) {
	if err := domain.ValidateCreate(&req); err != nil {
		return nil, err
	}
	if reservationID == 0 {
		return nil, domain.ErrNoReservation
	}
	if id == 0 {
		id = s.genID.Generate()
	}

	now := s.clock.Now().UTC()
	c := &domain.Case{
		ID:               id,
		AccountID:        req.AccountID,
		Reference:        reference(req.CompanyName, id),
		Status:           domain.StatusDraft,
		ComplaintText:    req.Complaint,
		CompanyName:      req.CompanyName,
		CompanyDomain:    req.CompanyDomain,
		Currency:         req.Currency,
		DesiredOutcome:   req.DesiredOutcome,
		IdentifiedIssues: []string{},
		LegalBasis:       []domain.LegalBasis{},
		ReservationID:    &reservationID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.Amount != nil {
		c.PurchaseAmount = decimal.NewNullDecimal(*req.Amount)
	}
	if err := s.repo.Insert(ctx, tx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, accountID, caseID snowflake.ID) (*domain.Case, error) {
	if err := s.authorize(ctx, accountID, caseID, domain.ActionRead); err != nil {
		return nil, err
	}
	return s.Load(ctx, caseID)
}

// Load reads a case without an ownership check. Only pipeline stages call it.
func (s *Service) Load(ctx context.Context, caseID snowflake.ID) (*domain.Case, error) {
	c, err := s.repo.FindByID(ctx, s.db, caseID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCasesRequest) (domain.ListCasesResponse, error) {
	filter := domain.ListFilter{AccountID: req.AccountID, Limit: req.Limit() + 1}
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListCasesResponse{}, domain.ErrInvalidPageToken
	}
	if cursor != nil {
		before, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListCasesResponse{}, domain.ErrInvalidPageToken
		}
		filter.BeforeID = &before
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListCasesResponse{}, err
	}
	page, info, err := pagination.Trim(items, req.Limit(), func(c domain.Case) pagination.Cursor {
		return pagination.Cursor{ID: c.ID.String()}
	})
	if err != nil {
		return domain.ListCasesResponse{}, err
	}
	return domain.ListCasesResponse{PageInfo: info, Cases: page}, nil
}

// UpdateComplaint edits case facts. Editing a ready case sends it back to analyzing.
func (s *Service) UpdateComplaint(ctx context.Context, accountID, caseID snowflake.ID, req domain.UpdateCaseRequest) (*domain.Case, error) {
	if err := s.authorize(ctx, accountID, caseID, domain.ActionWrite); err != nil {
		return nil, err
	}

	var (
		updated *domain.Case
		from    domain.Status
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.repo.FindByIDForUpdate(ctx, tx, caseID)
		if err != nil {
			return err
		}
		if c == nil {
			return domain.ErrNotFound
		}
		switch c.Status {
		case domain.StatusDraft, domain.StatusAnalyzed, domain.StatusReady:
		default:
			return domain.ErrNotEditable
		}
		if err := applyUpdate(c, req); err != nil {
			return err
		}

		from = c.Status
		now := s.clock.Now().UTC()
		if c.Status == domain.StatusReady {
			c.Status = domain.StatusAnalyzing
			c.AnalysisAttempts++
			clearAnalysis(c)
		}
		c.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from != updated.Status {
		s.afterTransition(ctx, updated, from)
	}
	return updated, nil
}

func (s *Service) Transition(ctx context.Context, caseID snowflake.ID, target domain.Status, mutate domain.Mutation) (*domain.Case, error) {
	var (
		result *domain.Case
		from   domain.Status
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.repo.FindByIDForUpdate(ctx, tx, caseID)
		if err != nil {
			return err
		}
		if c == nil {
			return domain.ErrNotFound
		}
		from = c.Status

		now := s.clock.Now().UTC()
		if c.Status != target {
			if !domain.CanTransition(c.Status, target) {
				return domain.ErrInvalidTransition
			}
			if err := s.enter(c, target, now); err != nil {
				return err
			}
		}
		if mutate != nil {
			if err := mutate(tx, c); err != nil {
				return err
			}
		}
		if c.Status == from && mutate == nil {
			result = c
			return nil
		}
		c.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, c); err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from != result.Status {
		s.afterTransition(ctx, result, from)
	}
	return result, nil
}

// enter applies the side effects of moving into target.
func (s *Service) enter(c *domain.Case, target domain.Status, now time.Time) error {
	switch target {
	case domain.StatusAnalyzing:
		if c.ReservationID == nil || *c.ReservationID == 0 {
			return domain.ErrNoReservation
		}
		if c.Status == domain.StatusReady {
			clearAnalysis(c)
		}
		c.AnalysisAttempts++
		c.LastError = ""
	case domain.StatusAnalyzed:
		c.AnalyzedAt = &now
	case domain.StatusSent:
		c.SentAt = &now
	case domain.StatusResolved:
		c.ResolvedAt = &now
	}
	c.Status = target
	return nil
}

func (s *Service) Rollback(ctx context.Context, caseID snowflake.ID, reason string) error {
	_, err := s.Transition(ctx, caseID, domain.StatusDraft, func(_ *gorm.DB, c *domain.Case) error {
		c.LastError = truncate(strings.TrimSpace(reason), 500)
		return nil
	})
	if err != nil {
		logger.WithContext(ctx, s.log).Error("case rollback failed",
			zap.String("case_id", caseID.String()),
			zap.Error(err),
		)
	}
	return err
}

func (s *Service) Resolve(ctx context.Context, accountID, caseID snowflake.ID, outcome string) (*domain.Case, error) {
	if err := s.authorize(ctx, accountID, caseID, domain.ActionWrite); err != nil {
		return nil, err
	}
	outcome = truncate(strings.TrimSpace(outcome), domain.MaxOutcomeLength)
	return s.Transition(ctx, caseID, domain.StatusResolved, func(_ *gorm.DB, c *domain.Case) error {
		if outcome == "" {
			c.ResolutionOutcome = nil
			return nil
		}
		c.ResolutionOutcome = &outcome
		return nil
	})
}

func (s *Service) AddNote(ctx context.Context, accountID, caseID snowflake.ID, body string) (*domain.Note, error) {
	body, err := domain.NormalizeNote(body)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, accountID, caseID, domain.ActionWrite); err != nil {
		return nil, err
	}
	note := &domain.Note{
		ID:        s.genID.Generate(),
		CaseID:    caseID,
		AccountID: accountID,
		Body:      body,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.InsertNote(ctx, s.db, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *Service) ListNotes(ctx context.Context, accountID, caseID snowflake.ID) ([]domain.Note, error) {
	if err := s.authorize(ctx, accountID, caseID, domain.ActionRead); err != nil {
		return nil, err
	}
	return s.repo.ListNotes(ctx, s.db, caseID)
}

func (s *Service) Authorize(ctx context.Context, accountID, caseID snowflake.ID, action string) error {
	return s.authorize(ctx, accountID, caseID, action)
}

func (s *Service) ListStale(ctx context.Context, status domain.Status, cutoff time.Time, limit int) ([]domain.Case, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListStale(ctx, s.db, status, cutoff, limit)
}

// authorize resolves only the owner column, so a foreign case is rejected before its fields are read.
func (s *Service) authorize(ctx context.Context, accountID, caseID snowflake.ID, action string) error {
	if accountID == 0 {
		return domain.ErrForbidden
	}
	owner, err := s.repo.FindOwner(ctx, s.db, caseID)
	if err != nil {
		return err
	}
	if owner == 0 {
		return domain.ErrNotFound
	}
	if owner == accountID {
		return nil
	}
	if s.authorizer == nil {
		return domain.ErrForbidden
	}
	if err := s.authorizer.AuthorizeCase(ctx, accountID, owner, action); err != nil {
		return domain.ErrForbidden
	}
	return nil
}

func (s *Service) afterTransition(ctx context.Context, c *domain.Case, from domain.Status) {
	s.pipeline.RecordTransition(string(from), string(c.Status))
	logger.WithContext(ctx, s.log).Info("case transitioned",
		zap.String("case_id", c.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(c.Status)),
	)
	if s.auditSvc == nil {
		return
	}
	accountID := c.AccountID
	targetID := c.ID.String()
	metadata := map[string]any{"from": string(from), "to": string(c.Status)}
	if err := s.auditSvc.AuditLog(ctx, &accountID, "", nil, "case.transition", "case", &targetID, metadata); err != nil {
		s.log.Warn("case transition audit failed", zap.Error(err))
	}
}

func applyUpdate(c *domain.Case, req domain.UpdateCaseRequest) error {
	merged := domain.CreateCaseRequest{
		Complaint:      c.ComplaintText,
		CompanyName:    c.CompanyName,
		CompanyDomain:  c.CompanyDomain,
		Currency:       c.Currency,
		DesiredOutcome: c.DesiredOutcome,
	}
	if c.PurchaseAmount.Valid {
		amount := c.PurchaseAmount.Decimal
		merged.Amount = &amount
	}
	if req.Complaint != nil {
		merged.Complaint = *req.Complaint
	}
	if req.CompanyName != nil {
		merged.CompanyName = *req.CompanyName
	}
	if req.CompanyDomain != nil {
		merged.CompanyDomain = *req.CompanyDomain
	}
	if req.Amount != nil {
		merged.Amount = req.Amount
	}
	if req.Currency != nil {
		merged.Currency = *req.Currency
	}
	if req.DesiredOutcome != nil {
		merged.DesiredOutcome = req.DesiredOutcome
	}
	if err := domain.ValidateCreate(&merged); err != nil {
		return err
	}

	c.ComplaintText = merged.Complaint
	c.CompanyName = merged.CompanyName
	c.CompanyDomain = merged.CompanyDomain
	c.Currency = merged.Currency
	c.DesiredOutcome = merged.DesiredOutcome
	c.PurchaseAmount = decimal.NullDecimal{}
	if merged.Amount != nil {
		c.PurchaseAmount = decimal.NewNullDecimal(*merged.Amount)
	}
	return nil
}

// clearAnalysis drops results that a fresh analysis must recompute.
func clearAnalysis(c *domain.Case) {
	c.ConfidenceScore = nil
	c.LegalBasis = []domain.LegalBasis{}
	c.IdentifiedIssues = []string{}
	c.AnalyzedAt = nil
}

func reference(company string, id snowflake.ID) string {
	base := slug.Make(company)
	if len(base) > 40 {
		base = strings.Trim(base[:40], "-")
	}
	if base == "" {
		base = "case"
	}
	return base + "-" + strings.ToLower(id.Base36())
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
