package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	"github.com/smallbiznis/redress/internal/clock"
	"github.com/smallbiznis/redress/internal/evidence/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxEvidencePerCase = 50
	maxFileName        = 255
	maxUserContext     = 2000
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	CaseSvc casedomain.Service
	Clock   clock.Clock `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	caseSvc casedomain.Service
	clock   clock.Clock
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("evidence.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		caseSvc: p.CaseSvc,
		clock:   clk,
	}
}

func (s *Service) Add(ctx context.Context, accountID, caseID snowflake.ID, req domain.AddEvidenceRequest) (*domain.Evidence, error) {
	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" || utf8.RuneCountInString(fileName) > maxFileName {
		return nil, domain.ErrInvalidFileName
	}
	userContext := strings.TrimSpace(req.UserContext)
	if utf8.RuneCountInString(userContext) > maxUserContext {
		return nil, domain.ErrInvalidAnalysis
	}

	if _, err := s.caseSvc.Get(ctx, accountID, caseID); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListByCase(ctx, s.db, caseID)
	if err != nil {
		return nil, err
	}
	if len(existing) >= maxEvidencePerCase {
		return nil, domain.ErrTooMuchEvidence
	}

	analysis := req.Analysis
	if analysis == nil {
		analysis = map[string]any{}
	}
	ev := domain.Normalize(analysis)
	ev.ID = s.genID.Generate()
	ev.CaseID = caseID
	ev.FileName = fileName
	ev.UserContext = userContext
	ev.IndexedForLetter = true
	if req.IndexedForLetter != nil {
		ev.IndexedForLetter = *req.IndexedForLetter
	}
	ev.CreatedAt = s.clock.Now().UTC()

	if err := s.repo.Insert(ctx, s.db, &ev); err != nil {
		return nil, err
	}
	s.log.Debug("evidence added",
		zap.String("case_id", caseID.String()),
		zap.String("type", ev.Type),
		zap.String("strength", string(ev.Strength)),
	)
	return &ev, nil
}

func (s *Service) List(ctx context.Context, caseID snowflake.ID) ([]domain.Evidence, error) {
	return s.repo.ListByCase(ctx, s.db, caseID)
}

func (s *Service) ListForAccount(ctx context.Context, accountID, caseID snowflake.ID) ([]domain.Evidence, error) {
	if _, err := s.caseSvc.Get(ctx, accountID, caseID); err != nil {
		return nil, err
	}
	return s.List(ctx, caseID)
}
