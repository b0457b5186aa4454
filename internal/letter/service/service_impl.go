package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redress/internal/clock"
	"github.com/smallbiznis/redress/internal/config"
	"github.com/smallbiznis/redress/internal/letter/domain"
	"github.com/smallbiznis/redress/internal/letter/drafter"
	"github.com/smallbiznis/redress/internal/llm"
	obsmetrics "github.com/smallbiznis/redress/internal/observability/metrics"
	"github.com/smallbiznis/redress/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxFeedback = 2000

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Repo            domain.Repository
	Provider        llm.Provider                 `optional:"true"`
	PDF             pdf.Provider                 `optional:"true"`
	Pipeline        *config.PipelineConfigHolder `optional:"true"`
	Metrics         *obsmetrics.Metrics          `optional:"true"`
	PipelineMetrics *obsmetrics.PipelineMetrics  `optional:"true"`
	Clock           clock.Clock                  `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	repo            domain.Repository
	primary         domain.Drafter
	fallback        domain.Drafter
	pdf             pdf.Provider
	pipeline        *config.PipelineConfigHolder
	metrics         *obsmetrics.Metrics
	pipelineMetrics *obsmetrics.PipelineMetrics
	clock           clock.Clock
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	fallback := drafter.NewTemplate()
	var primary domain.Drafter = fallback
	if p.Provider != nil {
		primary = drafter.NewLive(p.Provider)
	}
	pdfProvider := p.PDF
	if pdfProvider == nil {
		pdfProvider = &pdf.NoOpProvider{}
	}
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("letter.service"),
		genID:           p.GenID,
		repo:            p.Repo,
		primary:         primary,
		fallback:        fallback,
		pdf:             pdfProvider,
		pipeline:        p.Pipeline,
		metrics:         p.Metrics,
		pipelineMetrics: p.PipelineMetrics,
		clock:           clk,
	}
}

func (s *Service) GenerateLetter(ctx context.Context, req domain.GenerateRequest) (*domain.Letter, bool, error) {
	if req.LetterType == "" {
		req.LetterType = domain.TypeInitial
	}
	if _, err := domain.ParseType(string(req.LetterType)); err != nil {
		return nil, false, err
	}
	if len([]rune(req.Feedback)) > maxFeedback {
		return nil, false, domain.ErrInvalidFeedback
	}

	started := s.clock.Now()
	dc := domain.BuildContext(req, started)
	draft, drafterName, usedFallback, err := s.draft(ctx, dc)
	if err != nil {
		return nil, false, err
	}
	s.pipelineMetrics.ObserveStage(obsmetrics.StageDrafting, s.clock.Now().Sub(started))
	s.metrics.RecordLetterDraft(ctx, drafterName)

	letter := &domain.Letter{
		ID:           s.genID.Generate(),
		CaseID:       req.Case.ID,
		LetterType:   req.LetterType,
		Subject:      draft.Subject,
		Body:         draft.Body,
		Tone:         draft.Tone,
		UsedFallback: usedFallback,
		CreatedAt:    s.clock.Now().UTC(),

		SenderPlaceholder: !dc.SenderPresent && strings.Contains(draft.Body, domain.SenderPlaceholder),
	}
	s.log.Info("letter drafted",
		zap.String("case_id", req.Case.ID.String()),
		zap.String("letter_type", string(req.LetterType)),
		zap.String("drafter", drafterName),
		zap.Bool("used_fallback", usedFallback),
	)
	return letter, usedFallback, nil
}

// draft tries the primary drafter and falls back to the template on any
// provider error or unsendable output.
func (s *Service) draft(ctx context.Context, dc domain.DraftContext) (domain.Draft, string, bool, error) {
	if s.primary != s.fallback {
		draftCtx, cancel := context.WithTimeout(ctx, s.draftTimeout())
		draft, err := s.primary.Draft(draftCtx, dc)
		cancel()
		if err == nil {
			err = domain.Validate(draft.Body, dc.CompanyName, dc.SenderPresent)
		}
		if err == nil {
			return draft, s.primary.Name(), false, nil
		}
		s.pipelineMetrics.RecordStageError(obsmetrics.StageDrafting, err)
		s.log.Warn("primary drafter failed, using template",
			zap.String("drafter", s.primary.Name()),
			zap.String("reason", obsmetrics.ClassifyReason(err)),
			zap.Error(err),
		)
		draft, err = s.fallbackDraft(ctx, dc)
		if err != nil {
			return domain.Draft{}, "", false, err
		}
		return draft, s.fallback.Name(), true, nil
	}

	draft, err := s.fallbackDraft(ctx, dc)
	if err != nil {
		return domain.Draft{}, "", false, err
	}
	return draft, s.fallback.Name(), false, nil
}

// fallbackDraft renders the template and holds it to the same sendability
// rules as a live draft. A body that still carries tokens is neutralized once.
func (s *Service) fallbackDraft(ctx context.Context, dc domain.DraftContext) (domain.Draft, error) {
	draft, err := s.fallback.Draft(ctx, dc)
	if err != nil {
		return domain.Draft{}, err
	}
	company := domain.Neutralize(dc.CompanyName)
	err = domain.Validate(draft.Body, company, dc.SenderPresent)
	if err == nil {
		return draft, nil
	}
	s.log.Warn("template letter failed validation, neutralizing", zap.Error(err))
	draft.Body = domain.NeutralizeBody(draft.Body, dc.SenderPresent)
	if err := domain.Validate(draft.Body, company, dc.SenderPresent); err != nil {
		return domain.Draft{}, err
	}
	return draft, nil
}

func (s *Service) draftTimeout() time.Duration {
	if timeout := s.pipeline.Get().Drafting.Timeout; timeout > 0 {
		return timeout
	}
	return time.Minute
}

// Save persists the letter on the caller's transaction.
func (s *Service) Save(ctx context.Context, tx *gorm.DB, letter *domain.Letter) error {
	if tx == nil {
		tx = s.db
	}
	return s.repo.Insert(ctx, tx, letter)
}

func (s *Service) Get(ctx context.Context, caseID, letterID snowflake.ID) (*domain.Letter, error) {
	letter, err := s.repo.FindByID(ctx, s.db, caseID, letterID)
	if err != nil {
		return nil, err
	}
	if letter == nil {
		return nil, domain.ErrNotFound
	}
	return letter, nil
}

func (s *Service) List(ctx context.Context, caseID snowflake.ID) ([]domain.Letter, error) {
	return s.repo.ListByCase(ctx, s.db, caseID)
}

func (s *Service) Latest(ctx context.Context, caseID snowflake.ID) (map[domain.Type]domain.Letter, error) {
	letters, err := s.repo.LatestByType(ctx, s.db, caseID)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Type]domain.Letter, len(letters))
	for _, letter := range letters {
		out[letter.LetterType] = letter
	}
	return out, nil
}

func (s *Service) RenderPDF(ctx context.Context, letter *domain.Letter, meta domain.PDFMeta) (io.Reader, error) {
	if letter == nil {
		return nil, domain.ErrNotFound
	}
	doc := pdf.LetterDocument{
		Reference: meta.Reference,
		Date:      letter.CreatedAt.Format("2 January 2006"),
		Recipient: meta.CompanyName,
		Subject:   letter.Subject,
		Body:      letter.Body,
	}
	if meta.Sender != nil {
		doc.SenderName = meta.Sender.Name
		doc.SenderAddress = meta.Sender.AddressLines
	}
	return s.pdf.GenerateLetter(ctx, doc)
}
