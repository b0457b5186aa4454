package service

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/redress/internal/config"
	obsmetrics "github.com/smallbiznis/redress/internal/observability/metrics"
	"github.com/smallbiznis/redress/internal/research/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Sources  domain.SourceFactory
	Pipeline *config.PipelineConfigHolder `optional:"true"`
	Metrics  *obsmetrics.PipelineMetrics  `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	sources  domain.SourceFactory
	pipeline *config.PipelineConfigHolder
	metrics  *obsmetrics.PipelineMetrics
}

func NewService(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("research.service"),
		sources:  p.Sources,
		pipeline: p.Pipeline,
		metrics:  p.Metrics,
	}
}

type sourceOutcome struct {
	contribution domain.Contribution
	result       domain.ResearchResult
	warning      *domain.Warning
}

func (s *Service) Research(ctx context.Context, q domain.Query) domain.MergedIntel {
	started := time.Now()
	sources := s.sources.Sources(q)
	timeouts := s.timeouts()

	outcomes := make([]sourceOutcome, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			outcomes[i] = s.run(ctx, src, q, timeouts.For(src.Kind()))
			return nil
		})
	}
	_ = g.Wait()

	merged := merge(outcomes)
	s.metrics.ObserveStage(obsmetrics.StageResearch, time.Since(started))
	s.log.Info("research merged",
		zap.Int("sources", len(sources)),
		zap.Int("warnings", len(merged.Warnings)),
		zap.Int("citations", len(merged.Citations)),
		zap.Bool("all_failed", merged.AllFailed()),
	)
	return merged
}

func (s *Service) run(ctx context.Context, src domain.Source, q domain.Query, timeout time.Duration) sourceOutcome {
	sctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	contribution, err := fetch(sctx, src, q)
	out := sourceOutcome{
		result: domain.ResearchResult{
			Source:    src.ID(),
			Kind:      string(src.Kind()),
			OK:        err == nil,
			LatencyMS: time.Since(started).Milliseconds(),
		},
	}
	if err == nil {
		out.contribution = contribution
		s.metrics.RecordSource(string(src.Kind()), obsmetrics.SourceOutcomeOK)
		return out
	}

	outcome := obsmetrics.SourceOutcomeFailed
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(sctx.Err(), context.DeadlineExceeded) {
		outcome = obsmetrics.SourceOutcomeTimeout
	}
	s.metrics.RecordSource(string(src.Kind()), outcome)
	out.result.Error = outcome
	out.warning = &domain.Warning{Source: src.ID(), Message: warningMessage(src.Kind(), outcome)}
	s.log.Warn("research source failed",
		zap.String("source", src.ID()),
		zap.String("outcome", outcome),
		zap.Error(err),
	)
	return out
}

// fetch also returns when a source ignores its context past the deadline.
func fetch(ctx context.Context, src domain.Source, q domain.Query) (domain.Contribution, error) {
	type reply struct {
		c   domain.Contribution
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		c, err := src.Fetch(ctx, q)
		ch <- reply{c: c, err: err}
	}()
	select {
	case r := <-ch:
		return r.c, r.err
	case <-ctx.Done():
		return domain.Contribution{}, ctx.Err()
	}
}

func merge(outcomes []sourceOutcome) domain.MergedIntel {
	merged := domain.MergedIntel{
		Contacts:         []domain.Contact{},
		EvidenceAnalyses: []domain.EvidenceAnalysis{},
	}
	for _, o := range outcomes {
		merged.Results = append(merged.Results, o.result)
		if o.warning != nil {
			merged.Warnings = append(merged.Warnings, *o.warning)
			continue
		}
		merged.Contacts = append(merged.Contacts, o.contribution.Contacts...)
		merged.Citations = append(merged.Citations, o.contribution.Citations...)
		merged.EvidenceAnalyses = append(merged.EvidenceAnalyses, o.contribution.EvidenceAnalyses...)
		if merged.Reputation == nil && o.contribution.Reputation != nil {
			merged.Reputation = o.contribution.Reputation
		}
	}
	return merged
}

func warningMessage(kind domain.SourceKind, outcome string) string {
	if outcome == obsmetrics.SourceOutcomeTimeout {
		return string(kind) + " lookup timed out"
	}
	return string(kind) + " lookup unavailable"
}

func (s *Service) timeouts() domain.Timeouts {
	cfg := s.pipeline.Get().Research
	return domain.Timeouts{
		Company:  cfg.CompanyTimeout,
		Legal:    cfg.LegalTimeout,
		Evidence: cfg.EvidenceTimeout,
	}
}
