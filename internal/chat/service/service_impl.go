package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	"github.com/smallbiznis/redress/internal/chat/domain"
	evidencedomain "github.com/smallbiznis/redress/internal/evidence/domain"
	letterdomain "github.com/smallbiznis/redress/internal/letter/domain"
	"github.com/smallbiznis/redress/internal/llm"
	"github.com/smallbiznis/redress/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const chatTemperature = 0.6

type Params struct {
	fx.In

	Log         *zap.Logger
	CaseSvc     casedomain.Service
	LetterSvc   letterdomain.Service
	EvidenceSvc evidencedomain.Service
	Provider    llm.Provider `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	caseSvc     casedomain.Service
	letterSvc   letterdomain.Service
	evidenceSvc evidencedomain.Service
	provider    llm.Provider
}

func NewService(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("chat.service"),
		caseSvc:     p.CaseSvc,
		letterSvc:   p.LetterSvc,
		evidenceSvc: p.EvidenceSvc,
		provider:    p.Provider,
	}
}

func (s *Service) Stream(ctx context.Context, accountID, caseID snowflake.ID, messages []domain.Message, emit func(chunk string) error) error {
	if err := domain.ValidateMessages(messages); err != nil {
		return err
	}
	c, err := s.caseSvc.Get(ctx, accountID, caseID)
	if err != nil {
		return err
	}
	if s.provider == nil {
		return llm.ErrNotConfigured
	}

	latest, err := s.latestLetter(ctx, caseID)
	if err != nil {
		return err
	}
	evidence, err := s.evidenceSvc.List(ctx, caseID)
	if err != nil {
		return err
	}

	req := llm.Request{
		System:   systemPrompt(c, latest, evidence),
		Messages: make([]llm.Message, 0, len(messages)),
	}
	temperature := float32(chatTemperature)
	req.Temperature = &temperature
	for _, m := range messages {
		req.Messages = append(req.Messages, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}

	started := time.Now()
	var (
		chunks  int
		emitErr error
	)
	err = s.provider.Stream(ctx, req, func(chunk string) error {
		chunks++
		if emitErr = emit(chunk); emitErr != nil {
			return emitErr
		}
		return nil
	})
	log := logger.WithContext(ctx, s.log).With(
		zap.String("case_id", caseID.String()),
		zap.Int("chunks", chunks),
		zap.Duration("elapsed", time.Since(started)),
	)
	if emitErr != nil {
		// The client went away; nothing to report upstream.
		log.Info("chat stream abandoned", zap.Error(emitErr))
		return emitErr
	}
	if err != nil {
		log.Warn("chat stream failed", zap.Error(err))
		return llm.Classify(s.provider.Name(), err)
	}
	log.Info("chat stream finished")
	return nil
}

func (s *Service) latestLetter(ctx context.Context, caseID snowflake.ID) (*letterdomain.Letter, error) {
	byType, err := s.letterSvc.Latest(ctx, caseID)
	if err != nil {
		return nil, err
	}
	var latest *letterdomain.Letter
	for _, l := range byType {
		if latest == nil || l.ID > latest.ID {
			letter := l
			latest = &letter
		}
	}
	return latest, nil
}

func systemPrompt(c *casedomain.Case, latest *letterdomain.Letter, evidence []evidencedomain.Evidence) string {
	var b strings.Builder
	b.WriteString("You help a consumer negotiate a complaint with a company. ")
	b.WriteString("Be practical and concise, suggest wording they can send, and never invent facts or laws that are not listed below.\n\n")

	fmt.Fprintf(&b, "Company: %s\n", c.CompanyName)
	if c.CompanyDomain != "" {
		fmt.Fprintf(&b, "Company website: %s\n", c.CompanyDomain)
	}
	if c.PurchaseAmount.Valid {
		fmt.Fprintf(&b, "Amount at stake: %s %s\n", c.PurchaseAmount.Decimal.StringFixed(2), c.Currency)
	}
	if outcome := c.Outcome(); outcome != "" {
		fmt.Fprintf(&b, "Desired outcome: %s\n", outcome)
	}
	fmt.Fprintf(&b, "\nComplaint:\n%s\n", c.ComplaintText)

	if len(c.IdentifiedIssues) > 0 {
		b.WriteString("\nIdentified issues:\n")
		for _, issue := range c.IdentifiedIssues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}
	if len(c.LegalBasis) > 0 {
		b.WriteString("\nLegal basis:\n")
		for _, lb := range c.LegalBasis {
			line := lb.Law
			if lb.Section != "" {
				line += " " + lb.Section
			}
			if lb.Summary != "" {
				line += ": " + lb.Summary
			}
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	if len(evidence) > 0 {
		b.WriteString("\nEvidence on file:\n")
		for _, ev := range evidence {
			line := ev.FileName
			if ev.Description != "" {
				line += ": " + ev.Description
			}
			fmt.Fprintf(&b, "- %s (%s)\n", line, ev.Strength)
		}
	}
	if latest != nil {
		fmt.Fprintf(&b, "\nMost recent %s letter:\nSubject: %s\n%s\n", latest.LetterType, latest.Subject, latest.Body)
	}
	return b.String()
}
