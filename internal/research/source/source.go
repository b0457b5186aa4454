// Package source holds the language-model backed research lookups.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	"github.com/smallbiznis/redress/internal/config"
	evidencedomain "github.com/smallbiznis/redress/internal/evidence/domain"
	"github.com/smallbiznis/redress/internal/llm"
	"github.com/smallbiznis/redress/internal/research/domain"
	"go.uber.org/fx"
)

type FactoryParams struct {
	fx.In

	Provider llm.Provider                 `optional:"true"`
	Pipeline *config.PipelineConfigHolder `optional:"true"`
}

type Factory struct {
	provider llm.Provider
	pipeline *config.PipelineConfigHolder
}

func NewFactory(p FactoryParams) domain.SourceFactory {
	return &Factory{provider: p.Provider, pipeline: p.Pipeline}
}

// Sources returns nothing when no provider is configured.
func (f *Factory) Sources(q domain.Query) []domain.Source {
	if f.provider == nil {
		return nil
	}
	sources := []domain.Source{
		&Company{provider: f.provider},
		&Legal{provider: f.provider},
	}
	limit := f.pipeline.Get().Research.MaxEvidence
	for i, item := range q.Evidence {
		if limit > 0 && i >= limit {
			break
		}
		sources = append(sources, &Evidence{provider: f.provider, item: item})
	}
	return sources
}

var jsonTemperature = float32(0.2)

func ask(ctx context.Context, provider llm.Provider, system, prompt string, out any) error {
	raw, err := provider.Generate(ctx, llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		JSON:        true,
		Temperature: &jsonTemperature,
	})
	if err != nil {
		return llm.Classify(provider.Name(), err)
	}
	return llm.DecodeJSON(provider.Name(), raw, out)
}

func invalid(provider llm.Provider, msg string) error {
	return &llm.ProviderError{Kind: llm.KindInvalidOutput, Provider: provider.Name(), Err: errors.New(msg)}
}

type Company struct {
	provider llm.Provider
}

func (c *Company) ID() string               { return "company" }
func (c *Company) Kind() domain.SourceKind { return domain.SourceCompany }

const companySystem = `You research UK and EU consumer-facing companies.
Reply with one JSON object: {"contacts":[{"channel":"email|phone|address|web","value":"","label":""}],
"reputation":{"summary":"","rating":"","common_issues":[""]}}. Only include contacts you are confident exist.`

func (c *Company) Fetch(ctx context.Context, q domain.Query) (domain.Contribution, error) {
	var resp struct {
		Contacts   []domain.Contact   `json:"contacts"`
		Reputation *domain.Reputation `json:"reputation"`
	}
	prompt := fmt.Sprintf("Company: %s\nWebsite: %s\nFind the complaints contacts and summarise the complaint-handling reputation.",
		q.CompanyName, q.Domain)
	if err := ask(ctx, c.provider, companySystem, prompt, &resp); err != nil {
		return domain.Contribution{}, err
	}

	contacts := make([]domain.Contact, 0, len(resp.Contacts))
	for _, contact := range resp.Contacts {
		contact.Channel = strings.ToLower(strings.TrimSpace(contact.Channel))
		contact.Value = strings.TrimSpace(contact.Value)
		if contact.Value == "" {
			continue
		}
		contacts = append(contacts, contact)
	}
	if len(contacts) == 0 && resp.Reputation == nil {
		return domain.Contribution{}, invalid(c.provider, "company lookup returned nothing")
	}
	return domain.Contribution{Contacts: contacts, Reputation: resp.Reputation}, nil
}

type Legal struct {
	provider llm.Provider
}

func (l *Legal) ID() string               { return "legal" }
func (l *Legal) Kind() domain.SourceKind { return domain.SourceLegal }

const legalSystem = `You identify consumer-protection law relevant to a complaint.
Reply with one JSON object: {"citations":[{"law":"","section":"","summary":"","strength":"strong|moderate|weak"}]}.`

func (l *Legal) Fetch(ctx context.Context, q domain.Query) (domain.Contribution, error) {
	var resp struct {
		Citations []casedomain.LegalBasis `json:"citations"`
	}
	prompt := fmt.Sprintf("Company: %s\nComplaint:\n%s", q.CompanyName, q.Complaint)
	if err := ask(ctx, l.provider, legalSystem, prompt, &resp); err != nil {
		return domain.Contribution{}, err
	}

	citations := make([]casedomain.LegalBasis, 0, len(resp.Citations))
	for _, c := range resp.Citations {
		c.Law = strings.TrimSpace(c.Law)
		if c.Law == "" {
			continue
		}
		c.Section = strings.TrimSpace(c.Section)
		c.Summary = strings.TrimSpace(c.Summary)
		c.Strength = string(evidencedomain.ParseStrength(c.Strength))
		citations = append(citations, c)
	}
	if len(citations) == 0 {
		return domain.Contribution{}, invalid(l.provider, "no citations")
	}
	return domain.Contribution{Citations: citations}, nil
}

type Evidence struct {
	provider llm.Provider
	item     evidencedomain.Evidence
}

func (e *Evidence) ID() string               { return "evidence:" + e.item.ID.String() }
func (e *Evidence) Kind() domain.SourceKind { return domain.SourceEvidence }

const evidenceSystem = `You assess how a piece of evidence supports a consumer complaint.
Reply with one JSON object: {"summary":"","key_points":[""],"strength":"strong|moderate|weak"}.`

func (e *Evidence) Fetch(ctx context.Context, q domain.Query) (domain.Contribution, error) {
	details, _ := json.Marshal(e.item.RelevantDetails)
	prompt := fmt.Sprintf("Complaint:\n%s\n\nEvidence file: %s\nType: %s\nDescription: %s\nDetails: %s\nUser context: %s",
		q.Complaint, e.item.FileName, e.item.Type, e.item.Description, details, e.item.UserContext)

	var resp struct {
		Summary   string   `json:"summary"`
		KeyPoints []string `json:"key_points"`
		Strength  string   `json:"strength"`
	}
	if err := ask(ctx, e.provider, evidenceSystem, prompt, &resp); err != nil {
		return domain.Contribution{}, err
	}
	if strings.TrimSpace(resp.Summary) == "" {
		return domain.Contribution{}, invalid(e.provider, "empty evidence summary")
	}
	return domain.Contribution{EvidenceAnalyses: []domain.EvidenceAnalysis{{
		EvidenceID: e.item.ID.String(),
		FileName:   e.item.FileName,
		Summary:    strings.TrimSpace(resp.Summary),
		KeyPoints:  resp.KeyPoints,
		Strength:   string(evidencedomain.ParseStrength(resp.Strength)),
	}}}, nil
}
