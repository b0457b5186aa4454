package domain

import (
	"context"
	"time"

	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	evidencedomain "github.com/smallbiznis/redress/internal/evidence/domain"
)

type SourceKind string

const (
	SourceCompany  SourceKind = "company"
	SourceLegal    SourceKind = "legal"
	SourceEvidence SourceKind = "evidence"
)

type Query struct {
	Complaint   string
	CompanyName string
	Domain      string
	Evidence    []evidencedomain.Evidence
}

type Contact struct {
	Channel string `json:"channel"`
	Value   string `json:"value"`
	Label   string `json:"label,omitempty"`
}

type Reputation struct {
	Summary      string   `json:"summary"`
	Rating       string   `json:"rating,omitempty"`
	CommonIssues []string `json:"common_issues,omitempty"`
}

type EvidenceAnalysis struct {
	EvidenceID string   `json:"evidence_id"`
	FileName   string   `json:"file_name"`
	Summary    string   `json:"summary"`
	KeyPoints  []string `json:"key_points,omitempty"`
	Strength   string   `json:"strength,omitempty"`
}

// Contribution is the additive slice one source adds to the merged result.
type Contribution struct {
	Contacts         []Contact
	Reputation       *Reputation
	Citations        []casedomain.LegalBasis
	EvidenceAnalyses []EvidenceAnalysis
}

type Warning struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// ResearchResult records how one source fared. It is kept only inside MergedIntel.
type ResearchResult struct {
	Source    string `json:"source"`
	Kind      string `json:"kind"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type MergedIntel struct {
	Contacts         []Contact               `json:"contacts"`
	Reputation       *Reputation             `json:"reputation,omitempty"`
	Citations        []casedomain.LegalBasis `json:"-"`
	EvidenceAnalyses []EvidenceAnalysis      `json:"evidence_analyses"`
	Warnings         []Warning               `json:"warnings,omitempty"`
	Results          []ResearchResult        `json:"results,omitempty"`
}

// AllFailed reports whether sources ran and none succeeded.
func (m MergedIntel) AllFailed() bool {
	if len(m.Results) == 0 {
		return false
	}
	for _, r := range m.Results {
		if r.OK {
			return false
		}
	}
	return true
}

type Source interface {
	ID() string
	Kind() SourceKind
	Fetch(ctx context.Context, q Query) (Contribution, error)
}

// SourceFactory decides which lookups run for a query.
type SourceFactory interface {
	Sources(q Query) []Source
}

type Timeouts struct {
	Company  time.Duration
	Legal    time.Duration
	Evidence time.Duration
}

func (t Timeouts) For(kind SourceKind) time.Duration {
	switch kind {
	case SourceCompany:
		return t.Company
	case SourceLegal:
		return t.Legal
	default:
		return t.Evidence
	}
}
