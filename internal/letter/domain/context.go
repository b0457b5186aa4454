package domain

import (
	"strings"
	"time"

	evidencedomain "github.com/smallbiznis/redress/internal/evidence/domain"
	"github.com/smallbiznis/redress/internal/outcome"
)

// SenderPlaceholder is the only token allowed in a letter when the profile is incomplete.
const SenderPlaceholder = "[Your Name and Address]"

type Tier string

const (
	TierPrimary    Tier = "primary"
	TierSupporting Tier = "supporting"
	TierContextual Tier = "contextual"
)

func TierFor(strength string) Tier {
	switch evidencedomain.ParseStrength(strength) {
	case evidencedomain.StrengthStrong:
		return TierPrimary
	case evidencedomain.StrengthWeak:
		return TierContextual
	default:
		return TierSupporting
	}
}

type Citation struct {
	Law     string
	Section string
	Summary string
	Tier    Tier
}

type EvidenceEntry struct {
	Index        int
	FileName     string
	Type         string
	Description  string
	Details      []string
	SuggestedUse string
	UserContext  string
	Strength     string
}

// DraftContext is everything a drafter may use. It is the single structured
// input shared by the live and template drafters.
type DraftContext struct {
	LetterType    Type
	Date          string
	Reference     string
	SenderPresent bool
	SenderName    string
	SenderLines   []string
	CompanyName   string
	CompanyDomain string
	Complaint     string
	Amount        string
	Outcome       string
	Issues        []string
	Citations     []Citation
	Evidence      []EvidenceEntry
	Contacts      []string
	PriorLetter   string
	Feedback      string
}

// BuildContext assembles the drafting context. It performs no I/O.
func BuildContext(req GenerateRequest, now time.Time) DraftContext {
	c := req.Case
	letterType := req.LetterType
	if letterType == "" {
		letterType = TypeInitial
	}

	dc := DraftContext{
		LetterType:    letterType,
		Date:          now.Format("2 January 2006"),
		Reference:     c.Reference,
		CompanyName:   strings.TrimSpace(c.CompanyName),
		CompanyDomain: c.CompanyDomain,
		Complaint:     strings.TrimSpace(c.ComplaintText),
		Issues:        append([]string{}, c.IdentifiedIssues...),
		Feedback:      strings.TrimSpace(req.Feedback),
	}
	if c.GeneratedLetter != nil {
		dc.PriorLetter = *c.GeneratedLetter
	}
	if amount := c.Amount(); !amount.IsZero() {
		dc.Amount = outcome.FormatAmount(amount, c.Currency)
	}
	dc.Outcome = outcome.InferOutcome(outcome.Input{
		Complaint:      c.ComplaintText,
		Issues:         c.IdentifiedIssues,
		DesiredOutcome: c.Outcome(),
		Amount:         c.Amount(),
		Currency:       c.Currency,
	})

	if s := req.Sender; s != nil && strings.TrimSpace(s.Name) != "" && len(s.AddressLines) > 0 {
		dc.SenderPresent = true
		dc.SenderName = strings.TrimSpace(s.Name)
		dc.SenderLines = append([]string{}, s.AddressLines...)
		if email := strings.TrimSpace(s.Email); email != "" {
			dc.SenderLines = append(dc.SenderLines, email)
		}
		if phone := strings.TrimSpace(s.Phone); phone != "" {
			dc.SenderLines = append(dc.SenderLines, phone)
		}
	}

	citations := c.LegalBasis
	if len(citations) == 0 {
		citations = req.Intel.Citations
	}
	for _, lb := range citations {
		dc.Citations = append(dc.Citations, Citation{
			Law:     lb.Law,
			Section: lb.Section,
			Summary: lb.Summary,
			Tier:    TierFor(lb.Strength),
		})
	}

	aggregated := evidencedomain.Aggregate(req.Evidence)
	for i, ev := range aggregated.Items {
		dc.Evidence = append(dc.Evidence, EvidenceEntry{
			Index:        i + 1,
			FileName:     ev.FileName,
			Type:         ev.Type,
			Description:  ev.Description,
			Details:      ev.RelevantDetails,
			SuggestedUse: ev.SuggestedUse,
			UserContext:  ev.UserContext,
			Strength:     string(ev.Strength),
		})
	}

	for _, contact := range req.Intel.Contacts {
		if contact.Value != "" {
			dc.Contacts = append(dc.Contacts, contact.Value)
		}
	}
	return dc
}
