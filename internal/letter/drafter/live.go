package drafter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/redress/internal/letter/domain"
	"github.com/smallbiznis/redress/internal/llm"
)

const liveSystem = `You write formal consumer complaint letters from the consumer to a company.
Rewrite the facts in clear, firm, professional prose. Never quote the complaint verbatim.
Cite the primary legal grounds prominently, supporting grounds briefly and contextual grounds only if they help.
Refer to the enclosed evidence by its number and file name.
State the requested outcome exactly as given.
Do not invent facts, amounts, dates or names.
Do not use placeholders in square or curly brackets. If no sender is given, write the exact token [Your Name and Address] where the sender would sign.
Respond with a single JSON object: {"subject": string, "body": string, "tone": string}.`

var draftTemperature = float32(0.4)

// Live drafts through the language model.
type Live struct {
	provider llm.Provider
}

func NewLive(provider llm.Provider) *Live {
	return &Live{provider: provider}
}

func (l *Live) Name() string { return "live:" + l.provider.Name() }

func (l *Live) Draft(ctx context.Context, dc domain.DraftContext) (domain.Draft, error) {
	raw, err := l.provider.Generate(ctx, llm.Request{
		System:      liveSystem,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: Prompt(dc)}},
		JSON:        true,
		Temperature: &draftTemperature,
	})
	if err != nil {
		return domain.Draft{}, llm.Classify(l.provider.Name(), err)
	}

	var draft domain.Draft
	if err := llm.DecodeJSON(l.provider.Name(), raw, &draft); err != nil {
		return domain.Draft{}, err
	}
	draft.Subject = strings.TrimSpace(draft.Subject)
	draft.Body = strings.TrimSpace(draft.Body)
	draft.Tone = strings.TrimSpace(draft.Tone)
	if draft.Body == "" || draft.Subject == "" {
		return domain.Draft{}, &llm.ProviderError{
			Kind:     llm.KindInvalidOutput,
			Provider: l.provider.Name(),
			Err:      errors.New("draft is missing subject or body"),
		}
	}
	if draft.Tone == "" {
		draft.Tone = "formal"
	}
	return draft, nil
}

// Prompt renders the drafting context as a plain brief for the model.
func Prompt(dc domain.DraftContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Letter type: %s\n", dc.LetterType)
	fmt.Fprintf(&b, "Date: %s\n", dc.Date)
	fmt.Fprintf(&b, "Case reference: %s\n", dc.Reference)
	if dc.SenderPresent {
		fmt.Fprintf(&b, "Sender: %s, %s\n", dc.SenderName, strings.Join(dc.SenderLines, ", "))
	} else {
		fmt.Fprintf(&b, "Sender: not provided, use %s\n", domain.SenderPlaceholder)
	}
	fmt.Fprintf(&b, "Company: %s", dc.CompanyName)
	if dc.CompanyDomain != "" {
		fmt.Fprintf(&b, " (%s)", dc.CompanyDomain)
	}
	b.WriteString("\n")
	if len(dc.Contacts) > 0 {
		fmt.Fprintf(&b, "Company contacts: %s\n", strings.Join(dc.Contacts, "; "))
	}
	if dc.Amount != "" {
		fmt.Fprintf(&b, "Amount: %s\n", dc.Amount)
	}
	fmt.Fprintf(&b, "Requested outcome: %s\n", dc.Outcome)
	fmt.Fprintf(&b, "\nComplaint:\n%s\n", dc.Complaint)

	if len(dc.Issues) > 0 {
		b.WriteString("\nIssues:\n")
		for i, issue := range dc.Issues {
			fmt.Fprintf(&b, "%d. %s\n", i+1, issue)
		}
	}
	if len(dc.Citations) > 0 {
		b.WriteString("\nLegal grounds:\n")
		for _, c := range dc.Citations {
			fmt.Fprintf(&b, "- [%s] %s %s: %s\n", c.Tier, c.Law, c.Section, c.Summary)
		}
	}
	if len(dc.Evidence) > 0 {
		b.WriteString("\nEvidence in upload order:\n")
		for _, ev := range dc.Evidence {
			fmt.Fprintf(&b, "%d. %s (%s, %s): %s", ev.Index, ev.FileName, ev.Type, ev.Strength, ev.Description)
			if len(ev.Details) > 0 {
				fmt.Fprintf(&b, " Details: %s.", strings.Join(ev.Details, "; "))
			}
			if ev.UserContext != "" {
				fmt.Fprintf(&b, " Consumer note: %s", ev.UserContext)
			}
			b.WriteString("\n")
		}
	}
	if dc.PriorLetter != "" && dc.LetterType != domain.TypeInitial {
		fmt.Fprintf(&b, "\nPrevious letter:\n%s\n", dc.PriorLetter)
	}
	if dc.Feedback != "" {
		fmt.Fprintf(&b, "\nRevision instructions from the consumer:\n%s\n", dc.Feedback)
	}
	return b.String()
}

var _ domain.Drafter = (*Live)(nil)
