package drafter

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/smallbiznis/redress/internal/letter/domain"
)

var openings = map[domain.Type]string{
	domain.TypeInitial:            "I am writing to make a formal complaint about my recent experience with %s.",
	domain.TypeFollowUp:           "I am writing to follow up on my earlier complaint to %s, to which I have not received a satisfactory response.",
	domain.TypeLetterBeforeAction: "This is a letter before action. Unless %s resolves the matter set out below, I intend to issue a claim without further notice.",
	domain.TypeEscalation:         "I am escalating my complaint against %s because the issue remains unresolved.",
	domain.TypeChargeback:         "I am writing to record that I am disputing a payment made to %s and to set out the grounds for a chargeback.",
	domain.TypeResponseCounter:    "I am replying to the response I received from %s, which does not address my complaint.",
}

var subjects = map[domain.Type]string{
	domain.TypeInitial:            "Formal complaint",
	domain.TypeFollowUp:           "Follow-up to my complaint",
	domain.TypeLetterBeforeAction: "Letter before action",
	domain.TypeEscalation:         "Escalation of unresolved complaint",
	domain.TypeChargeback:         "Notice of payment dispute",
	domain.TypeResponseCounter:    "Response to your reply",
}

var deadlines = map[domain.Type]string{
	domain.TypeInitial:            "14 days",
	domain.TypeFollowUp:           "7 days",
	domain.TypeLetterBeforeAction: "14 days",
	domain.TypeEscalation:         "7 days",
	domain.TypeChargeback:         "7 days",
	domain.TypeResponseCounter:    "14 days",
}

const letterTemplate = `{{ if .SenderPresent }}{{ .SenderName }}
{{ range .SenderLines }}{{ . }}
{{ end }}{{ else }}{{ .Placeholder }}
{{ end }}
{{ .Date }}

{{ .CompanyName }}
Customer Relations{{ range .Contacts }}
{{ . }}{{ end }}

Our reference: {{ .Reference }}

Dear Sir or Madam,

{{ .Opening }}

{{ .Complaint }}
{{ if .Issues }}
The issues I wish to raise are:
{{ range $i, $issue := .Issues }}{{ inc $i }}. {{ $issue }}
{{ end }}{{ end }}{{ if .Primary }}
I rely on the following:
{{ range .Primary }}- {{ cite . }}
{{ end }}{{ end }}{{ if .Supporting }}
I also refer you to:
{{ range .Supporting }}- {{ cite . }}
{{ end }}{{ end }}{{ if .Contextual }}
For context, the following may also be relevant:
{{ range .Contextual }}- {{ cite . }}
{{ end }}{{ end }}{{ if .Evidence }}
I enclose the following evidence in support of my complaint:
{{ range .Evidence }}{{ .Index }}. {{ .FileName }}{{ if .Description }} ({{ .Description }}){{ end }}{{ if .UserContext }}. {{ .UserContext }}{{ end }}
{{ end }}{{ end }}{{ if .Amount }}
The amount concerned is {{ .Amount }}.
{{ end }}
To resolve this complaint I am asking for {{ .Outcome }}.

Please respond within {{ .Deadline }} of the date of this letter.{{ if .Firm }}
I expect this matter to be treated as a priority, and I will pursue it further if it is not resolved in that time.{{ end }}

Yours faithfully,

{{ if .SenderPresent }}{{ .SenderName }}{{ else }}{{ .Placeholder }}{{ end }}
`

var compiled = template.Must(template.New("letter").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"cite": func(c domain.Citation) string {
		parts := []string{c.Law}
		if c.Section != "" {
			parts[0] = c.Law + ", " + c.Section
		}
		if c.Summary != "" {
			parts = append(parts, c.Summary)
		}
		return strings.Join(parts, ": ")
	},
}).Parse(letterTemplate))

// Template is the deterministic drafter. It never fails for a well-formed context.
type Template struct{}

func NewTemplate() *Template { return &Template{} }

func (t *Template) Name() string { return "template" }

func (t *Template) Draft(ctx context.Context, dc domain.DraftContext) (domain.Draft, error) {
	letterType := dc.LetterType
	if _, ok := openings[letterType]; !ok {
		letterType = domain.TypeInitial
	}
	dc = neutralized(dc)
	firm := wantsFirmTone(dc.Feedback)

	view := struct {
		domain.DraftContext
		Placeholder string
		Opening     string
		Deadline    string
		Firm        bool
		Primary     []domain.Citation
		Supporting  []domain.Citation
		Contextual  []domain.Citation
	}{
		DraftContext: dc,
		Placeholder:  domain.SenderPlaceholder,
		Opening:      fmt.Sprintf(openings[letterType], dc.CompanyName),
		Deadline:     deadlines[letterType],
		Firm:         firm,
	}
	if firm {
		view.Deadline = "7 days"
	}
	for _, c := range dc.Citations {
		switch c.Tier {
		case domain.TierPrimary:
			view.Primary = append(view.Primary, c)
		case domain.TierContextual:
			view.Contextual = append(view.Contextual, c)
		default:
			view.Supporting = append(view.Supporting, c)
		}
	}

	var buf bytes.Buffer
	if err := compiled.Execute(&buf, view); err != nil {
		return domain.Draft{}, fmt.Errorf("render letter template: %w", err)
	}

	subject := subjects[letterType]
	if dc.Reference != "" {
		subject = fmt.Sprintf("%s (ref %s)", subject, dc.Reference)
	}
	tone := "formal"
	if firm {
		tone = "firm"
	}
	return domain.Draft{
		Subject: subject,
		Body:    strings.TrimSpace(buf.String()) + "\n",
		Tone:    tone,
	}, nil
}

// Feedback is an instruction to the drafter. The template never prints it and
// only reads it for a firmer close and a shorter deadline.
var firmMarkers = []string{"firm", "angr", "strong", "urgent", "assertive", "shorter deadline", "sooner"}

func wantsFirmTone(feedback string) bool {
	feedback = strings.ToLower(feedback)
	for _, marker := range firmMarkers {
		if strings.Contains(feedback, marker) {
			return true
		}
	}
	return false
}

// neutralized copies dc with every user-supplied string passed through
// domain.Neutralize. The slices are copied so the caller's context is untouched.
func neutralized(dc domain.DraftContext) domain.DraftContext {
	n := domain.Neutralize
	dc.Reference = n(dc.Reference)
	dc.SenderName = n(dc.SenderName)
	dc.CompanyName = n(dc.CompanyName)
	dc.Complaint = n(dc.Complaint)
	dc.Amount = n(dc.Amount)
	dc.Outcome = n(dc.Outcome)
	dc.SenderLines = mapStrings(dc.SenderLines, n)
	dc.Issues = mapStrings(dc.Issues, n)
	dc.Contacts = mapStrings(dc.Contacts, n)

	citations := make([]domain.Citation, len(dc.Citations))
	for i, c := range dc.Citations {
		c.Law, c.Section, c.Summary = n(c.Law), n(c.Section), n(c.Summary)
		citations[i] = c
	}
	dc.Citations = citations

	evidence := make([]domain.EvidenceEntry, len(dc.Evidence))
	for i, ev := range dc.Evidence {
		ev.FileName, ev.Description, ev.UserContext = n(ev.FileName), n(ev.Description), n(ev.UserContext)
		evidence[i] = ev
	}
	dc.Evidence = evidence
	return dc
}

func mapStrings(in []string, fn func(string) string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}

var _ domain.Drafter = (*Template)(nil)
