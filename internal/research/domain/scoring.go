package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	baseScore = 40
	maxScore  = 95
	maxIssues = 3

	FallbackIssue = "Breach of consumer rights"
)

type ScoreInput struct {
	ComplaintLength int
	Amount          decimal.Decimal
	CompanyName     string
	DesiredOutcome  string
	IssueCount      int
}

// ConfidenceScore is deterministic so scores stay comparable across cases.
func ConfidenceScore(in ScoreInput) int {
	score := baseScore
	if in.ComplaintLength > 50 {
		score += 10
	}
	if in.ComplaintLength > 100 {
		score += 10
	}
	if in.ComplaintLength > 200 {
		score += 5
	}
	if !in.Amount.IsZero() {
		score += 10
		if in.Amount.GreaterThan(decimal.NewFromInt(100)) {
			score += 5
		}
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.CompanyName)) > 2 {
		score += 5
	}
	if strings.TrimSpace(in.DesiredOutcome) != "" {
		score += 5
	}
	score += 5 * in.IssueCount
	if score > maxScore {
		score = maxScore
	}
	return score
}

type issueRule struct {
	keywords []string
	label    string
}

// Order matters: earlier rules win when more than three match.
var issueRules = []issueRule{
	{keywords: []string{"refund", "money back", "reimburse"}, label: "Failure to provide a refund"},
	{keywords: []string{"cancel"}, label: "Cancellation without adequate remedy"},
	{keywords: []string{"delay", "late", "waited"}, label: "Unreasonable delay"},
	{keywords: []string{"broken", "faulty", "defective", "damaged", "not working", "stopped working"}, label: "Goods not of satisfactory quality"},
	{keywords: []string{"never arrived", "not delivered", "did not arrive", "didn't arrive", "missing"}, label: "Failure to deliver"},
	{keywords: []string{"overcharg", "charged twice", "double charged", "hidden fee", "extra charge"}, label: "Incorrect or unfair charges"},
	{keywords: []string{"rude", "unprofessional", "shouting", "shouted", "ignored"}, label: "Poor customer service"},
	{keywords: []string{"misleading", "misrepresent", "false advertis", "lied", "not as described"}, label: "Misleading information"},
}

// DetectIssues returns up to three labels in rule order, or the fallback.
func DetectIssues(text string) []string {
	lower := strings.ToLower(text)
	issues := make([]string, 0, maxIssues)
	for _, rule := range issueRules {
		if len(issues) == maxIssues {
			break
		}
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				issues = append(issues, rule.label)
				break
			}
		}
	}
	if len(issues) == 0 {
		return []string{FallbackIssue}
	}
	return issues
}
