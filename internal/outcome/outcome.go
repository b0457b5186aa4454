// Package outcome infers the remedy a letter should ask for when the
// consumer has not named one. Everything here is pure.
package outcome

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Input is the slice of a case that inference reads.
type Input struct {
	Complaint      string
	Issues         []string
	DesiredOutcome string
	Amount         decimal.Decimal
	Currency       string
}

const Fallback = "an appropriate resolution to this matter"

var placeholders = map[string]struct{}{
	"":         {},
	"n/a":      {},
	"na":       {},
	"none":     {},
	"-":        {},
	"?":        {},
	"...":      {},
	"tbd":      {},
	"infer":    {},
	"not sure": {},
	"unknown":  {},
	"any":      {},
	"whatever": {},
}

type signals struct {
	financial bool
	service   bool
	rudeness  bool
	distress  bool
	travel    bool
}

var (
	financialKeywords = []string{"refund", "money", "paid", "charge", "£", "$", "€", "cost", "price", "reimburs", "overcharg", "fee", "payment"}
	serviceKeywords   = []string{"broken", "faulty", "defective", "not working", "stopped working", "never arrived", "not delivered", "did not arrive", "didn't arrive", "cancel", "delay", "failed", "failure", "poor service", "not as described", "damaged", "missing"}
	rudenessKeywords  = []string{"rude", "shouting", "shouted", "unprofessional", "abusive", "disrespect", "insult", "poor customer service"}
	distressKeywords  = []string{"distress", "stress", "upset", "anxious", "anxiety", "humiliat", "embarrass", "inconvenience", "ruined"}
	travelKeywords    = []string{"flight", "airline", "airport", "train", "rail", "boarding", "passenger", "luggage", "baggage", "holiday", "hotel", "ferry"}
)

// InferOutcome returns the explicit outcome when one was given, otherwise a
// remedy composed from keyword signals in the complaint and issues.
func InferOutcome(in Input) string {
	if explicit := normalize(in.DesiredOutcome); !isPlaceholder(explicit) {
		return explicit
	}

	text := strings.ToLower(in.Complaint + " " + strings.Join(in.Issues, " "))
	s := signals{
		financial: containsAny(text, financialKeywords),
		service:   containsAny(text, serviceKeywords),
		rudeness:  containsAny(text, rudenessKeywords),
		distress:  containsAny(text, distressKeywords),
		travel:    containsAny(text, travelKeywords),
	}

	amount := ""
	if !in.Amount.IsZero() {
		amount = FormatAmount(in.Amount, in.Currency)
	}

	var parts []string
	switch {
	case s.financial && s.service:
		if amount != "" {
			parts = append(parts, "a full refund of "+amount)
		} else {
			parts = append(parts, "a full refund of the amount paid")
		}
	case s.financial:
		if amount != "" {
			parts = append(parts, "reimbursement of "+amount)
		} else {
			parts = append(parts, "reimbursement of the money lost")
		}
	case s.service:
		parts = append(parts, "a remedy for the service failure at no extra cost")
	}
	if s.travel {
		parts = append(parts, "compensation in line with passenger rights regulations")
	}
	if s.rudeness {
		parts = append(parts, "a formal written apology")
	}
	if s.distress {
		parts = append(parts, "compensation for the distress and inconvenience caused")
	}

	if len(parts) == 0 {
		return Fallback
	}
	return strings.Join(parts, ", ")
}

// normalize trims wrapping brackets and quotes, collapses whitespace and drops trailing periods.
func normalize(value string) string {
	value = strings.TrimSpace(value)
	for {
		trimmed := strings.TrimSpace(strings.Trim(value, `[](){}<>"'`+"`"))
		if trimmed == value {
			break
		}
		value = trimmed
	}
	value = strings.Join(strings.Fields(value), " ")
	if strings.Trim(value, ".") == "" {
		// "..." is a placeholder, not an empty sentence.
		return value
	}
	return strings.TrimRight(value, ".")
}

func isPlaceholder(value string) bool {
	_, ok := placeholders[strings.ToLower(value)]
	return ok
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// FormatAmount renders an amount with its currency symbol, or with the ISO code.
func FormatAmount(amount decimal.Decimal, currency string) string {
	value := amount.StringFixed(2)
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "GBP", "":
		return "£" + value
	case "USD":
		return "$" + value
	case "EUR":
		return "€" + value
	default:
		return strings.ToUpper(strings.TrimSpace(currency)) + " " + value
	}
}
