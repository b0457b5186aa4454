package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	MinComplaintLength = 20
	MaxComplaintLength = 10000
	MaxCompanyLength   = 200
	MaxOutcomeLength   = 500
	MaxNoteLength      = 4000
)

var maxAmount = decimal.NewFromInt(1_000_000)

// ValidateCreate normalizes the request in place. It performs no I/O so it can run before the ledger.
func ValidateCreate(req *CreateCaseRequest) error {
	req.Complaint = strings.TrimSpace(req.Complaint)
	if err := validateComplaint(req.Complaint); err != nil {
		return err
	}
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	if err := validateCompany(req.CompanyName); err != nil {
		return err
	}
	req.CompanyDomain = normalizeDomain(req.CompanyDomain)
	if err := validateDomain(req.CompanyDomain); err != nil {
		return err
	}
	if err := validateAmount(req.Amount); err != nil {
		return err
	}
	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return err
	}
	req.Currency = currency
	outcome, err := normalizeOutcome(req.DesiredOutcome)
	if err != nil {
		return err
	}
	req.DesiredOutcome = outcome
	return nil
}

func validateComplaint(text string) error {
	n := utf8.RuneCountInString(text)
	if n < MinComplaintLength || n > MaxComplaintLength {
		return ErrInvalidComplaint
	}
	return nil
}

func validateCompany(name string) error {
	n := utf8.RuneCountInString(name)
	if n < 2 || n > MaxCompanyLength {
		return ErrInvalidCompany
	}
	return nil
}

func normalizeDomain(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.TrimPrefix(value, "https://")
	value = strings.TrimPrefix(value, "http://")
	value = strings.TrimPrefix(value, "www.")
	return strings.TrimSuffix(value, "/")
}

func validateDomain(domain string) error {
	if domain == "" {
		return nil
	}
	if len(domain) > 253 || !strings.Contains(domain, ".") || strings.ContainsAny(domain, " /\\@") {
		return ErrInvalidDomain
	}
	return nil
}

func validateAmount(amount *decimal.Decimal) error {
	if amount == nil {
		return nil
	}
	if amount.IsNegative() || amount.GreaterThanOrEqual(maxAmount) || !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

func normalizeCurrency(value string) (string, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return "GBP", nil
	}
	if len(value) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range value {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return value, nil
}

func normalizeOutcome(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > MaxOutcomeLength {
		return nil, ErrInvalidOutcome
	}
	return &trimmed, nil
}

// NormalizeNote trims a note body and enforces its bounds.
func NormalizeNote(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" || utf8.RuneCountInString(body) > MaxNoteLength {
		return "", ErrInvalidNote
	}
	return body, nil
}
