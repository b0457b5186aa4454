package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusDraft, StatusAnalyzing, StatusAnalyzed, StatusReady, StatusSent, StatusResolved}
	allowed := map[Status][]Status{
		StatusDraft:     {StatusAnalyzing},
		StatusAnalyzing: {StatusAnalyzed, StatusDraft},
		StatusAnalyzed:  {StatusReady},
		StatusReady:     {StatusAnalyzing, StatusSent, StatusResolved},
		StatusSent:      {StatusResolved},
		StatusResolved:  {},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, candidate := range allowed[from] {
				if candidate == to {
					want = true
				}
			}
			assert.Equalf(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestDisplay(t *testing.T) {
	for _, status := range []Status{StatusDraft, StatusAnalyzing, StatusAnalyzed, StatusReady, StatusSent} {
		assert.Equal(t, "Preparing", Display(status))
	}
	assert.Equal(t, "Resolved", Display(StatusResolved))
}

func TestClassifyResolution(t *testing.T) {
	cases := map[string]Resolution{
		"":                               ResolutionNeutral,
		"   ":                            ResolutionNeutral,
		"Full REFUND received":           ResolutionSuccessful,
		"they offered compensation":      ResolutionSuccessful,
		"Resolved after the second call": ResolutionSuccessful,
		"claim accepted":                 ResolutionSuccessful,
		"successful":                     ResolutionSuccessful,
		"they ignored me":                ResolutionUnsuccessful,
		"gave up":                        ResolutionUnsuccessful,
	}
	for input, want := range cases {
		assert.Equalf(t, want, ClassifyResolution(input), "input %q", input)
	}
}

func TestValidateCreate(t *testing.T) {
	amount := decimal.RequireFromString("450")
	req := CreateCaseRequest{
		Complaint:     "  My flight was cancelled and I was never refunded the £450 I paid  ",
		CompanyName:   " Ryanair ",
		CompanyDomain: "https://www.ryanair.com/",
		Amount:        &amount,
	}
	require.NoError(t, ValidateCreate(&req))
	assert.Equal(t, "Ryanair", req.CompanyName)
	assert.Equal(t, "ryanair.com", req.CompanyDomain)
	assert.Equal(t, "GBP", req.Currency)
	assert.Nil(t, req.DesiredOutcome)

	short := CreateCaseRequest{Complaint: "too short", CompanyName: "Ryanair"}
	assert.ErrorIs(t, ValidateCreate(&short), ErrInvalidComplaint)

	negative := decimal.NewFromInt(-1)
	bad := CreateCaseRequest{Complaint: req.Complaint, CompanyName: "Ryanair", Amount: &negative}
	assert.ErrorIs(t, ValidateCreate(&bad), ErrInvalidAmount)

	fractional := decimal.RequireFromString("1.005")
	bad = CreateCaseRequest{Complaint: req.Complaint, CompanyName: "Ryanair", Amount: &fractional}
	assert.ErrorIs(t, ValidateCreate(&bad), ErrInvalidAmount)

	bad = CreateCaseRequest{Complaint: req.Complaint, CompanyName: "Ryanair", Currency: "pounds"}
	assert.ErrorIs(t, ValidateCreate(&bad), ErrInvalidCurrency)
}
