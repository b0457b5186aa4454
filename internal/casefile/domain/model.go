package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusAnalyzing Status = "analyzing"
	StatusAnalyzed  Status = "analyzed"
	StatusReady     Status = "ready"
	StatusSent      Status = "sent"
	StatusResolved  Status = "resolved"
)

// LegalBasis is one citation stored on the case. Its content is opaque to the pipeline.
type LegalBasis struct {
	Law      string `json:"law"`
	Section  string `json:"section,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Strength string `json:"strength,omitempty"`
}

type Case struct {
	ID                snowflake.ID                    `json:"id" gorm:"primaryKey"`
	AccountID         snowflake.ID                    `json:"account_id" gorm:"not null;index"`
	Reference         string                          `json:"reference" gorm:"type:text;not null;uniqueIndex"`
	Status            Status                          `json:"status" gorm:"type:text;not null;index"`
	ComplaintText     string                          `json:"complaint" gorm:"type:text;not null"`
	CompanyName       string                          `json:"company_name" gorm:"type:text;not null"`
	CompanyDomain     string                          `json:"company_domain,omitempty" gorm:"type:text"`
	PurchaseAmount    decimal.NullDecimal             `json:"amount" gorm:"type:numeric(12,2)"`
	Currency          string                          `json:"currency" gorm:"type:text;not null"`
	DesiredOutcome    *string                         `json:"desired_outcome,omitempty" gorm:"type:text"`
	ConfidenceScore   *int                            `json:"confidence_score,omitempty"`
	IdentifiedIssues  datatypes.JSONSlice[string]     `json:"identified_issues"`
	LegalBasis        datatypes.JSONSlice[LegalBasis] `json:"legal_basis"`
	CompanyIntel      datatypes.JSON                  `json:"company_intel,omitempty"`
	GeneratedLetter   *string                         `json:"generated_letter,omitempty" gorm:"type:text"`
	ResolutionOutcome *string                         `json:"resolution_outcome,omitempty" gorm:"type:text"`
	ReservationID     *snowflake.ID                   `json:"-"`
	AnalysisAttempts  int                             `json:"analysis_attempts" gorm:"not null;default:0"`
	LastError         string                          `json:"-" gorm:"type:text"`
	CreatedAt         time.Time                       `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time                       `json:"updated_at" gorm:"not null"`
	AnalyzedAt        *time.Time                      `json:"analyzed_at,omitempty"`
	SentAt            *time.Time                      `json:"sent_at,omitempty"`
	ResolvedAt        *time.Time                      `json:"resolved_at,omitempty"`
}

func (Case) TableName() string { return "cases" }

// Amount returns the purchase amount, zero when unknown.
func (c Case) Amount() decimal.Decimal {
	if !c.PurchaseAmount.Valid {
		return decimal.Zero
	}
	return c.PurchaseAmount.Decimal
}

// Outcome returns the user-supplied desired outcome, or "" to request inference.
func (c Case) Outcome() string {
	if c.DesiredOutcome == nil {
		return ""
	}
	return *c.DesiredOutcome
}

type Note struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	CaseID    snowflake.ID `json:"case_id" gorm:"not null;index"`
	AccountID snowflake.ID `json:"account_id" gorm:"not null"`
	Body      string       `json:"body" gorm:"type:text;not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (Note) TableName() string { return "case_notes" }

type CreateCaseRequest struct {
	AccountID      snowflake.ID     `json:"-"`
	Complaint      string           `json:"complaint"`
	CompanyName    string           `json:"company_name"`
	CompanyDomain  string           `json:"company_domain"`
	Amount         *decimal.Decimal `json:"amount"`
	Currency       string           `json:"currency"`
	DesiredOutcome *string          `json:"desired_outcome"`
}

type UpdateCaseRequest struct {
	Complaint      *string          `json:"complaint"`
	CompanyName    *string          `json:"company_name"`
	CompanyDomain  *string          `json:"company_domain"`
	Amount         *decimal.Decimal `json:"amount"`
	Currency       *string          `json:"currency"`
	DesiredOutcome *string          `json:"desired_outcome"`
}
