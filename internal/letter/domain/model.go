package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	evidencedomain "github.com/smallbiznis/redress/internal/evidence/domain"
	researchdomain "github.com/smallbiznis/redress/internal/research/domain"
)

type Type string

const (
	TypeInitial            Type = "initial"
	TypeFollowUp           Type = "follow-up"
	TypeLetterBeforeAction Type = "letter-before-action"
	TypeEscalation         Type = "escalation"
	TypeChargeback         Type = "chargeback"
	TypeResponseCounter    Type = "response-counter"
)

var Types = []Type{
	TypeInitial,
	TypeFollowUp,
	TypeLetterBeforeAction,
	TypeEscalation,
	TypeChargeback,
	TypeResponseCounter,
}

func ParseType(value string) (Type, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, t := range Types {
		if string(t) == value {
			return t, nil
		}
	}
	return "", ErrInvalidLetterType
}

type Letter struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	CaseID       snowflake.ID `json:"case_id" gorm:"not null;index"`
	LetterType   Type         `json:"letter_type" gorm:"type:text;not null"`
	Subject      string       `json:"subject" gorm:"type:text;not null"`
	Body         string       `json:"body" gorm:"type:text;not null"`
	Tone         string       `json:"tone" gorm:"type:text"`
	UsedFallback bool         `json:"used_fallback" gorm:"not null;default:false"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`

	// SenderPlaceholder is set when the body still carries SenderPlaceholder
	// because the account profile has no name and address.
	SenderPlaceholder bool `json:"sender_placeholder" gorm:"not null;default:false"`
}

func (Letter) TableName() string { return "letters" }

// SenderProfile is who signs the letter. A nil profile means the documented placeholder is used.
type SenderProfile struct {
	Name         string
	AddressLines []string
	Email        string
	Phone        string
}

// Draft is drafter output before it is stored.
type Draft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Tone    string `json:"tone"`
}

type GenerateRequest struct {
	Case       casedomain.Case
	Intel      researchdomain.MergedIntel
	Evidence   []evidencedomain.Evidence
	Sender     *SenderProfile
	Feedback   string
	LetterType Type
}
