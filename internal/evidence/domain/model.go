package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Strength string

const (
	StrengthWeak     Strength = "weak"
	StrengthModerate Strength = "moderate"
	StrengthStrong   Strength = "strong"
)

// Rank orders strengths for comparison. Unknown values rank as moderate.
func (s Strength) Rank() int {
	switch s {
	case StrengthWeak:
		return 1
	case StrengthStrong:
		return 3
	default:
		return 2
	}
}

type Evidence struct {
	ID               snowflake.ID                `json:"id" gorm:"primaryKey"`
	CaseID           snowflake.ID                `json:"case_id" gorm:"not null;index"`
	FileName         string                      `json:"file_name" gorm:"type:text;not null"`
	Type             string                      `json:"type" gorm:"type:text;not null"`
	Description      string                      `json:"description" gorm:"type:text"`
	RelevantDetails  datatypes.JSONSlice[string] `json:"relevant_details"`
	SuggestedUse     string                      `json:"suggested_use,omitempty" gorm:"type:text"`
	Strength         Strength                    `json:"strength" gorm:"type:text;not null"`
	UserContext      string                      `json:"user_context,omitempty" gorm:"type:text"`
	IndexedForLetter bool                        `json:"indexed_for_letter" gorm:"not null;default:true"`
	CreatedAt        time.Time                   `json:"created_at" gorm:"not null"`
}

func (Evidence) TableName() string { return "evidence" }

type AddEvidenceRequest struct {
	FileName         string         `json:"file_name"`
	UserContext      string         `json:"user_context"`
	IndexedForLetter *bool          `json:"indexed_for_letter"`
	Analysis         map[string]any `json:"analysis"`
}

// Context is the aggregated evidence handed to letter drafting.
type Context struct {
	Items     []Evidence
	Count     int
	Strongest Strength
}
