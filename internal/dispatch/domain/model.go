package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type SendStatus string

const SendStatusSent SendStatus = "sent"

// LetterSend is one delivered letter. TrackingID is an opaque ULID used by the open pixel.
type LetterSend struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	TrackingID string       `json:"tracking_id" gorm:"type:text;not null;uniqueIndex"`
	CaseID     snowflake.ID `json:"case_id" gorm:"not null;index"`
	LetterID   snowflake.ID `json:"letter_id" gorm:"not null"`
	Recipient  string       `json:"recipient" gorm:"type:text;not null"`
	Status     SendStatus   `json:"status" gorm:"type:text;not null"`
	SentAt     time.Time    `json:"sent_at" gorm:"not null"`
	OpenedAt   *time.Time   `json:"opened_at,omitempty"`
	OpenCount  int          `json:"open_count" gorm:"not null;default:0"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null"`
}

func (LetterSend) TableName() string { return "letter_sends" }

type SendRequest struct {
	CaseID    snowflake.ID
	LetterID  snowflake.ID
	Recipient string
	// Actor is recorded in the audit trail, for example "account" or "chatops".
	Actor string
}
