package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Approval gates the dispatch of one letter behind a chat-ops decision.
type Approval struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	CaseID      snowflake.ID `json:"case_id" gorm:"not null;index"`
	LetterID    snowflake.ID `json:"letter_id" gorm:"not null"`
	AccountID   snowflake.ID `json:"account_id" gorm:"not null"`
	Recipient   string       `json:"recipient" gorm:"type:text;not null"`
	Status      Status       `json:"status" gorm:"type:text;not null;index"`
	RequestedAt time.Time    `json:"requested_at" gorm:"not null"`
	DecidedAt   *time.Time   `json:"decided_at,omitempty"`
	DecidedBy   *string      `json:"decided_by,omitempty" gorm:"type:text"`
}

func (Approval) TableName() string { return "approvals" }

type Decision struct {
	ApprovalID snowflake.ID `json:"approval_id"`
	Action     Action       `json:"action"`
	Actor      string       `json:"actor"`
}
