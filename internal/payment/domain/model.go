package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type EventRecord struct {
	ID               snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider         string         `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event"`
	ProviderEventID  string         `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event"`
	EventType        string         `json:"event_type" gorm:"type:text;not null"`
	AccountID        snowflake.ID   `json:"account_id" gorm:"not null;index"`
	PriceID          string         `json:"price_id" gorm:"type:text;not null"`
	PaymentReference string         `json:"payment_reference" gorm:"type:text;not null"`
	Payload          datatypes.JSON `json:"payload" gorm:"not null"`
	ReceivedAt       time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt      *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypeCheckoutCompleted = "checkout_completed"
)

// PaymentEvent is the canonical purchase confirmation parsed by adapters.
type PaymentEvent struct {
	Provider         string
	ProviderEventID  string
	Type             string
	AccountID        snowflake.ID
	PriceID          string
	PaymentReference string
	OccurredAt       time.Time
	RawPayload       []byte
}

// IdempotencyKey identifies the credit grant a purchase produces.
func (e PaymentEvent) IdempotencyKey() string {
	return e.Provider + ":" + e.PaymentReference
}
