package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	Send(ctx context.Context, req SendRequest) (*LetterSend, error)
	RecordOpen(ctx context.Context, trackingID string) error
	ListByCase(ctx context.Context, caseID snowflake.ID) ([]LetterSend, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, send *LetterSend) error
	RecordOpen(ctx context.Context, db *gorm.DB, trackingID string, at time.Time) (bool, error)
	ListByCase(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]LetterSend, error)
}

var (
	ErrInvalidRecipient = errors.New("invalid_recipient")
	ErrNotSendable      = errors.New("case_not_sendable")
	ErrDeliveryFailed   = errors.New("delivery_failed")
	ErrNotFound         = errors.New("tracking_not_found")
)
