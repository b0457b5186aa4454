package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	RequestApproval(ctx context.Context, caseID, letterID, accountID snowflake.ID, recipient string) (*Approval, error)
	VerifySignature(headers http.Header, body []byte, now time.Time) error
	Decide(ctx context.Context, decision Decision) (*Approval, error)
	Get(ctx context.Context, id snowflake.ID) (*Approval, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, approval *Approval) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Approval, error)
	// SetStatus moves the approval from one status to another and reports whether it did.
	SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, at *time.Time, by *string) (bool, error)
}

var (
	ErrNotFound             = errors.New("approval_not_found")
	ErrAlreadyDecided       = errors.New("approval_already_decided")
	ErrInvalidAction        = errors.New("invalid_action")
	ErrInvalidActor         = errors.New("invalid_actor")
	ErrInvalidSignature     = errors.New("invalid_signature")
	ErrStaleTimestamp       = errors.New("stale_timestamp")
	ErrSigningNotConfigured = errors.New("approval_signing_not_configured")
)
