package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Reserve debits one credit. ok is false, with nothing written, when the balance is zero.
	Reserve(ctx context.Context, accountID snowflake.ID) (bool, int64, error)
	// ReserveForCase is Reserve inside a caller-owned transaction, keyed to the case.
	ReserveForCase(ctx context.Context, tx *gorm.DB, accountID, caseID snowflake.ID) (*Transaction, error)
	Grant(ctx context.Context, req GrantRequest) (int64, error)
	Refund(ctx context.Context, accountID, caseID snowflake.ID, reason string) (int64, error)
	Balance(ctx context.Context, accountID snowflake.ID) (int64, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
}

type Repository interface {
	// ApplyDelta adds delta to the balance only when the result stays non-negative.
	ApplyDelta(ctx context.Context, db *gorm.DB, accountID snowflake.ID, delta int64, at time.Time) (bool, error)
	AccountExists(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (bool, error)
	Balance(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (int64, error)
	Insert(ctx context.Context, db *gorm.DB, txn *Transaction) error
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*Transaction, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Transaction, error)
}

type ListFilter struct {
	AccountID snowflake.ID
	BeforeID  *snowflake.ID
	Limit     int
}

var (
	ErrInsufficientCredits   = errors.New("insufficient_credits")
	ErrAccountNotFound       = errors.New("account_not_found")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidKind           = errors.New("invalid_kind")
	ErrInvalidIdempotencyKey = errors.New("invalid_idempotency_key")
	ErrInvalidPageToken      = errors.New("invalid_page_token")
	ErrLedgerUnavailable     = errors.New("ledger_unavailable")
)
