package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redress/pkg/db/pagination"
)

type Kind string

const (
	KindPurchase        Kind = "purchase"
	KindBundlePurchase  Kind = "bundle_purchase"
	KindUsage           Kind = "usage"
	KindRefund          Kind = "refund"
	KindAdminAdjustment Kind = "admin_adjustment"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPurchase, KindBundlePurchase, KindUsage, KindRefund, KindAdminAdjustment:
		return true
	}
	return false
}

// Transaction is one immutable ledger row. BalanceAfter is the running sum including Amount.
type Transaction struct {
	ID                snowflake.ID  `json:"id" gorm:"primaryKey"`
	AccountID         snowflake.ID  `json:"account_id" gorm:"not null;index"`
	Amount            int64         `json:"amount" gorm:"not null"`
	Kind              Kind          `json:"kind" gorm:"type:text;not null"`
	BalanceAfter      int64         `json:"balance_after" gorm:"not null"`
	CaseID            *snowflake.ID `json:"case_id,omitempty"`
	IdempotencyKey    *string       `json:"-" gorm:"type:text;uniqueIndex"`
	Provider          *string       `json:"provider,omitempty" gorm:"type:text"`
	ExternalReference *string       `json:"external_reference,omitempty" gorm:"type:text"`
	Note              string        `json:"note,omitempty" gorm:"type:text"`
	CreatedAt         time.Time     `json:"created_at" gorm:"not null"`
}

func (Transaction) TableName() string { return "credit_transactions" }

type GrantRequest struct {
	AccountID         snowflake.ID
	Amount            int64
	Kind              Kind
	IdempotencyKey    string
	CaseID            *snowflake.ID
	Provider          string
	ExternalReference string
	Note              string
}

type ListTransactionsRequest struct {
	pagination.Pagination
	AccountID snowflake.ID
}

type ListTransactionsResponse struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
}
