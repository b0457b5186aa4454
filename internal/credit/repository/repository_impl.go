package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redress/internal/credit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ApplyDelta(ctx context.Context, db *gorm.DB, accountID snowflake.ID, delta int64, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET credits = credits + ?, updated_at = ?
		 WHERE id = ? AND credits + ? >= 0`,
		delta,
		at,
		accountID,
		delta,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) AccountExists(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM accounts WHERE id = ?`,
		accountID,
	).Scan(&count).Error
	return count > 0, err
}

func (r *repo) Balance(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (int64, error) {
	var credits int64
	err := db.WithContext(ctx).Raw(
		`SELECT credits FROM accounts WHERE id = ?`,
		accountID,
	).Scan(&credits).Error
	return credits, err
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_transactions (
			id, account_id, amount, kind, balance_after, case_id, idempotency_key,
			provider, external_reference, note, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.AccountID,
		txn.Amount,
		txn.Kind,
		txn.BalanceAfter,
		txn.CaseID,
		txn.IdempotencyKey,
		txn.Provider,
		txn.ExternalReference,
		txn.Note,
		txn.CreatedAt,
	).Error
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, amount, kind, balance_after, case_id, idempotency_key,
			provider, external_reference, note, created_at
		 FROM credit_transactions
		 WHERE idempotency_key = ?
		 LIMIT 1`,
		key,
	).Scan(&txn).Error
	if err != nil {
		return nil, err
	}
	if txn.ID == 0 {
		return nil, nil
	}
	return &txn, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Transaction, error) {
	stmt := db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("account_id = ?", filter.AccountID)
	if filter.BeforeID != nil {
		stmt = stmt.Where("id < ?", *filter.BeforeID)
	}
	var items []domain.Transaction
	err := stmt.Order("id DESC").Limit(filter.Limit).Find(&items).Error
	return items, err
}
