package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redress/internal/approval/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, approval *domain.Approval) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO approvals (id, case_id, letter_id, account_id, recipient, status, requested_at, decided_at, decided_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		approval.ID,
		approval.CaseID,
		approval.LetterID,
		approval.AccountID,
		approval.Recipient,
		approval.Status,
		approval.RequestedAt,
		approval.DecidedAt,
		approval.DecidedBy,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Approval, error) {
	var approval domain.Approval
	err := db.WithContext(ctx).Raw(
		`SELECT id, case_id, letter_id, account_id, recipient, status, requested_at, decided_at, decided_by
		 FROM approvals
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&approval).Error
	if err != nil {
		return nil, err
	}
	if approval.ID == 0 {
		return nil, nil
	}
	return &approval, nil
}

func (r *repo) SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, at *time.Time, by *string) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE approvals
		 SET status = ?, decided_at = ?, decided_by = ?
		 WHERE id = ? AND status = ?`,
		to,
		at,
		by,
		id,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
