package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/redress/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert appends one entry. Audit rows are never updated.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.AuditLog, error) {
	var logs []domain.AuditLog
	err := db.WithContext(ctx).
		Model(&domain.AuditLog{}).
		Scopes(byAccount(filter), byTarget(filter), before(filter.Cursor)).
		Order("created_at desc, id desc").
		Limit(filter.Limit).
		Find(&logs).Error
	return logs, err
}

func byAccount(filter domain.ListFilter) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if filter.AccountID != nil {
			tx = tx.Where("account_id = ?", *filter.AccountID)
		}
		if action := strings.TrimSpace(filter.Action); action != "" {
			// "case." matches the whole case.* family.
			if strings.HasSuffix(action, ".") {
				return tx.Where("action LIKE ?", action+"%")
			}
			tx = tx.Where("action = ?", action)
		}
		return tx
	}
}

func byTarget(filter domain.ListFilter) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if targetType := strings.TrimSpace(filter.TargetType); targetType != "" {
			tx = tx.Where("target_type = ?", targetType)
		}
		if targetID := strings.TrimSpace(filter.TargetID); targetID != "" {
			tx = tx.Where("target_id = ?", targetID)
		}
		return tx
	}
}

func before(cursor *domain.AuditCursor) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if cursor == nil {
			return tx
		}
		return tx.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
}
