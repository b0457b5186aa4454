package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redress/internal/dispatch/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, send *domain.LetterSend) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO letter_sends (
			id, tracking_id, case_id, letter_id, recipient, status, sent_at, opened_at, open_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		send.ID,
		send.TrackingID,
		send.CaseID,
		send.LetterID,
		send.Recipient,
		send.Status,
		send.SentAt,
		send.OpenedAt,
		send.OpenCount,
		send.CreatedAt,
	).Error
}

// RecordOpen sets opened_at on the first hit and counts every hit in one statement.
func (r *repo) RecordOpen(ctx context.Context, db *gorm.DB, trackingID string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE letter_sends
		 SET open_count = open_count + 1, opened_at = COALESCE(opened_at, ?)
		 WHERE tracking_id = ?`,
		at,
		trackingID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListByCase(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]domain.LetterSend, error) {
	var sends []domain.LetterSend
	err := db.WithContext(ctx).Raw(
		`SELECT id, tracking_id, case_id, letter_id, recipient, status, sent_at, opened_at, open_count, created_at
		 FROM letter_sends
		 WHERE case_id = ?
		 ORDER BY id ASC`,
		caseID,
	).Scan(&sends).Error
	if err != nil {
		return nil, err
	}
	return sends, nil
}
