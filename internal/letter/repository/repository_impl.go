package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redress/internal/letter/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, letter *domain.Letter) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO letters (id, case_id, letter_type, subject, body, tone, used_fallback, sender_placeholder, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		letter.ID,
		letter.CaseID,
		letter.LetterType,
		letter.Subject,
		letter.Body,
		letter.Tone,
		letter.UsedFallback,
		letter.SenderPlaceholder,
		letter.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, caseID, letterID snowflake.ID) (*domain.Letter, error) {
	var letter domain.Letter
	err := db.WithContext(ctx).Raw(
		`SELECT id, case_id, letter_type, subject, body, tone, used_fallback, sender_placeholder, created_at
		 FROM letters
		 WHERE id = ? AND case_id = ?
		 LIMIT 1`,
		letterID,
		caseID,
	).Scan(&letter).Error
	if err != nil {
		return nil, err
	}
	if letter.ID == 0 {
		return nil, nil
	}
	return &letter, nil
}

func (r *repo) ListByCase(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]domain.Letter, error) {
	var letters []domain.Letter
	err := db.WithContext(ctx).Raw(
		`SELECT id, case_id, letter_type, subject, body, tone, used_fallback, sender_placeholder, created_at
		 FROM letters
		 WHERE case_id = ?
		 ORDER BY id ASC`,
		caseID,
	).Scan(&letters).Error
	if err != nil {
		return nil, err
	}
	return letters, nil
}

// LatestByType returns the newest letter of each type for the case.
func (r *repo) LatestByType(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]domain.Letter, error) {
	var letters []domain.Letter
	err := db.WithContext(ctx).Raw(
		`SELECT l.id, l.case_id, l.letter_type, l.subject, l.body, l.tone, l.used_fallback, l.sender_placeholder, l.created_at
		 FROM letters l
		 JOIN (
			SELECT letter_type, MAX(id) AS id
			FROM letters
			WHERE case_id = ?
			GROUP BY letter_type
		 ) latest ON latest.id = l.id
		 ORDER BY l.id ASC`,
		caseID,
	).Scan(&letters).Error
	if err != nil {
		return nil, err
	}
	return letters, nil
}
