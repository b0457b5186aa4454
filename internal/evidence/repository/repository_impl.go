package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redress/internal/evidence/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, ev *domain.Evidence) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO evidence (
			id, case_id, file_name, type, description, relevant_details, suggested_use,
			strength, user_context, indexed_for_letter, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.CaseID,
		ev.FileName,
		ev.Type,
		ev.Description,
		ev.RelevantDetails,
		ev.SuggestedUse,
		ev.Strength,
		ev.UserContext,
		ev.IndexedForLetter,
		ev.CreatedAt,
	).Error
}

// ListByCase returns evidence in upload order; snowflake ids are time ordered.
func (r *repo) ListByCase(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]domain.Evidence, error) {
	var items []domain.Evidence
	err := db.WithContext(ctx).Raw(
		`SELECT id, case_id, file_name, type, description, relevant_details, suggested_use,
			strength, user_context, indexed_for_letter, created_at
		 FROM evidence
		 WHERE case_id = ?
		 ORDER BY id ASC`,
		caseID,
	).Scan(&items).Error
	return items, err
}
