package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redress/internal/casefile/domain"
	"gorm.io/gorm"
)

const caseColumns = `id, account_id, reference, status, complaint_text, company_name, company_domain,
	purchase_amount, currency, desired_outcome, confidence_score, identified_issues, legal_basis,
	company_intel, generated_letter, resolution_outcome, reservation_id, analysis_attempts,
	last_error, created_at, updated_at, analyzed_at, sent_at, resolved_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, c *domain.Case) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO cases (`+caseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.AccountID,
		c.Reference,
		c.Status,
		c.ComplaintText,
		c.CompanyName,
		c.CompanyDomain,
		c.PurchaseAmount,
		c.Currency,
		c.DesiredOutcome,
		c.ConfidenceScore,
		c.IdentifiedIssues,
		c.LegalBasis,
		c.CompanyIntel,
		c.GeneratedLetter,
		c.ResolutionOutcome,
		c.ReservationID,
		c.AnalysisAttempts,
		c.LastError,
		c.CreatedAt,
		c.UpdatedAt,
		c.AnalyzedAt,
		c.SentAt,
		c.ResolvedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Case, error) {
	return r.find(ctx, db, id, false)
}

// FindByIDForUpdate row-locks the case on dialects that support it. SQLite serializes writers already.
func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Case, error) {
	return r.find(ctx, db, id, !strings.EqualFold(db.Dialector.Name(), "sqlite"))
}

func (r *repo) find(ctx context.Context, db *gorm.DB, id snowflake.ID, lock bool) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = ? LIMIT 1`
	if lock {
		query += ` FOR UPDATE`
	}
	var c domain.Case
	if err := db.WithContext(ctx).Raw(query, id).Scan(&c).Error; err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, c *domain.Case) error {
	return db.WithContext(ctx).Exec(
		`UPDATE cases SET
			status = ?, complaint_text = ?, company_name = ?, company_domain = ?,
			purchase_amount = ?, currency = ?, desired_outcome = ?, confidence_score = ?,
			identified_issues = ?, legal_basis = ?, company_intel = ?, generated_letter = ?,
			resolution_outcome = ?, analysis_attempts = ?, last_error = ?, updated_at = ?,
			analyzed_at = ?, sent_at = ?, resolved_at = ?
		 WHERE id = ?`,
		c.Status,
		c.ComplaintText,
		c.CompanyName,
		c.CompanyDomain,
		c.PurchaseAmount,
		c.Currency,
		c.DesiredOutcome,
		c.ConfidenceScore,
		c.IdentifiedIssues,
		c.LegalBasis,
		c.CompanyIntel,
		c.GeneratedLetter,
		c.ResolutionOutcome,
		c.AnalysisAttempts,
		c.LastError,
		c.UpdatedAt,
		c.AnalyzedAt,
		c.SentAt,
		c.ResolvedAt,
		c.ID,
	).Error
}

func (r *repo) FindOwner(ctx context.Context, db *gorm.DB, id snowflake.ID) (snowflake.ID, error) {
	var owner snowflake.ID
	err := db.WithContext(ctx).Raw(`SELECT account_id FROM cases WHERE id = ?`, id).Scan(&owner).Error
	return owner, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Case, error) {
	stmt := db.WithContext(ctx).Model(&domain.Case{}).Where("account_id = ?", filter.AccountID)
	if filter.BeforeID != nil {
		stmt = stmt.Where("id < ?", *filter.BeforeID)
	}
	var items []domain.Case
	err := stmt.Order("id DESC").Limit(filter.Limit).Find(&items).Error
	return items, err
}

func (r *repo) ListStale(ctx context.Context, db *gorm.DB, status domain.Status, cutoff time.Time, limit int) ([]domain.Case, error) {
	var items []domain.Case
	err := db.WithContext(ctx).Raw(
		`SELECT `+caseColumns+` FROM cases
		 WHERE status = ? AND updated_at < ?
		 ORDER BY updated_at ASC
		 LIMIT ?`,
		status,
		cutoff,
		limit,
	).Scan(&items).Error
	return items, err
}

func (r *repo) InsertNote(ctx context.Context, db *gorm.DB, note *domain.Note) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO case_notes (id, case_id, account_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		note.ID,
		note.CaseID,
		note.AccountID,
		note.Body,
		note.CreatedAt,
	).Error
}

func (r *repo) ListNotes(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]domain.Note, error) {
	var notes []domain.Note
	err := db.WithContext(ctx).Raw(
		`SELECT id, case_id, account_id, body, created_at
		 FROM case_notes
		 WHERE case_id = ?
		 ORDER BY id ASC`,
		caseID,
	).Scan(&notes).Error
	return notes, err
}
