package domain

import (
	"context"
	"errors"
	"io"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Drafter turns a DraftContext into letter prose.
type Drafter interface {
	Name() string
	Draft(ctx context.Context, dc DraftContext) (Draft, error)
}

type Service interface {
	// GenerateLetter never returns a bare drafting error: provider and validation
	// failures fall back to the template and set usedFallback.
	GenerateLetter(ctx context.Context, req GenerateRequest) (*Letter, bool, error)
	Save(ctx context.Context, tx *gorm.DB, letter *Letter) error
	Get(ctx context.Context, caseID, letterID snowflake.ID) (*Letter, error)
	List(ctx context.Context, caseID snowflake.ID) ([]Letter, error)
	Latest(ctx context.Context, caseID snowflake.ID) (map[Type]Letter, error)
	RenderPDF(ctx context.Context, letter *Letter, doc PDFMeta) (io.Reader, error)
}

// PDFMeta is the letterhead information that is not part of the letter row.
type PDFMeta struct {
	Reference   string
	CompanyName string
	Sender      *SenderProfile
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, letter *Letter) error
	FindByID(ctx context.Context, db *gorm.DB, caseID, letterID snowflake.ID) (*Letter, error)
	ListByCase(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]Letter, error)
	LatestByType(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]Letter, error)
}

var (
	ErrNotFound          = errors.New("letter_not_found")
	ErrInvalidLetterType = errors.New("invalid_letter_type")
	ErrInvalidFeedback   = errors.New("invalid_feedback")
	ErrEmptyBody         = errors.New("letter_body_empty")
	ErrPlaceholder       = errors.New("letter_contains_placeholder")
	ErrMissingCompany    = errors.New("letter_missing_company")
)
