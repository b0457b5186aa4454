package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	Add(ctx context.Context, accountID, caseID snowflake.ID, req AddEvidenceRequest) (*Evidence, error)
	List(ctx context.Context, caseID snowflake.ID) ([]Evidence, error)
	ListForAccount(ctx context.Context, accountID, caseID snowflake.ID) ([]Evidence, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, ev *Evidence) error
	ListByCase(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]Evidence, error)
}

var (
	ErrInvalidFileName = errors.New("invalid_file_name")
	ErrInvalidAnalysis = errors.New("invalid_analysis")
	ErrTooMuchEvidence = errors.New("too_much_evidence")
)
