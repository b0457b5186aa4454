package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redress/pkg/db/pagination"
	"gorm.io/gorm"
)

// Mutation runs inside the transition transaction after the status check and before the write.
type Mutation func(tx *gorm.DB, c *Case) error

// Authorizer decides whether an account may act on a case owned by ownerID.
type Authorizer interface {
	AuthorizeCase(ctx context.Context, accountID, ownerID snowflake.ID, action string) error
}

const (
	ActionRead  = "case.read"
	ActionWrite = "case.write"
)

type ListCasesRequest struct {
	pagination.Pagination
	AccountID snowflake.ID
}

type ListCasesResponse struct {
	pagination.PageInfo
	Cases []Case `json:"cases"`
}

type Service interface {
	Create(ctx context.Context, tx *gorm.DB, id snowflake.ID, reservationID snowflake.ID, req CreateCaseRequest) (*Case, error)
	Get(ctx context.Context, accountID, caseID snowflake.ID) (*Case, error)
	Load(ctx context.Context, caseID snowflake.ID) (*Case, error)
	List(ctx context.Context, req ListCasesRequest) (ListCasesResponse, error)
	UpdateComplaint(ctx context.Context, accountID, caseID snowflake.ID, req UpdateCaseRequest) (*Case, error)
	Transition(ctx context.Context, caseID snowflake.ID, target Status, mutate Mutation) (*Case, error)
	Rollback(ctx context.Context, caseID snowflake.ID, reason string) error
	Resolve(ctx context.Context, accountID, caseID snowflake.ID, outcome string) (*Case, error)
	AddNote(ctx context.Context, accountID, caseID snowflake.ID, body string) (*Note, error)
	ListNotes(ctx context.Context, accountID, caseID snowflake.ID) ([]Note, error)
	// Authorize checks that accountID may perform action on the case.
	Authorize(ctx context.Context, accountID, caseID snowflake.ID, action string) error
	// ListStale returns cases left in status since before cutoff, oldest first.
	ListStale(ctx context.Context, status Status, cutoff time.Time, limit int) ([]Case, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, c *Case) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Case, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Case, error)
	FindOwner(ctx context.Context, db *gorm.DB, id snowflake.ID) (snowflake.ID, error)
	Update(ctx context.Context, db *gorm.DB, c *Case) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Case, error)
	InsertNote(ctx context.Context, db *gorm.DB, note *Note) error
	ListNotes(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]Note, error)
	ListStale(ctx context.Context, db *gorm.DB, status Status, cutoff time.Time, limit int) ([]Case, error)
}

type ListFilter struct {
	AccountID snowflake.ID
	BeforeID  *snowflake.ID
	Limit     int
}

var (
	ErrNotFound          = errors.New("case_not_found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrNoReservation     = errors.New("no_reservation")
	ErrInvalidComplaint  = errors.New("invalid_complaint")
	ErrInvalidCompany    = errors.New("invalid_company")
	ErrInvalidDomain     = errors.New("invalid_company_domain")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidCurrency   = errors.New("invalid_currency")
	ErrInvalidOutcome    = errors.New("invalid_desired_outcome")
	ErrInvalidNote       = errors.New("invalid_note")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
	ErrNotEditable       = errors.New("case_not_editable")
)
