package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	approvaldomain "github.com/smallbiznis/redress/internal/approval/domain"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	dispatchdomain "github.com/smallbiznis/redress/internal/dispatch/domain"
	letterdomain "github.com/smallbiznis/redress/internal/letter/domain"
	researchdomain "github.com/smallbiznis/redress/internal/research/domain"
)

// Service drives a case from creation to a ready letter.
type Service interface {
	// CreateCase reserves one credit and stores the case in the same transaction.
	CreateCase(ctx context.Context, accountID snowflake.ID, req casedomain.CreateCaseRequest) (*casedomain.Case, error)
	// Analyze researches an analyzing case and stores the result.
	Analyze(ctx context.Context, caseID snowflake.ID) (*casedomain.Case, error)
	// GenerateInitial drafts the first letter and marks the case ready.
	GenerateInitial(ctx context.Context, caseID snowflake.ID, feedback string) (*letterdomain.Letter, error)
	// Run is Analyze followed by GenerateInitial.
	Run(ctx context.Context, caseID snowflake.ID) error
	Reanalyze(ctx context.Context, accountID, caseID snowflake.ID) (*casedomain.Case, error)
	Retry(ctx context.Context, accountID, caseID snowflake.ID) (*casedomain.Case, error)
	// GenerateFollowUp appends a letter to a ready or sent case and keeps its status.
	GenerateFollowUp(ctx context.Context, accountID, caseID snowflake.ID, letterType string, feedback string) (*letterdomain.Letter, error)
	UpdateCase(ctx context.Context, accountID, caseID snowflake.ID, req casedomain.UpdateCaseRequest) (*casedomain.Case, error)
	// SendLetter dispatches the letter, or parks it for approval when its type requires one.
	SendLetter(ctx context.Context, accountID, caseID, letterID snowflake.ID, recipient string) (*SendResult, error)
}

type SendStatus string

const (
	SendStatusSent            SendStatus = "sent"
	SendStatusPendingApproval SendStatus = "pending_approval"
)

type SendResult struct {
	Status   SendStatus                 `json:"status"`
	Send     *dispatchdomain.LetterSend `json:"send,omitempty"`
	Approval *approvaldomain.Approval   `json:"approval,omitempty"`
}

var (
	ErrNoCredits           = errors.New("no_credits")
	ErrResearchUnavailable = researchdomain.ErrResearchUnavailable
	ErrRunInProgress       = errors.New("case_run_in_progress")
	ErrNotRetryable        = errors.New("case_not_retryable")
	ErrNotFollowable       = errors.New("case_not_followable")
)
