package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	"go.uber.org/fx"
)

const (
	ObjectCase     = "case"
	ObjectCredit   = "credit"
	ObjectAuditLog = "audit_log"

	ActionCaseRead     = casedomain.ActionRead
	ActionCaseWrite    = casedomain.ActionWrite
	ActionCaseReadAny  = "case.read_any"
	ActionCaseWriteAny = "case.write_any"

	ActionCreditAdjust = "credit.adjust"
	ActionAuditLogView = "audit_log.view"
)

type Service interface {
	Authorize(ctx context.Context, accountID snowflake.ID, object string, action string) error
	AuthorizeCase(ctx context.Context, accountID, ownerID snowflake.ID, action string) error
}

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(
		fx.Annotate(NewService, fx.As(fx.Self()), fx.As(new(casedomain.Authorizer))),
	),
)
